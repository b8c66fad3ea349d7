package tql

import (
	"context"
	"strconv"
	"strings"

	"github.com/syssam/tql/dialect"
	"github.com/syssam/tql/types"
)

// SortOrder is the direction of an ORDER BY term.
type SortOrder string

// Sort orders.
const (
	Asc  SortOrder = "ASC"
	Desc SortOrder = "DESC"
)

// OrderTerm is an ORDER BY term.
type OrderTerm struct {
	Expr  Expression
	Order SortOrder
}

// AbstractQuery is a SELECT shaped statement: a Query or a SetOperation.
type AbstractQuery interface {
	Statement
	// Fields returns the projected expressions.
	Fields() []Expression
	// Err returns the first error recorded while building.
	Err() error

	base() *queryBase
	renderMode(b *Builder, m renderMode)
}

type renderMode uint8

const (
	renderPlain renderMode = iota
	// renderCount replaces the projection with COUNT(*) and drops the tail.
	renderCount
	// renderNamed names every projected field, for counting wrapped queries.
	renderNamed
)

// queryBase is the state shared by queries and set operations.
type queryBase struct {
	orders   []OrderTerm
	limit    int64
	hasLimit bool
	offset   int64
	err      error
	executed bool
}

func (q *queryBase) base() *queryBase { return q }

func (q *queryBase) addError(err error) {
	if err != nil && q.err == nil {
		q.err = err
	}
}

// limited reports whether LIMIT or OFFSET change the rows of the query.
func (q *queryBase) limited() bool { return q.hasLimit || q.offset > 0 }

func (q *queryBase) renderTail(b *Builder, fields []Expression, positional bool) {
	if len(q.orders) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range q.orders {
			if i > 0 {
				b.WriteString(", ")
			}
			if pos := fieldPosition(fields, o.Expr); positional && pos > 0 {
				b.WriteString(strconv.Itoa(pos))
			} else {
				o.Expr.Render(b)
			}
			if o.Order != "" {
				b.Pad().WriteString(string(o.Order))
			}
		}
	}
	if q.limited() {
		b.WriteString(b.Dialect().LimitClause(q.limit, q.hasLimit, q.offset))
	}
}

// fieldPosition returns the 1-based position of e among fields, or 0.
func fieldPosition(fields []Expression, e Expression) int {
	k := Key(e)
	for i, f := range fields {
		if Key(f) == k {
			return i + 1
		}
		if a, ok := f.(aliased); ok && Key(a.Delegate()) == k {
			return i + 1
		}
	}
	return 0
}

// Query is a SELECT statement. Builder methods may be called until the query
// is first executed with All, Iter, First or Single.
type Query struct {
	queryBase
	set      *FieldSet
	where    Op
	groupBy  []Expression
	having   Op
	distinct bool
	lock     dialect.LockMode
}

// Kind returns KindSelect.
func (*Query) Kind() Kind { return KindSelect }

// Targets returns the tables the query reads.
func (q *Query) Targets() []*Table { return targets(q.set.source) }

// Fields returns the projected expressions.
func (q *Query) Fields() []Expression { return q.set.Fields() }

// Source returns the FROM clause source.
func (q *Query) Source() ColumnSet { return q.set.source }

// Err returns the first error recorded while building.
func (q *Query) Err() error { return q.err }

// Where replaces the filter with the conjunction of ops.
func (q *Query) Where(ops ...Op) *Query {
	q.where = And(ops...)
	return q
}

// WhereFunc replaces the filter with the predicate built by fn.
func (q *Query) WhereFunc(fn OpFunc) *Query {
	q.where = fn.build()
	return q
}

// AndWhere adds op to the filter with AND.
func (q *Query) AndWhere(op Op) *Query {
	q.where = And(q.where, op)
	return q
}

// OrWhere adds op to the filter with OR.
func (q *Query) OrWhere(op Op) *Query {
	q.where = Or(q.where, op)
	return q
}

// GroupBy appends grouping expressions.
func (q *Query) GroupBy(exprs ...Expression) *Query {
	q.groupBy = append(q.groupBy, exprs...)
	return q
}

// Having replaces the group filter with the conjunction of ops.
func (q *Query) Having(ops ...Op) *Query {
	q.having = And(ops...)
	return q
}

// OrderBy appends a sort key.
func (q *Query) OrderBy(e Expression, order SortOrder) *Query {
	q.orders = append(q.orders, OrderTerm{Expr: e, Order: order})
	return q
}

// OrderByTerms appends sort keys.
func (q *Query) OrderByTerms(terms ...OrderTerm) *Query {
	q.orders = append(q.orders, terms...)
	return q
}

// Limit sets the maximum number of rows.
func (q *Query) Limit(n int64) *Query {
	q.limit, q.hasLimit = n, true
	return q
}

// Offset sets the number of rows skipped.
func (q *Query) Offset(n int64) *Query {
	q.offset = n
	return q
}

// Distinct removes duplicate rows.
func (q *Query) Distinct() *Query {
	q.distinct = true
	return q
}

// ForUpdate locks the selected rows for update. Dialects without row locks
// ignore it.
func (q *Query) ForUpdate() *Query { return q.setLock(dialect.LockForUpdate) }

// ForShare locks the selected rows in share mode.
func (q *Query) ForShare() *Query { return q.setLock(dialect.LockForShare) }

// NoLock removes the row lock.
func (q *Query) NoLock() *Query { return q.setLock(dialect.LockNone) }

func (q *Query) setLock(m dialect.LockMode) *Query {
	if q.executed && m != q.lock {
		q.addError(buildErrorf("lock", "cannot change the lock mode of a query that was already executed"))
		return q
	}
	q.lock = m
	return q
}

// Copy returns an unexecuted copy of the query.
func (q *Query) Copy() *Query {
	c := *q
	c.executed = false
	c.orders = append([]OrderTerm(nil), q.orders...)
	c.groupBy = append([]Expression(nil), q.groupBy...)
	return &c
}

// Alias returns the query as a named subquery for FROM clauses and joins.
func (q *Query) Alias(name string) *QueryAlias {
	return newQueryAlias(q, name)
}

// Union combines the query with others, removing duplicate rows.
func (q *Query) Union(others ...AbstractQuery) *SetOperation {
	return Union(append([]AbstractQuery{q}, others...)...)
}

// UnionAll combines the query with others, keeping duplicate rows.
func (q *Query) UnionAll(others ...AbstractQuery) *SetOperation {
	return UnionAll(append([]AbstractQuery{q}, others...)...)
}

// Intersect keeps the rows returned by the query and by others.
func (q *Query) Intersect(others ...AbstractQuery) *SetOperation {
	return Intersect(append([]AbstractQuery{q}, others...)...)
}

// Except removes the rows returned by others.
func (q *Query) Except(others ...AbstractQuery) *SetOperation {
	return Except(append([]AbstractQuery{q}, others...)...)
}

// Render renders the SELECT statement.
func (q *Query) Render(b *Builder) { q.renderMode(b, renderPlain) }

func (q *Query) renderMode(b *Builder, m renderMode) {
	b.AddError(q.err)
	b.WriteString("SELECT ")
	fields := q.Fields()
	if m == renderCount {
		b.WriteString("COUNT(*)")
	} else {
		if q.distinct {
			b.WriteString("DISTINCT ")
		}
		names := make(map[string]int)
		for i, f := range fields {
			if i > 0 {
				b.WriteString(", ")
			}
			if m == renderNamed {
				renderNamedField(b, f, i, names)
				continue
			}
			renderProjection(b, f)
		}
	}
	b.WriteString(" FROM ")
	q.set.source.renderSource(b)
	if q.where != nil {
		b.WriteString(" WHERE ")
		q.where.Render(b)
	}
	if len(q.groupBy) > 0 {
		b.WriteString(" GROUP BY ").Join(", ", q.groupBy...)
	}
	if q.having != nil {
		b.WriteString(" HAVING ")
		q.having.Render(b)
	}
	if m == renderCount {
		return
	}
	q.renderTail(b, fields, false)
	b.WriteString(b.Dialect().Lock(q.lock))
}

// renderNamedField projects f under a name unique within the projection.
func renderNamedField(b *Builder, f Expression, i int, names map[string]int) {
	var name string
	switch f := f.(type) {
	case aliased:
		name = f.Name()
	case AnyColumn:
		if q, ok := f.Owner().(qualifier); ok {
			name = strings.ReplaceAll(q.qualifier(), ".", "_") + "_" + f.Name()
		} else {
			name = f.Name()
		}
	default:
		name = "exp" + strconv.Itoa(i)
	}
	if n := names[name]; n > 0 {
		names[name] = n + 1
		name += "_" + strconv.Itoa(n)
	} else {
		names[name] = 1
	}
	if a, ok := f.(aliased); ok {
		appendOperand(b, a.Delegate())
	} else {
		appendOperand(b, f)
	}
	b.WriteString(" AS ").Ident(name)
}

// plain reports whether every source row is a result row, so that the
// query can be counted without a subquery.
func (q *Query) plain() bool {
	return !q.distinct && len(q.groupBy) == 0 && q.having == nil && !q.limited()
}

// All executes the query and returns every row.
func (q *Query) All(ctx context.Context, tx *Tx) ([]*ResultRow, error) {
	return all(ctx, tx, q)
}

// Iter executes the query and returns its rows. The caller must consume or
// close them.
func (q *Query) Iter(ctx context.Context, tx *Tx) (*Rows, error) {
	return openRows(ctx, tx, q)
}

// First returns the first row. It returns ErrNotFound if there is none.
func (q *Query) First(ctx context.Context, tx *Tx) (*ResultRow, error) {
	return first(ctx, tx, q)
}

// Single returns the only row. It returns ErrNotFound if there is none and
// ErrNotSingular if there are several.
func (q *Query) Single(ctx context.Context, tx *Tx) (*ResultRow, error) {
	return single(ctx, tx, q)
}

// Count returns the number of rows of the query. Plain queries are counted
// over the same source and filter; distinct, grouped and limited queries
// are counted as a subquery.
func (q *Query) Count(ctx context.Context, tx *Tx) (int64, error) {
	return count(ctx, tx, q)
}

// Empty reports whether the query returns no rows. Unless the query locks
// rows, it fetches at most one row.
func (q *Query) Empty(ctx context.Context, tx *Tx) (bool, error) {
	return empty(ctx, tx, q)
}

// countStatement counts the rows of a query.
type countStatement struct {
	query AbstractQuery
}

func (*countStatement) Kind() Kind           { return KindSelect }
func (s *countStatement) Targets() []*Table   { return s.query.Targets() }
func (*countStatement) Fields() []Expression { return []Expression{countField} }
func (s *countStatement) Render(b *Builder) {
	if q, ok := s.query.(*Query); ok && q.plain() {
		q.renderMode(b, renderCount)
		return
	}
	b.WriteString("SELECT COUNT(*) FROM (")
	s.query.renderMode(b, renderNamed)
	b.WriteString(") subquery")
}

var countField = Raw[int64]("COUNT(*)", types.Int64)

func count(ctx context.Context, tx *Tx, q AbstractQuery) (int64, error) {
	rows, err := tx.Query(ctx, &countStatement{query: q})
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if !rows.HasNext() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, nil
	}
	n, err := Get(rows.Next(), countField)
	if err != nil {
		return 0, err
	}
	return n, rows.Err()
}

func empty(ctx context.Context, tx *Tx, q AbstractQuery) (bool, error) {
	b := q.base()
	if b.hasLimit && b.limit == 0 {
		return true, nil
	}
	if lk, ok := q.(*Query); !ok || lk.lock == dialect.LockNone {
		limit, hasLimit := b.limit, b.hasLimit
		b.limit, b.hasLimit = 1, true
		defer func() { b.limit, b.hasLimit = limit, hasLimit }()
	}
	rows, err := tx.Query(ctx, q)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	has := rows.HasNext()
	return !has, rows.Err()
}

func openRows(ctx context.Context, tx *Tx, q AbstractQuery) (*Rows, error) {
	if err := q.Err(); err != nil {
		return nil, err
	}
	q.base().executed = true
	return tx.Query(ctx, q)
}

func all(ctx context.Context, tx *Tx, q AbstractQuery) ([]*ResultRow, error) {
	rows, err := openRows(ctx, tx, q)
	if err != nil {
		return nil, err
	}
	return rows.All()
}

func first(ctx context.Context, tx *Tx, q AbstractQuery) (*ResultRow, error) {
	rows, err := openRows(ctx, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.HasNext() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return rows.Next(), rows.Err()
}

func single(ctx context.Context, tx *Tx, q AbstractQuery) (*ResultRow, error) {
	rows, err := openRows(ctx, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.HasNext() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	row := rows.Next()
	if rows.HasNext() {
		return nil, ErrNotSingular
	}
	return row, rows.Err()
}
