package tql

import (
	"context"
)

// SetOperation combines the rows of two or more queries with UNION,
// UNION ALL, INTERSECT or EXCEPT.
//
// A branch with its own ORDER BY or LIMIT is wrapped in parentheses on
// dialects that accept parenthesized operands. Other dialects reject it
// with a BuildError when the statement is rendered, before any I/O.
type SetOperation struct {
	queryBase
	op       string
	branches []AbstractQuery
}

func newSetOperation(op string, qs []AbstractQuery) *SetOperation {
	s := &SetOperation{op: op, branches: qs}
	if len(qs) < 2 {
		s.addError(buildErrorf(op, "needs at least two queries, got %d", len(qs)))
		return s
	}
	n := len(qs[0].Fields())
	for i, q := range qs[1:] {
		if m := len(q.Fields()); m != n {
			s.addError(buildErrorf(op, "query %d projects %d columns, query 1 projects %d", i+2, m, n))
		}
	}
	return s
}

// Union returns the distinct rows of the queries. Branches with their own
// ORDER BY or LIMIT are checked against the dialect at render time.
func Union(qs ...AbstractQuery) *SetOperation { return newSetOperation("UNION", qs) }

// UnionAll returns the rows of the queries, duplicates included.
func UnionAll(qs ...AbstractQuery) *SetOperation { return newSetOperation("UNION ALL", qs) }

// Intersect returns the rows common to the queries. Dialects without
// INTERSECT report an UnsupportedError when it is rendered.
func Intersect(qs ...AbstractQuery) *SetOperation { return newSetOperation("INTERSECT", qs) }

// Except returns the rows of the first query missing from the others.
// Dialects without EXCEPT report an UnsupportedError when it is rendered.
func Except(qs ...AbstractQuery) *SetOperation { return newSetOperation("EXCEPT", qs) }

// Kind returns KindSelect.
func (*SetOperation) Kind() Kind { return KindSelect }

// Targets returns the tables read by the branches.
func (s *SetOperation) Targets() []*Table {
	var ts []*Table
	for _, q := range s.branches {
		ts = append(ts, q.Targets()...)
	}
	return ts
}

// Fields returns the fields of the first branch, which name the result columns.
func (s *SetOperation) Fields() []Expression {
	if len(s.branches) == 0 {
		return nil
	}
	return s.branches[0].Fields()
}

// Branches returns the combined queries.
func (s *SetOperation) Branches() []AbstractQuery { return append([]AbstractQuery(nil), s.branches...) }

// Err returns the first error recorded while building.
func (s *SetOperation) Err() error {
	if s.err != nil {
		return s.err
	}
	for _, q := range s.branches {
		if err := q.Err(); err != nil {
			return err
		}
	}
	return nil
}

// OrderBy appends a sort key. Keys matching a projected field of the first
// branch are rendered by position.
func (s *SetOperation) OrderBy(e Expression, order SortOrder) *SetOperation {
	s.orders = append(s.orders, OrderTerm{Expr: e, Order: order})
	return s
}

// Limit sets the maximum number of rows.
func (s *SetOperation) Limit(n int64) *SetOperation {
	s.limit, s.hasLimit = n, true
	return s
}

// Offset sets the number of rows skipped.
func (s *SetOperation) Offset(n int64) *SetOperation {
	s.offset = n
	return s
}

// Alias returns the set operation as a named subquery.
func (s *SetOperation) Alias(name string) *QueryAlias {
	return newQueryAlias(s, name)
}

// Render renders the combined SELECT statements.
func (s *SetOperation) Render(b *Builder) { s.renderMode(b, renderPlain) }

func (s *SetOperation) renderMode(b *Builder, m renderMode) {
	b.AddError(s.err)
	d := b.Dialect()
	switch {
	case s.op == "INTERSECT" && !d.Intersect:
		b.AddError(d.Unsupported("INTERSECT"))
	case s.op == "EXCEPT" && !d.Except:
		b.AddError(d.Unsupported("EXCEPT"))
	}
	branch := m
	if branch == renderCount {
		branch = renderPlain
	}
	for i, q := range s.branches {
		if i > 0 {
			b.Pad().WriteString(s.op).Pad()
		}
		qb := q.base()
		_, nested := q.(*SetOperation)
		own := len(qb.orders) > 0 || qb.limited()
		switch {
		case (own || nested) && d.SetOperandSubqueries:
			b.Wrap(func(b *Builder) { q.renderMode(b, branch) })
		case own:
			b.AddError(buildErrorf(s.op, "query %d has its own ORDER BY or LIMIT, which %s cannot apply to a set operand", i+1, d.Name))
			q.renderMode(b, branch)
		default:
			q.renderMode(b, branch)
		}
	}
	s.renderTail(b, s.Fields(), true)
}

// All executes the set operation and returns every row.
func (s *SetOperation) All(ctx context.Context, tx *Tx) ([]*ResultRow, error) {
	return all(ctx, tx, s)
}

// Iter executes the set operation and returns its rows.
func (s *SetOperation) Iter(ctx context.Context, tx *Tx) (*Rows, error) {
	return openRows(ctx, tx, s)
}

// First returns the first row. It returns ErrNotFound if there is none.
func (s *SetOperation) First(ctx context.Context, tx *Tx) (*ResultRow, error) {
	return first(ctx, tx, s)
}

// Count returns the number of rows of the set operation.
func (s *SetOperation) Count(ctx context.Context, tx *Tx) (int64, error) {
	return count(ctx, tx, s)
}

// Empty reports whether the set operation returns no rows.
func (s *SetOperation) Empty(ctx context.Context, tx *Tx) (bool, error) {
	return empty(ctx, tx, s)
}
