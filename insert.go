package tql

import (
	"context"

	"github.com/syssam/tql/dialect"
	"github.com/syssam/tql/types"
)

// insertRow is one row of an insert resolved against its table: the written
// columns in table order, and the auto-increment columns left to the
// database.
type insertRow struct {
	values    []Assignment
	generated []AnyColumn
}

// resolveRow fills the columns the assignments leave out. Client defaults
// are computed and constant defaults are copied. Columns with a database
// default, nullable columns and auto-increment columns are omitted. Any
// other column is missing.
func resolveRow(t *Table, assignments []Assignment) (*insertRow, error) {
	given := make(map[AnyColumn]Assignment, len(assignments))
	for _, a := range assignments {
		if a.err != nil {
			return nil, a.err
		}
		c := a.Column.Origin()
		if !t.owns(c) {
			return nil, buildErrorf("insert", "column %q does not belong to table %q", a.Column.Name(), t.name)
		}
		if _, ok := given[c]; ok {
			return nil, buildErrorf("insert", "column %q is assigned twice", c.Name())
		}
		given[c] = Assignment{Column: c, Value: a.Value}
	}
	r := &insertRow{}
	for _, c := range t.columns {
		a, ok := given[c]
		def := c.Def()
		switch {
		case ok:
			r.values = append(r.values, a)
		case isAutoIncrement(c):
			r.generated = append(r.generated, c)
		case def.ClientDefault != nil:
			r.values = append(r.values, Assignment{Column: c, Value: def.ClientDefault()})
		case def.HasDefault:
			r.values = append(r.values, Assignment{Column: c, Value: def.Default})
		case def.DefaultExpr != nil, c.Type().Nullable():
		default:
			return nil, NewValidationError(c.Name(), ErrMissingValue)
		}
	}
	return r, nil
}

// validate checks the values of the row against the column types.
func (r *insertRow) validate() error {
	for _, a := range r.values {
		if _, ok := a.Value.(Expression); ok {
			continue
		}
		if err := types.Check(a.Column.Type(), a.Value); err != nil {
			return NewValidationError(a.Column.Name(), err)
		}
	}
	return nil
}

// params returns the number of parameters the row binds.
func (r *insertRow) params() int {
	n := 0
	for _, a := range r.values {
		if _, ok := a.Value.(Expression); !ok {
			n++
		}
	}
	return n
}

// sameShape reports whether two rows write the same columns the same way.
func (r *insertRow) sameShape(o *insertRow) error {
	if len(r.values) != len(o.values) {
		return buildErrorf("batch", "row writes %d columns, batch rows write %d", len(o.values), len(r.values))
	}
	for i, a := range r.values {
		b := o.values[i]
		if a.Column != b.Column {
			return buildErrorf("batch", "row writes column %q where batch rows write %q", b.Column.Name(), a.Column.Name())
		}
		_, ea := a.Value.(Expression)
		_, eb := b.Value.(Expression)
		if ea != eb {
			return buildErrorf("batch", "column %q mixes values and expressions", a.Column.Name())
		}
	}
	return nil
}

// result returns the row as written, with a NotInitialized slot per
// value the database computes.
func (r *insertRow) result(computed []Expression) *ResultRow {
	exprs := make([]Expression, 0, len(r.values)+len(computed))
	for _, a := range r.values {
		exprs = append(exprs, a.Column)
	}
	row := NewResultRow(append(exprs, computed...)...)
	for _, a := range r.values {
		if _, ok := a.Value.(Expression); !ok {
			row.Set(a.Column, a.Value)
		}
	}
	return row
}

// write renders an INSERT, a REPLACE or an upsert of rows of one table.
type write struct {
	kind      Kind
	table     *Table
	rows      []*insertRow
	ignore    bool
	keys      []AnyColumn
	updates   []Assignment
	returning []Expression
}

func (w *write) Kind() Kind        { return w.kind }
func (w *write) Targets() []*Table { return []*Table{w.table} }
func (w *write) Render(b *Builder) { w.render(b, w.returning) }

func (w *write) render(b *Builder, ret []Expression) {
	d := b.Dialect()
	switch {
	case w.kind == KindReplace:
		if !d.ReplaceInto {
			b.AddError(d.Unsupported("REPLACE INTO"))
		}
		b.WriteString("REPLACE")
	case w.ignore && d.InsertIgnore != "":
		b.WriteString(d.InsertIgnore)
	default:
		b.WriteString("INSERT")
	}
	b.WriteString(" INTO ").Ident(w.table.name)
	w.renderValues(b)
	switch {
	case w.kind == KindUpsert:
		w.renderUpsert(b)
	case w.ignore && d.InsertIgnore == "":
		if d.Upsert != dialect.UpsertOnConflict {
			b.AddError(d.Unsupported("INSERT IGNORE"))
		}
		b.WriteString(" ON CONFLICT DO NOTHING")
	}
	w.renderReturning(b, ret)
}

func (w *write) renderValues(b *Builder) {
	d := b.Dialect()
	first := w.rows[0]
	var (
		seqCols  []AnyColumn
		nextVals []string
	)
	for _, c := range first.generated {
		plan, err := c.Type().(*types.AutoIncrementType).Resolve(d, sequenceName(w.table, c))
		if err != nil {
			b.AddError(err)
			continue
		}
		if plan.NextVal != "" {
			seqCols = append(seqCols, c)
			nextVals = append(nextVals, plan.NextVal)
		}
	}
	if len(first.values) == 0 && len(seqCols) == 0 {
		switch {
		case d.Name == dialect.MySQL:
			b.WriteString(" () VALUES ")
			for i := range w.rows {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString("()")
			}
		case len(w.rows) > 1:
			b.AddError(buildErrorf("insert", "cannot insert several rows of defaults into %q in one statement", w.table.name))
		default:
			b.WriteString(" DEFAULT VALUES")
		}
		return
	}
	b.WriteString(" (")
	for i, a := range first.values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(a.Column.Name())
	}
	for i, c := range seqCols {
		if i > 0 || len(first.values) > 0 {
			b.WriteString(", ")
		}
		b.Ident(c.Name())
	}
	b.WriteString(") VALUES ")
	for i, r := range w.rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Byte('(')
		for j, a := range r.values {
			if j > 0 {
				b.WriteString(", ")
			}
			a.render(b)
		}
		for j, nv := range nextVals {
			if j > 0 || len(r.values) > 0 {
				b.WriteString(", ")
			}
			b.WriteString(nv)
		}
		b.Byte(')')
	}
}

// sequenceName is the sequence of an auto-increment column on dialects that
// only generate values from sequences.
func sequenceName(t *Table, c AnyColumn) string {
	return baseName(t.name) + "_" + c.Name() + "_seq"
}

func (w *write) renderReturning(b *Builder, ret []Expression) {
	if len(ret) == 0 {
		return
	}
	if !b.Dialect().Returning {
		b.AddError(b.Dialect().Unsupported("RETURNING"))
	}
	b.WriteString(" RETURNING ")
	for i, e := range ret {
		if i > 0 {
			b.WriteString(", ")
		}
		if c, ok := e.(AnyColumn); ok && c.Owner() == w.table {
			b.Ident(c.Name())
			continue
		}
		renderProjection(b, e)
	}
}

// generatesKeys reports whether the rows of the statement map one to one
// to the rows the database writes.
func (w *write) generatesKeys() bool {
	return w.kind == KindInsert && !w.ignore
}

// withReturning renders the write returning fields.
type withReturning struct {
	*write
	fields []Expression
}

func (r withReturning) Fields() []Expression { return r.fields }
func (r withReturning) Render(b *Builder)    { r.write.render(b, r.fields) }

// execWrite executes w and returns its rows as written, completed with the
// values the database returned. Dialects with RETURNING return the
// auto-increment keys of every row; others return the key of a single
// auto-increment column through LastInsertId, counting up from the first
// row.
func execWrite(ctx context.Context, tx *Tx, w *write) ([]*ResultRow, int64, error) {
	var computed []Expression
	if w.generatesKeys() {
		for _, c := range w.rows[0].generated {
			computed = append(computed, c)
		}
	}
	computed = dedupFields(append(computed, w.returning...))
	results := make([]*ResultRow, len(w.rows))
	for i, r := range w.rows {
		results[i] = r.result(computed)
	}
	if len(computed) > 0 && tx.Dialect().Returning {
		rows, err := tx.Query(ctx, withReturning{write: w, fields: computed})
		if err != nil {
			return nil, 0, err
		}
		got, err := rows.All()
		if err != nil {
			return nil, 0, err
		}
		for i, g := range got {
			if i >= len(results) {
				break
			}
			for _, e := range computed {
				v, err := g.Value(e)
				if err != nil {
					return nil, 0, err
				}
				results[i].Set(e, v)
			}
		}
		return results, int64(len(got)), nil
	}
	res, err := tx.exec(ctx, w)
	if err != nil {
		return nil, 0, err
	}
	n, err := affected(res)
	if err != nil {
		return nil, 0, err
	}
	if gen := w.rows[0].generated; w.generatesKeys() && len(gen) == 1 && res != nil {
		id, err := res.LastInsertId()
		if err != nil {
			return results, n, nil
		}
		for i, r := range results {
			v, err := fromDB(gen[0], id+int64(i))
			if err != nil {
				return nil, 0, err
			}
			r.Set(gen[0], v)
		}
	}
	return results, n, nil
}

// InsertStatement inserts one row.
type InsertStatement struct {
	w   write
	err error
}

// Insert returns a statement inserting one row into t. Columns left out are
// filled from their client or constant defaults, left to the database when
// it has a default for them, or to NULL when nullable. Leaving out any other
// column is a ValidationError wrapping ErrMissingValue.
func Insert(t *Table, assignments ...Assignment) *InsertStatement {
	return newInsert(KindInsert, t, assignments)
}

// Replace returns a statement inserting one row into t, deleting the rows
// it conflicts with first. Postgres does not support it.
func Replace(t *Table, assignments ...Assignment) *InsertStatement {
	return newInsert(KindReplace, t, assignments)
}

func newInsert(kind Kind, t *Table, assignments []Assignment) *InsertStatement {
	r, err := resolveRow(t, assignments)
	s := &InsertStatement{w: write{kind: kind, table: t}, err: err}
	if r != nil {
		s.w.rows = []*insertRow{r}
	}
	return s
}

// Ignore skips the row instead of failing when it conflicts with an
// existing row.
func (s *InsertStatement) Ignore() *InsertStatement {
	if s.w.kind != KindInsert && s.err == nil {
		s.err = buildErrorf("insert", "IGNORE only applies to INSERT")
	}
	s.w.ignore = true
	return s
}

// Returning adds expressions read back from the inserted row. Dialects
// without RETURNING reject it.
func (s *InsertStatement) Returning(exprs ...Expression) *InsertStatement {
	s.w.returning = append(s.w.returning, exprs...)
	return s
}

// Kind returns KindInsert or KindReplace.
func (s *InsertStatement) Kind() Kind { return s.w.kind }

// Targets returns the table.
func (s *InsertStatement) Targets() []*Table { return s.w.Targets() }

// Err returns the error recorded while building.
func (s *InsertStatement) Err() error { return s.err }

// Render renders the statement.
func (s *InsertStatement) Render(b *Builder) {
	if s.err != nil {
		b.AddError(s.err)
		return
	}
	s.w.Render(b)
}

// Exec inserts the row and returns it as written, with the auto-increment
// keys and the Returning expressions the database produced.
func (s *InsertStatement) Exec(ctx context.Context, tx *Tx) (*ResultRow, error) {
	if s.err != nil {
		return nil, s.err
	}
	rows, _, err := execWrite(ctx, tx, &s.w)
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

// InsertSelectStatement inserts the rows of a query.
type InsertSelectStatement struct {
	table   *Table
	query   AbstractQuery
	columns []AnyColumn
	err     error
}

// InsertSelect returns a statement inserting the rows of q into the columns
// of t. No columns means every column of t, in declaration order.
func InsertSelect(t *Table, q AbstractQuery, cols ...AnyColumn) *InsertSelectStatement {
	s := &InsertSelectStatement{table: t, query: q, columns: cols}
	if len(s.columns) == 0 {
		s.columns = t.Columns()
	}
	for _, c := range s.columns {
		if !t.owns(c.Origin()) {
			s.err = buildErrorf("insert", "column %q does not belong to table %q", c.Name(), t.name)
			return s
		}
	}
	if n := len(q.Fields()); n != len(s.columns) {
		s.err = buildErrorf("insert", "query selects %d fields for %d columns", n, len(s.columns))
	}
	return s
}

// Kind returns KindInsert.
func (*InsertSelectStatement) Kind() Kind { return KindInsert }

// Targets returns the table and the tables the query reads.
func (s *InsertSelectStatement) Targets() []*Table {
	return append([]*Table{s.table}, s.query.Targets()...)
}

// Render renders the statement.
func (s *InsertSelectStatement) Render(b *Builder) {
	b.AddError(s.err)
	b.WriteString("INSERT INTO ").Ident(s.table.name).WriteString(" (")
	for i, c := range s.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(c.Name())
	}
	b.WriteString(") ")
	s.query.Render(b)
}

// Exec executes the statement and returns the number of inserted rows.
func (s *InsertSelectStatement) Exec(ctx context.Context, tx *Tx) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	if err := s.query.Err(); err != nil {
		return 0, err
	}
	return tx.Exec(ctx, s)
}

