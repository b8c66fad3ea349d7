package tql

import "context"

// DeleteStatement deletes the rows of one table.
type DeleteStatement struct {
	table    *Table
	where    Op
	all      bool
	limit    int64
	hasLimit bool
}

// Delete returns a statement deleting the rows of t matching a filter set
// with Where. Rendering it without a filter is a BuildError; use DeleteAll
// to empty a table.
func Delete(t *Table) *DeleteStatement {
	return &DeleteStatement{table: t}
}

// DeleteAll returns a statement deleting every row of t.
func DeleteAll(t *Table) *DeleteStatement {
	return &DeleteStatement{table: t, all: true}
}

// Where replaces the filter with the conjunction of ops.
func (s *DeleteStatement) Where(ops ...Op) *DeleteStatement {
	s.where = And(ops...)
	return s
}

// Limit bounds the number of deleted rows. Only some dialects support it.
func (s *DeleteStatement) Limit(n int64) *DeleteStatement {
	s.limit, s.hasLimit = n, true
	return s
}

// Kind returns KindDelete.
func (*DeleteStatement) Kind() Kind { return KindDelete }

// Targets returns the table.
func (s *DeleteStatement) Targets() []*Table { return []*Table{s.table} }

// Render renders the statement.
func (s *DeleteStatement) Render(b *Builder) {
	if s.where == nil && !s.all {
		b.AddError(buildErrorf("delete", "no filter for table %q, use DeleteAll", s.table.name))
	}
	b.WriteString("DELETE FROM ").Ident(s.table.name)
	renderWhereLimit(b, s.where, s.limit, s.hasLimit)
}

// Exec executes the statement and returns the number of deleted rows.
func (s *DeleteStatement) Exec(ctx context.Context, tx *Tx) (int64, error) {
	return tx.Exec(ctx, s)
}
