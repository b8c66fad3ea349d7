package tql

import (
	"context"
	"strconv"
)

// UpdateStatement updates the rows of one table.
type UpdateStatement struct {
	table       *Table
	assignments []Assignment
	where       Op
	limit       int64
	hasLimit    bool
	err         error
}

// Update returns a statement assigning values to the rows of t.
func Update(t *Table, assignments ...Assignment) *UpdateStatement {
	s := &UpdateStatement{table: t}
	if len(assignments) == 0 {
		s.err = buildErrorf("update", "no assignments for table %q", t.name)
	}
	return s.Set(assignments...)
}

// Set appends assignments.
func (s *UpdateStatement) Set(assignments ...Assignment) *UpdateStatement {
	for _, a := range assignments {
		if a.err != nil && s.err == nil {
			s.err = a.err
		}
		if !s.table.owns(a.Column.Origin()) && s.err == nil {
			s.err = buildErrorf("update", "column %q does not belong to table %q", a.Column.Name(), s.table.name)
		}
	}
	s.assignments = append(s.assignments, assignments...)
	return s
}

// Where replaces the filter with the conjunction of ops.
func (s *UpdateStatement) Where(ops ...Op) *UpdateStatement {
	s.where = And(ops...)
	return s
}

// Limit bounds the number of updated rows. Only some dialects support it.
func (s *UpdateStatement) Limit(n int64) *UpdateStatement {
	s.limit, s.hasLimit = n, true
	return s
}

// Kind returns KindUpdate.
func (*UpdateStatement) Kind() Kind { return KindUpdate }

// Targets returns the table.
func (s *UpdateStatement) Targets() []*Table { return []*Table{s.table} }

// Err returns the error recorded while building.
func (s *UpdateStatement) Err() error { return s.err }

// Render renders the statement.
func (s *UpdateStatement) Render(b *Builder) {
	b.AddError(s.err)
	b.WriteString("UPDATE ").Ident(s.table.name).WriteString(" SET ")
	renderSet(b, s.assignments)
	renderWhereLimit(b, s.where, s.limit, s.hasLimit)
}

// Exec executes the statement and returns the number of updated rows.
func (s *UpdateStatement) Exec(ctx context.Context, tx *Tx) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return tx.Exec(ctx, s)
}

func renderWhereLimit(b *Builder, where Op, limit int64, hasLimit bool) {
	if where != nil {
		b.WriteString(" WHERE ")
		where.Render(b)
	}
	if hasLimit {
		if !b.Dialect().UpdateLimit {
			b.AddError(b.Dialect().Unsupported("LIMIT on UPDATE and DELETE"))
		}
		b.WriteString(" LIMIT ").WriteString(strconv.FormatInt(limit, 10))
	}
}
