package tql

import (
	"context"

	"github.com/syssam/tql/dialect"
	"github.com/syssam/tql/types"
)

// UpsertStatement inserts one row, or updates the row it conflicts with.
type UpsertStatement struct {
	w   write
	err error
}

// Upsert returns a statement inserting one row into t. When the row
// conflicts with an existing row on keys, the existing row is updated with
// the inserted values of the other columns instead. No keys means the
// primary key of t.
//
//	tql.Upsert(Counters, []tql.AnyColumn{CounterName},
//		CounterName.Set("visits"), CounterHits.Set(1),
//	).OnUpdate(CounterHits.SetExpr(tql.Plus[int64](CounterHits, tql.Value[int64](1))))
func Upsert(t *Table, keys []AnyColumn, assignments ...Assignment) *UpsertStatement {
	s := &UpsertStatement{w: write{kind: KindUpsert, table: t}}
	r, err := resolveRow(t, assignments)
	if err != nil {
		s.err = err
		return s
	}
	s.w.rows = []*insertRow{r}
	s.w.keys, s.err = upsertKeys(t, keys)
	return s
}

func upsertKeys(t *Table, keys []AnyColumn) ([]AnyColumn, error) {
	if len(keys) == 0 {
		keys = t.PrimaryKeyColumns()
	}
	if len(keys) == 0 {
		return nil, buildErrorf("upsert", "table %q has no primary key and no conflict keys were given", t.name)
	}
	out := make([]AnyColumn, len(keys))
	for i, k := range keys {
		if !t.owns(k.Origin()) {
			return nil, buildErrorf("upsert", "conflict key %q does not belong to table %q", k.Name(), t.name)
		}
		out[i] = k.Origin()
	}
	return out, nil
}

// OnUpdate sets the assignments applied to a conflicting row in place of the
// inserted value of their column.
func (s *UpsertStatement) OnUpdate(assignments ...Assignment) *UpsertStatement {
	for _, a := range assignments {
		if a.err != nil && s.err == nil {
			s.err = a.err
		}
		if !s.w.table.owns(a.Column.Origin()) && s.err == nil {
			s.err = buildErrorf("upsert", "column %q does not belong to table %q", a.Column.Name(), s.w.table.name)
		}
	}
	s.w.updates = append(s.w.updates, assignments...)
	return s
}

// Returning adds expressions read back from the written row.
func (s *UpsertStatement) Returning(exprs ...Expression) *UpsertStatement {
	s.w.returning = append(s.w.returning, exprs...)
	return s
}

// Kind returns KindUpsert.
func (*UpsertStatement) Kind() Kind { return KindUpsert }

// Targets returns the table.
func (s *UpsertStatement) Targets() []*Table { return s.w.Targets() }

// Err returns the error recorded while building.
func (s *UpsertStatement) Err() error { return s.err }

// Render renders the statement.
func (s *UpsertStatement) Render(b *Builder) {
	if s.err != nil {
		b.AddError(s.err)
		return
	}
	s.w.Render(b)
}

// Exec writes the row and returns it as written, with the Returning
// expressions the database produced.
func (s *UpsertStatement) Exec(ctx context.Context, tx *Tx) (*ResultRow, error) {
	if s.err != nil {
		return nil, s.err
	}
	rows, _, err := execWrite(ctx, tx, &s.w)
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

// upsertAssignments returns the SET list of the conflict clause: every
// written column but the keys takes its inserted value, unless overridden.
func (w *write) upsertAssignments() []Assignment {
	var (
		out  []Assignment
		over = make(map[AnyColumn]Assignment, len(w.updates))
		keys = make(map[AnyColumn]bool, len(w.keys))
	)
	for _, a := range w.updates {
		over[a.Column.Origin()] = a
	}
	for _, k := range w.keys {
		keys[k] = true
	}
	for _, a := range w.rows[0].values {
		c := a.Column
		if a, ok := over[c]; ok {
			out = append(out, a)
			delete(over, c)
			continue
		}
		if !keys[c] {
			out = append(out, Assignment{Column: c, Value: &excluded[any]{col: c}})
		}
	}
	for _, a := range w.updates {
		if _, ok := over[a.Column.Origin()]; ok {
			out = append(out, a)
		}
	}
	return out
}

func (w *write) renderUpsert(b *Builder) {
	d := b.Dialect()
	updates := w.upsertAssignments()
	switch d.Upsert {
	case dialect.UpsertOnConflict:
		b.WriteString(" ON CONFLICT (")
		for i, k := range w.keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Ident(k.Name())
		}
		b.WriteString(")")
		if len(updates) == 0 {
			b.WriteString(" DO NOTHING")
			return
		}
		b.WriteString(" DO UPDATE SET ")
	case dialect.UpsertOnDuplicateKey:
		b.WriteString(" ON DUPLICATE KEY UPDATE ")
		if len(updates) == 0 {
			k := w.keys[0]
			b.Ident(k.Name()).WriteString(" = ").Ident(k.Name())
			return
		}
	default:
		b.AddError(d.Unsupported("upsert"))
		return
	}
	renderSet(b, updates)
}

// renderSet renders the assignments of a SET clause with unqualified
// column names.
func renderSet(b *Builder, assignments []Assignment) {
	for i, a := range assignments {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(a.Column.Name()).WriteString(" = ")
		a.render(b)
	}
}

type excluded[T any] struct {
	cache
	col AnyColumn
}

// Excluded refers, in the OnUpdate assignments of an upsert, to the value
// the conflicting insert proposed for c.
func Excluded[T any](c *Column[T]) TypedExpression[T] {
	return &excluded[T]{col: c}
}

func (e *excluded[T]) Render(b *Builder) {
	if b.Dialect().Upsert == dialect.UpsertOnDuplicateKey {
		b.WriteString("VALUES(").Ident(e.col.Name()).Byte(')')
		return
	}
	b.WriteString("EXCLUDED.").Ident(e.col.Name())
}

func (e *excluded[T]) Type() types.Type { return e.col.Type() }
func (*excluded[T]) yields(T)           {}
