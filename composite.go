package tql

import (
	"fmt"

	"github.com/syssam/tql/types"
)

// Composite is one logical value of type T stored in two or more physical
// columns.
//
//	var Span = tql.NewComposite(
//		func(s Span) []any { return []any{s.Start, s.End} },
//		func(vs []any) (Span, error) { return Span{vs[0].(time.Time), vs[1].(time.Time)}, nil },
//		Events.Start, Events.End,
//	)
type Composite[T any] struct {
	columns   []AnyColumn
	nullable  bool
	decompose func(T) []any
	compose   func([]any) (T, error)
}

// NewComposite declares a composite over cols. decompose returns the values
// of the physical columns in column order; compose builds the value back
// from them. compose is never called with all values NULL.
func NewComposite[T any](decompose func(T) []any, compose func([]any) (T, error), cols ...AnyColumn) *Composite[T] {
	if len(cols) < 2 {
		panic(buildErrorf("composite", "a composite needs at least two columns, got %d", len(cols)))
	}
	return &Composite[T]{columns: cols, decompose: decompose, compose: compose}
}

// NullableComposite returns a nullable variant of c: nil decomposes to all
// NULL columns and all NULL columns compose to nil.
func NullableComposite[T any](c *Composite[T]) *Composite[*T] {
	return &Composite[*T]{
		columns:  c.columns,
		nullable: true,
		decompose: func(v *T) []any {
			if v == nil {
				return make([]any, len(c.columns))
			}
			return c.decompose(*v)
		},
		compose: func(vs []any) (*T, error) {
			v, err := c.compose(vs)
			if err != nil {
				return nil, err
			}
			return &v, nil
		},
	}
}

// Columns returns the physical columns.
func (c *Composite[T]) Columns() []AnyColumn { return c.columns }

// IsNullable reports whether the composite accepts nil.
func (c *Composite[T]) IsNullable() bool { return c.nullable }

// Render renders the physical columns as a list.
func (c *Composite[T]) Render(b *Builder) {
	for i, col := range c.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		col.Render(b)
	}
}

func (c *Composite[T]) expand() []Expression {
	exprs := make([]Expression, len(c.columns))
	for i, col := range c.columns {
		exprs[i] = col
	}
	return exprs
}

// expander is implemented by expressions projected as several fields.
type expander interface {
	expand() []Expression
}

// Decompose returns the value of every physical column for v.
func (c *Composite[T]) Decompose(v T) (map[AnyColumn]any, error) {
	if !c.nullable && types.IsNil(any(v)) {
		return nil, NewValidationError(c.columns[0].Name(), types.ErrNull)
	}
	vs := c.decompose(v)
	if len(vs) != len(c.columns) {
		return nil, buildErrorf("composite", "decomposed %d values for %d columns", len(vs), len(c.columns))
	}
	m := make(map[AnyColumn]any, len(vs))
	for i, col := range c.columns {
		m[col] = vs[i]
	}
	return m, nil
}

// Compose builds a value from the physical column values, in column order.
func (c *Composite[T]) Compose(values []any) (T, error) {
	var zero T
	if len(values) != len(c.columns) {
		return zero, buildErrorf("composite", "%d values for %d columns", len(values), len(c.columns))
	}
	allNull := true
	for _, v := range values {
		if !types.IsNil(v) {
			allNull = false
			break
		}
	}
	if allNull {
		if c.nullable {
			return zero, nil
		}
		return zero, NewValidationError(c.columns[0].Name(), fmt.Errorf("%w: all columns of the composite are NULL", types.ErrNull))
	}
	return c.compose(values)
}

// Set assigns v to the physical columns.
func (c *Composite[T]) Set(v T) []Assignment {
	m, err := c.Decompose(v)
	if err != nil {
		return []Assignment{{Column: c.columns[0], err: err}}
	}
	as := make([]Assignment, len(c.columns))
	for i, col := range c.columns {
		as[i] = Assignment{Column: col, Value: m[col]}
	}
	return as
}

// EQ returns a predicate matching every physical column against v.
func (c *Composite[T]) EQ(v T) Op {
	m, err := c.Decompose(v)
	if err != nil {
		return &failedOp{err: err}
	}
	ops := make([]Op, len(c.columns))
	for i, col := range c.columns {
		if types.IsNil(m[col]) {
			ops[i] = IsNull(col)
			continue
		}
		ops[i] = compare(col, "=", Param(m[col], col.Type()))
	}
	return And(ops...)
}

// GetComposite reads a composite from a row projecting its columns.
func GetComposite[T any](r *ResultRow, c *Composite[T]) (T, error) {
	values := make([]any, len(c.columns))
	for i, col := range c.columns {
		v, err := r.Value(col)
		if err != nil {
			var zero T
			return zero, err
		}
		values[i] = v
	}
	return c.Compose(values)
}

// failedOp carries an error to the builder it renders into.
type failedOp struct {
	predicate
	err error
}

func (p *failedOp) Render(b *Builder) {
	b.AddError(p.err)
	b.WriteString(b.Dialect().Bool(false))
}
