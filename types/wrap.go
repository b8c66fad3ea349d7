package types

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/syssam/tql/dialect"
)

// Nullable wraps t so that it accepts NULL. FromDB returns *T, nil for NULL,
// where T is the type t.FromDB returns. ToDB accepts T, *T and nil.
func Nullable[T any](t Type) Type {
	if n, ok := t.(nullable[T]); ok {
		return n
	}
	return nullable[T]{inner: t}
}

// Unwrap returns the type wrapped by a nullable type, or t itself.
func Unwrap(t Type) Type {
	if u, ok := t.(interface{ Unwrap() Type }); ok {
		return u.Unwrap()
	}
	return t
}

type nullable[T any] struct {
	inner Type
}

func (n nullable[T]) SQLType(d *dialect.Dialect) string { return n.inner.SQLType(d) }
func (nullable[T]) Nullable() bool                      { return true }
func (n nullable[T]) Unwrap() Type                      { return n.inner }

func (n nullable[T]) Family() dialect.DataType {
	if f, ok := n.inner.(Familied); ok {
		return f.Family()
	}
	return 0
}

func (n nullable[T]) FromDB(v any) (any, error) {
	if v == nil {
		return (*T)(nil), nil
	}
	x, err := n.inner.FromDB(v)
	if err != nil {
		return nil, err
	}
	t, ok := x.(T)
	if !ok {
		var zero T
		return nil, mismatch(fmt.Sprintf("%T", zero), x)
	}
	return &t, nil
}

func (n nullable[T]) ToDB(d *dialect.Dialect, v any) (any, error) {
	x, null := n.deref(v)
	if null {
		return nil, nil
	}
	return n.inner.ToDB(d, x)
}

func (n nullable[T]) Literal(d *dialect.Dialect, v any) (string, error) {
	x, null := n.deref(v)
	if null {
		return "NULL", nil
	}
	return n.inner.Literal(d, x)
}

func (n nullable[T]) DefaultLiteral(d *dialect.Dialect, v any) (string, error) {
	x, null := n.deref(v)
	if null {
		return "NULL", nil
	}
	return DefaultLiteral(d, n.inner, x)
}

func (n nullable[T]) Marker(d *dialect.Dialect) string { return MarkerFor(d, n.inner) }

func (n nullable[T]) Validate(v any) error {
	x, null := n.deref(v)
	if null {
		return nil
	}
	return n.inner.Validate(x)
}

func (nullable[T]) deref(v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, true
	case *T:
		if x == nil {
			return nil, true
		}
		return *x, false
	}
	return v, IsNil(v)
}

// AutoIncrementType is an integer type whose values are generated by the
// database, either by a native auto-increment column or by a sequence.
type AutoIncrementType struct {
	// Delegate converts the values.
	Delegate Type
	// Sequence is the explicit sequence name, if any.
	Sequence string
}

// AutoIncrement wraps an integer type. With a sequence name, dialects that
// support sequences draw values from it.
func AutoIncrement(delegate Type, sequence string) *AutoIncrementType {
	return &AutoIncrementType{Delegate: delegate, Sequence: sequence}
}

// AutoIncrementPlan is the per-dialect resolution of an auto-increment type.
type AutoIncrementPlan struct {
	// ColumnType is the DDL column type.
	ColumnType string
	// Sequence is set when values come from a sequence that must exist.
	Sequence string
	// NextVal is the expression inserted for the column when Sequence is set.
	NextVal string
}

// Resolve picks the auto-increment strategy for the dialect. fallback names
// the sequence used when the dialect only supports sequences and no explicit
// sequence was given.
func (a *AutoIncrementType) Resolve(d *dialect.Dialect, fallback string) (AutoIncrementPlan, error) {
	seq := a.Sequence
	switch {
	case seq != "" && d.Sequences:
	case d.NativeAutoIncrement:
		return AutoIncrementPlan{ColumnType: d.AutoIncrementType(a.Family())}, nil
	case d.Sequences && fallback != "":
		seq = fallback
	default:
		return AutoIncrementPlan{}, d.Unsupported("auto-increment columns")
	}
	return AutoIncrementPlan{
		ColumnType: a.Delegate.SQLType(d),
		Sequence:   seq,
		NextVal:    d.NextVal(seq),
	}, nil
}

func (a *AutoIncrementType) SQLType(d *dialect.Dialect) string {
	plan, err := a.Resolve(d, "")
	if err != nil {
		return a.Delegate.SQLType(d)
	}
	return plan.ColumnType
}

func (a *AutoIncrementType) Family() dialect.DataType {
	if f, ok := a.Delegate.(Familied); ok {
		return f.Family()
	}
	return dialect.TypeInt64
}

func (a *AutoIncrementType) Nullable() bool            { return a.Delegate.Nullable() }
func (a *AutoIncrementType) FromDB(v any) (any, error) { return a.Delegate.FromDB(v) }
func (a *AutoIncrementType) Validate(v any) error      { return a.Delegate.Validate(v) }
func (a *AutoIncrementType) Unwrap() Type              { return a.Delegate }

func (a *AutoIncrementType) ToDB(d *dialect.Dialect, v any) (any, error) {
	return a.Delegate.ToDB(d, v)
}

func (a *AutoIncrementType) Literal(d *dialect.Dialect, v any) (string, error) {
	return a.Delegate.Literal(d, v)
}

// Array returns an array type of elem values, bound through lib/pq. Only
// dialects with array columns accept it. FromDB returns []E.
func Array[E any](elem Type) Type {
	return array[E]{elem: elem}
}

type array[E any] struct {
	elem Type
}

func (a array[E]) SQLType(d *dialect.Dialect) string { return a.elem.SQLType(d) + "[]" }
func (array[E]) Nullable() bool                      { return false }

func (array[E]) FromDB(v any) (any, error) {
	var out []E
	if err := pq.Array(&out).Scan(v); err != nil {
		return nil, err
	}
	return out, nil
}

func (a array[E]) ToDB(d *dialect.Dialect, v any) (any, error) {
	if !d.Arrays {
		return nil, d.Unsupported("array columns")
	}
	if err := a.Validate(v); err != nil {
		return nil, err
	}
	return pq.Array(v), nil
}

func (a array[E]) Literal(d *dialect.Dialect, v any) (string, error) {
	if !d.Arrays {
		return "", d.Unsupported("array columns")
	}
	elems, ok := v.([]E)
	if !ok {
		return "", mismatch("slice", v)
	}
	lits := make([]string, len(elems))
	for i, e := range elems {
		lit, err := a.elem.Literal(d, e)
		if err != nil {
			return "", err
		}
		lits[i] = lit
	}
	return "ARRAY[" + strings.Join(lits, ", ") + "]", nil
}

func (a array[E]) Validate(v any) error {
	elems, ok := v.([]E)
	if !ok {
		return mismatch("slice", v)
	}
	for i, e := range elems {
		if err := a.elem.Validate(e); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// Marker casts the parameter so that the array type is known when the
// placeholder appears in an untyped position such as = ANY(...).
func (a array[E]) Marker(d *dialect.Dialect) string {
	if d != nil && d.Arrays && d.NumberedParams {
		return "?::" + a.SQLType(d)
	}
	return "?"
}
