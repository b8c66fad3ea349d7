package tql

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/syssam/tql/types"
)

// NotInitialized is the value of a slot that was never assigned. It differs
// from nil, which is a SQL NULL.
var NotInitialized any = notInitialized{}

type notInitialized struct{}

func (notInitialized) String() string { return "<not initialized>" }

// Errors returned by ResultRow lookups.
var (
	// ErrNotProjected is returned for an expression the row has no slot for.
	ErrNotProjected = errors.New("tql: expression is not part of the row")
	// ErrNotInitialized is returned for a slot that was never assigned.
	ErrNotInitialized = errors.New("tql: value was never assigned")
)

// ResultRow holds the values of one row, in slots keyed by the rendered SQL
// of the projected expressions.
type ResultRow struct {
	exprs  []Expression
	index  map[string]int
	values []any
	// owned is set once the row has its own copy of exprs and index.
	// Rows read from one cursor share them until a slot is added.
	owned bool
}

// rowIndex maps projected expressions to slots. Named expressions are also
// reachable through the expression they name.
func rowIndex(exprs []Expression) map[string]int {
	index := make(map[string]int, len(exprs))
	for i, e := range exprs {
		k := Key(e)
		if _, ok := index[k]; !ok {
			index[k] = i
		}
	}
	for i, e := range exprs {
		if a, ok := e.(aliased); ok {
			if k := Key(a.Delegate()); k != "" {
				if _, ok := index[k]; !ok {
					index[k] = i
				}
			}
		}
	}
	return index
}

// NewResultRow returns a row with a slot per expression, every slot
// NotInitialized. It is used to synthesize rows.
func NewResultRow(exprs ...Expression) *ResultRow {
	exprs = dedupFields(exprs)
	values := make([]any, len(exprs))
	for i := range values {
		values[i] = NotInitialized
	}
	return &ResultRow{exprs: exprs, index: rowIndex(exprs), values: values, owned: true}
}

func newRowFrom(exprs []Expression, index map[string]int, values []any) *ResultRow {
	return &ResultRow{exprs: exprs, index: index, values: values}
}

// Len returns the number of slots.
func (r *ResultRow) Len() int { return len(r.values) }

// Exprs returns the expressions of the slots in order.
func (r *ResultRow) Exprs() []Expression { return append([]Expression(nil), r.exprs...) }

func (r *ResultRow) slot(e Expression) (int, bool) {
	i, ok := r.index[Key(e)]
	if ok {
		return i, true
	}
	if a, ok := e.(aliased); ok {
		i, ok = r.index[Key(a.Delegate())]
	}
	return i, ok
}

// Value returns the raw slot value of e: nil for NULL, NotInitialized for
// a synthesized slot never assigned.
func (r *ResultRow) Value(e Expression) (any, error) {
	i, ok := r.slot(e)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotProjected, Key(e))
	}
	return r.values[i], nil
}

// HasValue reports whether the row has an assigned slot for e.
func (r *ResultRow) HasValue(e Expression) bool {
	i, ok := r.slot(e)
	return ok && r.values[i] != NotInitialized
}

// Set assigns the slot of e, adding a slot if the row has none.
func (r *ResultRow) Set(e Expression, v any) {
	if i, ok := r.slot(e); ok {
		r.values[i] = v
		return
	}
	if !r.owned {
		r.exprs = slices.Clone(r.exprs)
		r.index = maps.Clone(r.index)
		r.owned = true
	}
	r.exprs = append(r.exprs, e)
	r.values = append(r.values, v)
	r.index[Key(e)] = len(r.values) - 1
}

// Get returns the value of e converted to T. A NULL reads as the zero value
// of T; nullable columns read as pointers to tell NULL apart.
//
// An identifier column and the EntityID column wrapping it resolve to the
// same slot; the value is converted to the representation asked for.
func Get[T any](r *ResultRow, e TypedExpression[T]) (T, error) {
	var zero T
	v, err := r.Value(e)
	if err != nil {
		return zero, err
	}
	switch v := v.(type) {
	case nil:
		return zero, nil
	case notInitialized:
		return zero, fmt.Errorf("%w: %s", ErrNotInitialized, Key(e))
	case T:
		return v, nil
	}
	return convertSlot[T](v, e.Type())
}

// Lookup is Get returning false instead of an error when the row has no
// assigned value for e.
func Lookup[T any](r *ResultRow, e TypedExpression[T]) (T, bool) {
	v, err := Get(r, e)
	return v, err == nil && r.HasValue(e)
}

// convertSlot converts a value held in another representation, such as
// a plain identifier read for an EntityID column or the reverse.
func convertSlot[T any](v any, t types.Type) (T, error) {
	var zero T
	if id, ok := v.(identifier); ok {
		if x, ok := id.rawID().(T); ok {
			return x, nil
		}
		v = id.rawID()
	}
	if t != nil {
		cv, err := t.FromDB(v)
		if err != nil {
			return zero, err
		}
		if x, ok := cv.(T); ok {
			return x, nil
		}
	}
	return zero, fmt.Errorf("%w: want %T, got %T", types.ErrMismatch, zero, v)
}

func (r *ResultRow) String() string {
	s := "{"
	for i, e := range r.exprs {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%v", Key(e), r.values[i])
	}
	return s + "}"
}
