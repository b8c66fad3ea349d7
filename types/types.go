// Package types defines the conversion contract between Go values and
// database wire values, and the built-in column types.
//
// A Type is erased: it converts values of one Go type through any. The typed
// column API in package tql pairs every Type with the Go type its FromDB
// returns.
package types

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/syssam/tql/dialect"
)

// Type is the conversion and validation contract of a column type.
type Type interface {
	// SQLType returns the column type name in DDL for the dialect.
	SQLType(d *dialect.Dialect) string
	// Nullable reports whether the type accepts NULL.
	Nullable() bool
	// FromDB converts a value read from the driver. It is never called with nil
	// on a non-nullable type.
	FromDB(v any) (any, error)
	// ToDB converts a non-nil value into the driver argument bound for it.
	ToDB(d *dialect.Dialect, v any) (any, error)
	// Literal renders a non-nil value as an inline SQL literal.
	Literal(d *dialect.Dialect, v any) (string, error)
	// Validate rejects values that cannot be stored, before any I/O.
	Validate(v any) error
}

// Marker is implemented by types whose bind parameter needs decoration.
// The returned marker contains a single "?" replaced by the dialect placeholder.
type Marker interface {
	Marker(d *dialect.Dialect) string
}

// DefaultLiteraler is implemented by types whose DDL default value is not
// written as their plain literal.
type DefaultLiteraler interface {
	DefaultLiteral(d *dialect.Dialect, v any) (string, error)
}

// Familied is implemented by types backed by a single dialect data type family.
type Familied interface {
	Family() dialect.DataType
}

// Validation errors returned by types. Callers match them with errors.Is.
var (
	ErrNull       = errors.New("types: null value for non-nullable type")
	ErrTooLong    = errors.New("types: value exceeds declared length")
	ErrMismatch   = errors.New("types: unexpected value type")
	ErrOutOfRange = errors.New("types: value out of range")
	ErrNotAllowed = errors.New("types: value not allowed")
)

// MarkerFor returns the parameter marker of the type for the dialect.
func MarkerFor(d *dialect.Dialect, t Type) string {
	if m, ok := t.(Marker); ok {
		return m.Marker(d)
	}
	return "?"
}

// DefaultLiteral renders v as the DDL default of a column of type t.
func DefaultLiteral(d *dialect.Dialect, t Type, v any) (string, error) {
	if v == nil {
		return "NULL", nil
	}
	if dl, ok := t.(DefaultLiteraler); ok {
		return dl.DefaultLiteral(d, v)
	}
	return t.Literal(d, v)
}

// Check validates v against t, including nullability.
func Check(t Type, v any) error {
	if IsNil(v) {
		if t.Nullable() {
			return nil
		}
		return ErrNull
	}
	return t.Validate(v)
}

// IsNil reports whether v is nil or a nil pointer.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	if n, ok := v.(interface{ IsNil() bool }); ok {
		return n.IsNil()
	}
	return isNilPointer(v)
}

func mismatch(want string, got any) error {
	return fmt.Errorf("%w: want %s, got %T", ErrMismatch, want, got)
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map:
		return rv.IsNil()
	default:
		return false
	}
}
