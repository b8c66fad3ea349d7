package types

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/syssam/tql/dialect"
)

// Text is the unbounded text type. FromDB returns string.
var Text Type = text{family: dialect.TypeText}

// VarChar returns a variable-length text type holding at most n characters.
// FromDB returns string.
func VarChar(n int) Type {
	return text{family: dialect.TypeVarChar, size: n}
}

// Char returns a fixed-length text type of n characters. Trailing pad
// spaces are removed when reading. FromDB returns string.
func Char(n int) Type {
	return text{family: dialect.TypeChar, size: n}
}

type text struct {
	family dialect.DataType
	size   int
}

func (t text) SQLType(d *dialect.Dialect) string { return d.SizedTypeName(t.family, t.size) }
func (t text) Family() dialect.DataType          { return t.family }
func (t text) Size() int                         { return t.size }
func (text) Nullable() bool                      { return false }

func (t text) FromDB(v any) (any, error) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return nil, mismatch("string", v)
	}
	if t.family == dialect.TypeChar {
		s = strings.TrimRight(s, " ")
	}
	return s, nil
}

func (t text) ToDB(_ *dialect.Dialect, v any) (any, error) {
	return t.check(v)
}

func (t text) Literal(d *dialect.Dialect, v any) (string, error) {
	s, err := t.check(v)
	if err != nil {
		return "", err
	}
	return d.String(s), nil
}

func (t text) DefaultLiteral(d *dialect.Dialect, v any) (string, error) {
	lit, err := t.Literal(d, v)
	if err != nil {
		return "", err
	}
	if t.family == dialect.TypeText && d.ExprTextDefaults {
		return "(" + lit + ")", nil
	}
	return lit, nil
}

func (t text) Validate(v any) error {
	_, err := t.check(v)
	return err
}

func (t text) check(v any) (string, error) {
	s, err := toString(v)
	if err != nil {
		return "", err
	}
	if t.size > 0 {
		if n := utf8.RuneCountInString(s); n > t.size {
			return "", fmt.Errorf("%w: %d characters, max %d", ErrTooLong, n, t.size)
		}
	}
	return s, nil
}

func toString(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	return "", mismatch("string", v)
}

// Enum returns a text type restricted to the given values. The column is
// sized to the longest value. FromDB returns E.
func Enum[E ~string](values ...E) Type {
	e := enum[E]{values: values}
	for _, v := range values {
		e.size = max(e.size, utf8.RuneCountInString(string(v)))
	}
	return e
}

type enum[E ~string] struct {
	values []E
	size   int
}

func (t enum[E]) SQLType(d *dialect.Dialect) string {
	return d.SizedTypeName(dialect.TypeVarChar, t.size)
}

func (enum[E]) Nullable() bool { return false }

func (t enum[E]) FromDB(v any) (any, error) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return nil, mismatch("string", v)
	}
	return E(s), nil
}

func (t enum[E]) ToDB(_ *dialect.Dialect, v any) (any, error) {
	e, err := t.check(v)
	return string(e), err
}

func (t enum[E]) Literal(d *dialect.Dialect, v any) (string, error) {
	e, err := t.check(v)
	if err != nil {
		return "", err
	}
	return d.String(string(e)), nil
}

func (t enum[E]) Validate(v any) error {
	_, err := t.check(v)
	return err
}

// Values returns the allowed values.
func (t enum[E]) Values() []E { return slices.Clone(t.values) }

func (t enum[E]) check(v any) (E, error) {
	var e E
	switch x := v.(type) {
	case E:
		e = x
	case string:
		e = E(x)
	default:
		return e, mismatch(fmt.Sprintf("%T", e), v)
	}
	if !slices.Contains(t.values, e) {
		return e, fmt.Errorf("%w: %q", ErrNotAllowed, string(e))
	}
	return e, nil
}
