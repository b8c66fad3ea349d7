package tql

import (
	"fmt"
	"strings"

	"github.com/syssam/tql/dialect"
	"github.com/syssam/tql/types"
)

// Arg is a bound parameter: the value as given by the caller and the column
// type it was validated against. A nil Type binds the value unchanged.
type Arg struct {
	Type  types.Type
	Value any
	wire  any
}

// DBValue returns the driver value bound for the argument.
func (a Arg) DBValue() any { return a.wire }

func argValues(args []Arg) []any {
	vs := make([]any, len(args))
	for i, a := range args {
		vs[i] = a.wire
	}
	return vs
}

// Builder is the render buffer shared by the nodes of one statement.
//
// In prepared mode values are written as dialect placeholders and collected
// in encounter order. In inline mode values are written as literals, which is
// used for expression identity, logging and EXPLAIN.
//
// A Builder records the first error reported while rendering. Nodes keep
// rendering after an error so that callers always get text back.
type Builder struct {
	sb       strings.Builder
	dialect  *dialect.Dialect
	prepared bool
	args     []Arg
	err      error
	// bare renders column names unqualified, for DDL clauses.
	bare bool
}

// NewBuilder returns a Builder rendering for the dialect.
func NewBuilder(d *dialect.Dialect, prepared bool) *Builder {
	return &Builder{dialect: d, prepared: prepared}
}

// Dialect returns the dialect the builder renders for.
func (b *Builder) Dialect() *dialect.Dialect { return b.dialect }

// Prepared reports whether values are bound as parameters.
func (b *Builder) Prepared() bool { return b.prepared }

// WriteString appends s to the buffer.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// Byte appends c to the buffer.
func (b *Builder) Byte(c byte) *Builder {
	b.sb.WriteByte(c)
	return b
}

// Pad appends a single space.
func (b *Builder) Pad() *Builder {
	return b.Byte(' ')
}

// Ident appends a quoted identifier.
func (b *Builder) Ident(name string) *Builder {
	return b.WriteString(b.dialect.Quote(name))
}

// Wrap appends the output of f enclosed in parentheses.
func (b *Builder) Wrap(f func(*Builder)) *Builder {
	b.Byte('(')
	f(b)
	return b.Byte(')')
}

// Join renders the expressions separated by sep.
func (b *Builder) Join(sep string, exprs ...Expression) *Builder {
	for i, e := range exprs {
		if i > 0 {
			b.WriteString(sep)
		}
		e.Render(b)
	}
	return b
}

// Register validates v against t and appends it either as a placeholder or
// as an inline literal. A nil t infers the type from v.
func (b *Builder) Register(t types.Type, v any) *Builder {
	return b.bind("", t, v)
}

// bind is Register reporting validation failures against a column name.
func (b *Builder) bind(name string, t types.Type, v any) *Builder {
	if t == nil {
		v = indirect(v)
		t = inferType(v)
	}
	if t != nil {
		if err := types.Check(t, v); err != nil {
			b.AddError(NewValidationError(name, err))
			return b.WriteString("NULL")
		}
	}
	if !b.prepared {
		return b.literal(t, v)
	}
	wire, err := toWire(b.dialect, t, v)
	if err != nil {
		b.AddError(NewValidationError(name, err))
	}
	b.args = append(b.args, Arg{Type: t, Value: v, wire: wire})
	marker := "?"
	if t != nil {
		marker = types.MarkerFor(b.dialect, t)
	}
	return b.WriteString(strings.Replace(marker, "?", b.dialect.Placeholder(len(b.args)), 1))
}

func (b *Builder) literal(t types.Type, v any) *Builder {
	if types.IsNil(v) {
		return b.WriteString("NULL")
	}
	if t == nil && b.dialect.Name == dialect.Canonical {
		return b.WriteString(b.dialect.String(fmt.Sprint(v)))
	}
	if t == nil {
		b.AddError(b.dialect.Unsupported("inline literals of type " + typeName(v)))
		return b.WriteString("NULL")
	}
	lit, err := t.Literal(b.dialect, v)
	if err != nil {
		b.AddError(err)
		return b.WriteString("NULL")
	}
	return b.WriteString(lit)
}

func toWire(d *dialect.Dialect, t types.Type, v any) (any, error) {
	if types.IsNil(v) {
		return nil, nil
	}
	if t == nil {
		return v, nil
	}
	return t.ToDB(d, v)
}

// renderString renders f into a detached buffer that shares the arguments and
// the error of b, and returns the text.
func (b *Builder) renderString(f func(*Builder)) string {
	child := &Builder{dialect: b.dialect, prepared: b.prepared, args: b.args, err: b.err, bare: b.bare}
	f(child)
	b.args, b.err = child.args, child.err
	return child.String()
}

// AddError records err if it is the first error of the builder.
func (b *Builder) AddError(err error) *Builder {
	if err != nil && b.err == nil {
		b.err = err
	}
	return b
}

// Err returns the first error recorded while rendering.
func (b *Builder) Err() error { return b.err }

// Args returns the bound arguments in placeholder order.
func (b *Builder) Args() []Arg { return b.args }

// Len returns the length of the rendered text.
func (b *Builder) Len() int { return b.sb.Len() }

// String returns the rendered text.
func (b *Builder) String() string { return b.sb.String() }

// Query returns the rendered text and its arguments.
func (b *Builder) Query() (string, []Arg) {
	return b.String(), b.args
}

// clone returns an empty builder with the same dialect and mode.
func (b *Builder) clone() *Builder {
	return NewBuilder(b.dialect, b.prepared)
}
