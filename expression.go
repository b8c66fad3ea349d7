package tql

import (
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/syssam/tql/dialect"
	"github.com/syssam/tql/types"
)

// Expression is a node of the SQL tree. Render appends the node's SQL to the
// builder and registers the values it binds.
//
// Two expressions are equal when they render the same canonical SQL; see Key.
type Expression interface {
	Render(b *Builder)
}

// TypedExpression is an expression producing values of the Go type T.
// Type returns the column type used to bind values compared against the
// expression and to convert the values read for it, or nil when unknown.
type TypedExpression[T any] interface {
	Expression
	Type() types.Type
	yields(T)
}

// Op is a boolean predicate.
type Op = TypedExpression[bool]

// ComplexExpression is implemented by expressions that must be wrapped in
// parentheses when they appear as the operand of an operator.
type ComplexExpression interface {
	Expression
	compound()
}

// cache memoizes the canonical render of a node. Nodes embedding it must not
// be copied after construction.
type cache struct {
	key atomic.Pointer[string]
}

func (c *cache) memo() *atomic.Pointer[string] { return &c.key }

type memoized interface {
	memo() *atomic.Pointer[string]
}

// Key returns the identity of the expression: its SQL rendered with inline
// values against the canonical dialect. The text is computed once per node.
// Concurrent first calls may both render; they store the same text.
func Key(e Expression) string {
	if e == nil {
		return ""
	}
	m, ok := e.(memoized)
	if !ok {
		return renderKey(e)
	}
	p := m.memo()
	if s := p.Load(); s != nil {
		return *s
	}
	s := renderKey(e)
	p.Store(&s)
	return s
}

func renderKey(e Expression) string {
	b := NewBuilder(dialect.Generic, false)
	e.Render(b)
	return b.String()
}

// Equal reports whether two expressions render the same SQL.
func Equal(a, b Expression) bool {
	return Key(a) == Key(b)
}

// String renders the expression for the dialect with inline values.
func String(e Expression, d *dialect.Dialect) (string, error) {
	b := NewBuilder(d, false)
	e.Render(b)
	return b.String(), b.Err()
}

// appendOperand renders e, parenthesized when it is a complex expression.
func appendOperand(b *Builder, e Expression) {
	if _, ok := e.(ComplexExpression); ok {
		b.Wrap(e.Render)
		return
	}
	e.Render(b)
}

// exprType returns the column type of a typed expression.
func exprType(e Expression) types.Type {
	if t, ok := e.(interface{ Type() types.Type }); ok {
		return t.Type()
	}
	return nil
}

type param[T any] struct {
	cache
	value T
	typ   types.Type
}

// Param returns a value bound as a parameter against t. A nil t infers the
// column type from the value.
func Param[T any](v T, t types.Type) TypedExpression[T] {
	return &param[T]{value: v, typ: t}
}

// Value returns a parameter with a column type inferred from v.
func Value[T any](v T) TypedExpression[T] {
	return Param(v, nil)
}

func (p *param[T]) Render(b *Builder) { b.Register(p.typ, p.value) }
func (*param[T]) yields(T)            {}

func (p *param[T]) Type() types.Type {
	if p.typ != nil {
		return p.typ
	}
	return inferType(indirect(p.value))
}

type literal[T any] struct {
	cache
	value T
	typ   types.Type
}

// Literal returns a value rendered inline even in prepared mode.
func Literal[T any](v T, t types.Type) TypedExpression[T] {
	return &literal[T]{value: v, typ: t}
}

func (l *literal[T]) Render(b *Builder) {
	t := l.Type()
	if t != nil {
		if err := types.Check(t, l.value); err != nil {
			b.AddError(NewValidationError("", err))
		}
	}
	b.literal(t, indirect(l.value))
}

func (l *literal[T]) Type() types.Type {
	if l.typ != nil {
		return l.typ
	}
	return inferType(indirect(l.value))
}

func (*literal[T]) yields(T) {}

type null[T any] struct {
	cache
	typ types.Type
}

// Null returns the NULL literal typed as t.
func Null[T any](t types.Type) TypedExpression[T] {
	return &null[T]{typ: t}
}

func (*null[T]) Render(b *Builder)  { b.WriteString("NULL") }
func (n *null[T]) Type() types.Type { return n.typ }
func (*null[T]) yields(T)           {}

type raw[T any] struct {
	cache
	sql  string
	typ  types.Type
	args []any
}

// Raw returns a custom SQL fragment. Each "?" in sql is replaced by the next
// argument, bound as a parameter. Fragments with arguments must not contain
// "?" inside string literals.
func Raw[T any](sql string, t types.Type, args ...any) TypedExpression[T] {
	return &raw[T]{sql: sql, typ: t, args: args}
}

func (r *raw[T]) Render(b *Builder) {
	if len(r.args) == 0 {
		b.WriteString(r.sql)
		return
	}
	parts := strings.Split(r.sql, "?")
	if len(parts)-1 != len(r.args) {
		b.AddError(buildErrorf("raw", "%d placeholders for %d arguments in %q", len(parts)-1, len(r.args), r.sql))
	}
	for i, part := range parts {
		b.WriteString(part)
		if i < len(parts)-1 && i < len(r.args) {
			if e, ok := r.args[i].(Expression); ok {
				e.Render(b)
				continue
			}
			b.Register(nil, r.args[i])
		}
	}
}

func (r *raw[T]) Type() types.Type { return r.typ }
func (*raw[T]) yields(T)           {}

type rawOp struct {
	raw[bool]
}

func (*rawOp) compound() {}

// RawOp returns a custom boolean SQL fragment. It is parenthesized when
// combined with other predicates.
func RawOp(sql string, args ...any) Op {
	return &rawOp{raw: raw[bool]{sql: sql, typ: types.Bool, args: args}}
}

// ExpressionAlias names an expression. It renders as "expr AS name" in a
// projection and as the bare name everywhere else.
type ExpressionAlias[T any] struct {
	cache
	expr TypedExpression[T]
	name string
}

// Alias names an expression.
func Alias[T any](e TypedExpression[T], name string) *ExpressionAlias[T] {
	return &ExpressionAlias[T]{expr: e, name: name}
}

// Name returns the alias name.
func (a *ExpressionAlias[T]) Name() string { return a.name }

// Delegate returns the aliased expression.
func (a *ExpressionAlias[T]) Delegate() Expression { return a.expr }

// Render renders the alias name.
func (a *ExpressionAlias[T]) Render(b *Builder) { b.Ident(a.name) }

// Type returns the column type of the aliased expression.
func (a *ExpressionAlias[T]) Type() types.Type { return a.expr.Type() }

func (*ExpressionAlias[T]) yields(T) {}

func (a *ExpressionAlias[T]) renderProjection(b *Builder) {
	appendOperand(b, a.expr)
	b.WriteString(" AS ").Ident(a.name)
}

// aliased is implemented by expressions rendering differently in a projection.
type aliased interface {
	Expression
	renderProjection(b *Builder)
	Delegate() Expression
	Name() string
}

// renderProjection renders e as a SELECT list item.
func renderProjection(b *Builder, e Expression) {
	if a, ok := e.(aliased); ok {
		a.renderProjection(b)
		return
	}
	e.Render(b)
}

// inferType returns the column type of a Go value, or nil when no built-in
// type fits it.
func inferType(v any) types.Type {
	switch x := v.(type) {
	case nil:
		return nil
	case int, int64, uint, uint32, uint64:
		return types.Int64
	case int32, uint16:
		return types.Int32
	case int16, int8, uint8:
		return types.Int16
	case float64:
		return types.Float64
	case float32:
		return types.Float32
	case bool:
		return types.Bool
	case string:
		return types.Text
	case []byte:
		return types.Blob
	case time.Time:
		return types.DateTime
	case uuid.UUID:
		return types.UUID
	case decimal.Decimal:
		scale := 0
		if e := x.Exponent(); e < 0 {
			scale = int(-e)
		}
		return types.Decimal(x.NumDigits()+scale+1, scale)
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.String:
		return types.Text
	case reflect.Bool:
		return types.Bool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return types.Int64
	case reflect.Float32, reflect.Float64:
		return types.Float64
	}
	return nil
}

// indirect dereferences a non-nil pointer value.
func indirect(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer {
		return v
	}
	if rv.IsNil() {
		return nil
	}
	return rv.Elem().Interface()
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
