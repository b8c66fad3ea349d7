package tql

import (
	"strconv"
	"time"

	"github.com/syssam/tql/types"
)

type function[T any] struct {
	cache
	name     string
	args     []Expression
	typ      types.Type
	distinct bool
}

func call[T any](name string, t types.Type, args ...Expression) *function[T] {
	return &function[T]{name: name, args: args, typ: t}
}

func (f *function[T]) Render(b *Builder) {
	b.WriteString(f.name).Byte('(')
	if f.distinct {
		b.WriteString("DISTINCT ")
	}
	b.Join(", ", f.args...).Byte(')')
}

func (f *function[T]) Type() types.Type { return f.typ }
func (*function[T]) yields(T)           {}

// Count returns COUNT(e).
func Count(e Expression) TypedExpression[int64] {
	return call[int64]("COUNT", types.Int64, e)
}

// CountDistinct returns COUNT(DISTINCT e).
func CountDistinct(e Expression) TypedExpression[int64] {
	f := call[int64]("COUNT", types.Int64, e)
	f.distinct = true
	return f
}

// CountAll returns COUNT(*).
func CountAll() TypedExpression[int64] {
	return Raw[int64]("COUNT(*)", types.Int64)
}

// Sum returns SUM(e). The sum of no rows is NULL.
func Sum[T any](e TypedExpression[T]) TypedExpression[T] {
	return call[T]("SUM", e.Type(), e)
}

// Avg returns AVG(e).
func Avg(e Expression) TypedExpression[float64] {
	return call[float64]("AVG", types.Float64, e)
}

// Min returns MIN(e).
func Min[T any](e TypedExpression[T]) TypedExpression[T] {
	return call[T]("MIN", e.Type(), e)
}

// Max returns MAX(e).
func Max[T any](e TypedExpression[T]) TypedExpression[T] {
	return call[T]("MAX", e.Type(), e)
}

// Lower returns LOWER(e).
func Lower(e Expression) TypedExpression[string] {
	return call[string]("LOWER", types.Text, e)
}

// Upper returns UPPER(e).
func Upper(e Expression) TypedExpression[string] {
	return call[string]("UPPER", types.Text, e)
}

// Trim returns TRIM(e).
func Trim(e Expression) TypedExpression[string] {
	return call[string]("TRIM", types.Text, e)
}

// Length returns the character length of e.
func Length(e Expression) TypedExpression[int64] {
	return &dialectFunc[int64]{typ: types.Int64, args: []Expression{e}, render: func(b *Builder, args []Expression) {
		b.WriteString(b.Dialect().CharLength).Byte('(').Join(", ", args...).Byte(')')
	}}
}

// Substring returns the length characters of e starting at the 1-based start.
func Substring(e Expression, start, length int) TypedExpression[string] {
	return &dialectFunc[string]{typ: types.Text, args: []Expression{e}, render: func(b *Builder, args []Expression) {
		b.WriteString("SUBSTR(").Join(", ", args...)
		b.WriteString(", ").WriteString(strconv.Itoa(start))
		b.WriteString(", ").WriteString(strconv.Itoa(length)).Byte(')')
	}}
}

// Concat concatenates the string values of the expressions.
func Concat(exprs ...Expression) TypedExpression[string] {
	return &dialectFunc[string]{typ: types.Text, args: exprs, render: func(b *Builder, args []Expression) {
		if !b.Dialect().PipeConcat {
			b.WriteString("CONCAT(").Join(", ", args...).Byte(')')
			return
		}
		b.Byte('(')
		for i, e := range args {
			if i > 0 {
				b.WriteString(" || ")
			}
			appendOperand(b, e)
		}
		b.Byte(')')
	}}
}

// Coalesce returns the first non-NULL value of the expressions.
func Coalesce[T any](e TypedExpression[T], others ...TypedExpression[T]) TypedExpression[T] {
	args := []Expression{e}
	for _, o := range others {
		args = append(args, o)
	}
	return call[T]("COALESCE", e.Type(), args...)
}

// Cast returns CAST(e AS type), converted through t.
func Cast[T any](e Expression, t types.Type) TypedExpression[T] {
	return &dialectFunc[T]{typ: t, args: []Expression{e}, render: func(b *Builder, args []Expression) {
		b.WriteString("CAST(")
		args[0].Render(b)
		b.WriteString(" AS ").WriteString(t.SQLType(b.Dialect())).Byte(')')
	}}
}

// CurrentTimestamp returns CURRENT_TIMESTAMP.
func CurrentTimestamp() TypedExpression[time.Time] {
	return Raw[time.Time]("CURRENT_TIMESTAMP", types.DateTime)
}

// Random returns a random number in [0, 1).
func Random() TypedExpression[float64] {
	return &dialectFunc[float64]{typ: types.Float64, render: func(b *Builder, _ []Expression) {
		b.WriteString(b.Dialect().Random)
	}}
}

// NextVal returns the next value of a sequence. Dialects without sequences
// report an UnsupportedError.
func NextVal(sequence string) TypedExpression[int64] {
	return &dialectFunc[int64]{typ: types.Int64, render: func(b *Builder, _ []Expression) {
		d := b.Dialect()
		if !d.Sequences || d.NextVal == nil {
			b.AddError(d.Unsupported("sequences"))
			return
		}
		b.WriteString(d.NextVal(sequence))
	}}
}

// dialectFunc is a function whose SQL depends on the dialect.
type dialectFunc[T any] struct {
	cache
	typ    types.Type
	args   []Expression
	render func(*Builder, []Expression)
}

func (f *dialectFunc[T]) Render(b *Builder) { f.render(b, f.args) }
func (f *dialectFunc[T]) Type() types.Type  { return f.typ }
func (*dialectFunc[T]) yields(T)            {}

type arithmetic[T any] struct {
	cache
	left, right TypedExpression[T]
	op          string
}

func (*arithmetic[T]) compound() {}

func (a *arithmetic[T]) Render(b *Builder) {
	appendOperand(b, a.left)
	b.Pad().WriteString(a.op).Pad()
	appendOperand(b, a.right)
}

func (a *arithmetic[T]) Type() types.Type { return a.left.Type() }
func (*arithmetic[T]) yields(T)           {}

// Plus returns a + b.
func Plus[T any](a, b TypedExpression[T]) TypedExpression[T] {
	return &arithmetic[T]{left: a, right: b, op: "+"}
}

// Minus returns a - b.
func Minus[T any](a, b TypedExpression[T]) TypedExpression[T] {
	return &arithmetic[T]{left: a, right: b, op: "-"}
}

// Times returns a * b.
func Times[T any](a, b TypedExpression[T]) TypedExpression[T] {
	return &arithmetic[T]{left: a, right: b, op: "*"}
}

// Div returns a / b.
func Div[T any](a, b TypedExpression[T]) TypedExpression[T] {
	return &arithmetic[T]{left: a, right: b, op: "/"}
}

// Mod returns a % b.
func Mod[T any](a, b TypedExpression[T]) TypedExpression[T] {
	return &arithmetic[T]{left: a, right: b, op: "%"}
}

// CaseBuilder builds a searched CASE expression.
type CaseBuilder[T any] struct {
	cache
	whens []when
	els   Expression
	typ   types.Type
}

type when struct {
	cond   Op
	result Expression
}

// Case starts a CASE expression whose results convert through t.
func Case[T any](t types.Type) *CaseBuilder[T] {
	return &CaseBuilder[T]{typ: t}
}

// When adds a WHEN cond THEN result branch. Branches are evaluated in order.
func (c *CaseBuilder[T]) When(cond Op, result TypedExpression[T]) *CaseBuilder[T] {
	c.whens = append(c.whens, when{cond: cond, result: result})
	return c
}

// Else sets the result when no branch matches.
func (c *CaseBuilder[T]) Else(result TypedExpression[T]) *CaseBuilder[T] {
	c.els = result
	return c
}

// Render renders the CASE expression.
func (c *CaseBuilder[T]) Render(b *Builder) {
	if len(c.whens) == 0 {
		b.AddError(buildErrorf("case", "no WHEN branches"))
	}
	b.WriteString("CASE")
	for _, w := range c.whens {
		b.WriteString(" WHEN ")
		w.cond.Render(b)
		b.WriteString(" THEN ")
		appendOperand(b, w.result)
	}
	if c.els != nil {
		b.WriteString(" ELSE ")
		appendOperand(b, c.els)
	}
	b.WriteString(" END")
}

// Type returns the column type of the results.
func (c *CaseBuilder[T]) Type() types.Type { return c.typ }

func (*CaseBuilder[T]) yields(T) {}
