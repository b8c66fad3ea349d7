package tql

import (
	"github.com/syssam/tql/types"
)

// predicate is the base of boolean operators.
type predicate struct {
	cache
}

func (*predicate) Type() types.Type { return types.Bool }
func (*predicate) yields(bool)      {}

type comparison struct {
	predicate
	left, right Expression
	op          string
}

func compare(left Expression, op string, right Expression) Op {
	return &comparison{left: left, right: right, op: op}
}

func (c *comparison) Render(b *Builder) {
	appendOperand(b, c.left)
	b.Pad().WriteString(c.op).Pad()
	appendOperand(b, c.right)
}

// bindTo returns v as a parameter typed like e.
func bindTo[T any](e TypedExpression[T], v T) Expression {
	return &param[T]{value: v, typ: e.Type()}
}

// EQ returns a predicate that checks if the expression equals the given value.
// A nil value renders IS NULL.
func EQ[T any](e TypedExpression[T], v T) Op {
	if types.IsNil(any(v)) {
		return IsNull(e)
	}
	return compare(e, "=", bindTo(e, v))
}

// NEQ returns a predicate that checks if the expression does not equal the given value.
// A nil value renders IS NOT NULL.
func NEQ[T any](e TypedExpression[T], v T) Op {
	if types.IsNil(any(v)) {
		return IsNotNull(e)
	}
	return compare(e, "<>", bindTo(e, v))
}

// LT returns a predicate that checks if the expression is less than the given value.
func LT[T any](e TypedExpression[T], v T) Op {
	return compare(e, "<", bindTo(e, v))
}

// LTE returns a predicate that checks if the expression is less than or equal to the given value.
func LTE[T any](e TypedExpression[T], v T) Op {
	return compare(e, "<=", bindTo(e, v))
}

// GT returns a predicate that checks if the expression is greater than the given value.
func GT[T any](e TypedExpression[T], v T) Op {
	return compare(e, ">", bindTo(e, v))
}

// GTE returns a predicate that checks if the expression is greater than or equal to the given value.
func GTE[T any](e TypedExpression[T], v T) Op {
	return compare(e, ">=", bindTo(e, v))
}

// EQExpr returns a predicate that checks if two expressions are equal.
func EQExpr[T any](a, b TypedExpression[T]) Op { return compare(a, "=", b) }

// NEQExpr returns a predicate that checks if two expressions differ.
func NEQExpr[T any](a, b TypedExpression[T]) Op { return compare(a, "<>", b) }

// LTExpr returns a predicate that checks if a is less than b.
func LTExpr[T any](a, b TypedExpression[T]) Op { return compare(a, "<", b) }

// LTEExpr returns a predicate that checks if a is less than or equal to b.
func LTEExpr[T any](a, b TypedExpression[T]) Op { return compare(a, "<=", b) }

// GTExpr returns a predicate that checks if a is greater than b.
func GTExpr[T any](a, b TypedExpression[T]) Op { return compare(a, ">", b) }

// GTEExpr returns a predicate that checks if a is greater than or equal to b.
func GTEExpr[T any](a, b TypedExpression[T]) Op { return compare(a, ">=", b) }

type between struct {
	predicate
	expr, from, to Expression
}

// Between returns a predicate that checks if the expression lies in [from, to].
func Between[T any](e TypedExpression[T], from, to T) Op {
	return &between{expr: e, from: bindTo(e, from), to: bindTo(e, to)}
}

func (p *between) Render(b *Builder) {
	appendOperand(b, p.expr)
	b.WriteString(" BETWEEN ")
	appendOperand(b, p.from)
	b.WriteString(" AND ")
	appendOperand(b, p.to)
}

type nullCheck struct {
	predicate
	expr Expression
	not  bool
}

// IsNull returns a predicate that checks if the expression is NULL.
func IsNull(e Expression) Op { return &nullCheck{expr: e} }

// IsNotNull returns a predicate that checks if the expression is not NULL.
func IsNotNull(e Expression) Op { return &nullCheck{expr: e, not: true} }

func (p *nullCheck) Render(b *Builder) {
	appendOperand(b, p.expr)
	if p.not {
		b.WriteString(" IS NOT NULL")
		return
	}
	b.WriteString(" IS NULL")
}

type like struct {
	predicate
	expr    Expression
	pattern string
	not     bool
	fold    bool
}

// Like returns a predicate that matches the expression against a LIKE pattern.
func Like(e Expression, pattern string) Op { return &like{expr: e, pattern: pattern} }

// NotLike returns the negation of Like.
func NotLike(e Expression, pattern string) Op { return &like{expr: e, pattern: pattern, not: true} }

// ILike returns a case-insensitive Like. Dialects without ILIKE compare the
// lower-cased operands.
func ILike(e Expression, pattern string) Op { return &like{expr: e, pattern: pattern, fold: true} }

// NotILike returns the negation of ILike.
func NotILike(e Expression, pattern string) Op {
	return &like{expr: e, pattern: pattern, fold: true, not: true}
}

func (p *like) Render(b *Builder) {
	op := " LIKE "
	if p.not {
		op = " NOT LIKE "
	}
	if p.fold && b.Dialect().ILike {
		op = " ILIKE "
		if p.not {
			op = " NOT ILIKE "
		}
	} else if p.fold {
		b.WriteString("LOWER(")
		p.expr.Render(b)
		b.WriteString(")").WriteString(op).WriteString("LOWER(")
		b.Register(types.Text, p.pattern)
		b.WriteString(")")
		return
	}
	appendOperand(b, p.expr)
	b.WriteString(op)
	b.Register(types.Text, p.pattern)
}

type regexpOp struct {
	predicate
	expr          Expression
	pattern       string
	caseSensitive bool
}

// Regexp returns a predicate that matches the expression against a regular
// expression. Dialects without a regexp operator report an UnsupportedError.
func Regexp(e Expression, pattern string, caseSensitive bool) Op {
	return &regexpOp{expr: e, pattern: pattern, caseSensitive: caseSensitive}
}

func (p *regexpOp) Render(b *Builder) {
	d := b.Dialect()
	if d.Regexp == nil {
		b.AddError(d.Unsupported("regular expressions"))
		b.WriteString(d.Bool(false))
		return
	}
	expr := b.renderString(func(b *Builder) { appendOperand(b, p.expr) })
	pattern := b.renderString(func(b *Builder) { b.Register(types.Text, p.pattern) })
	b.WriteString(d.Regexp(expr, pattern, p.caseSensitive))
}

type inList struct {
	predicate
	expr   Expression
	values []Expression
	not    bool
}

// In returns a predicate that checks if the expression value is in the given
// list. An empty list never matches.
func In[T any](e TypedExpression[T], vs ...T) Op {
	values := make([]Expression, len(vs))
	for i, v := range vs {
		values[i] = bindTo(e, v)
	}
	return &inList{expr: e, values: values}
}

// NotIn returns a predicate that checks if the expression value is not in the
// given list. An empty list always matches.
func NotIn[T any](e TypedExpression[T], vs ...T) Op {
	op := In(e, vs...).(*inList)
	op.not = true
	return op
}

func (p *inList) Render(b *Builder) {
	if len(p.values) == 0 {
		b.WriteString(b.Dialect().Bool(p.not))
		return
	}
	appendOperand(b, p.expr)
	if p.not {
		b.WriteString(" NOT")
	}
	b.WriteString(" IN (").Join(", ", p.values...).Byte(')')
}

type inQuery struct {
	predicate
	expr  Expression
	query AbstractQuery
	not   bool
}

// InSubQuery returns a predicate that checks if the expression value is one of
// the rows of the query.
func InSubQuery(e Expression, q AbstractQuery) Op { return &inQuery{expr: e, query: q} }

// NotInSubQuery returns the negation of InSubQuery.
func NotInSubQuery(e Expression, q AbstractQuery) Op { return &inQuery{expr: e, query: q, not: true} }

func (p *inQuery) Render(b *Builder) {
	appendOperand(b, p.expr)
	if p.not {
		b.WriteString(" NOT")
	}
	b.WriteString(" IN ").Wrap(p.query.Render)
}

type exists struct {
	predicate
	query AbstractQuery
	not   bool
}

// Exists returns a predicate that checks if the query has at least one row.
func Exists(q AbstractQuery) Op { return &exists{query: q} }

// NotExists returns the negation of Exists.
func NotExists(q AbstractQuery) Op { return &exists{query: q, not: true} }

func (p *exists) Render(b *Builder) {
	if p.not {
		b.WriteString("NOT ")
	}
	b.WriteString("EXISTS ").Wrap(p.query.Render)
}

type not struct {
	predicate
	op Op
}

// Not negates a predicate.
func Not(op Op) Op {
	if n, ok := op.(*not); ok {
		return n.op
	}
	return &not{op: op}
}

func (p *not) Render(b *Builder) {
	b.WriteString("NOT ").Wrap(p.op.Render)
}

type logical struct {
	predicate
	ops []Op
	sep string
}

func (*logical) compound() {}

func (p *logical) Render(b *Builder) {
	for i, op := range p.ops {
		if i > 0 {
			b.WriteString(p.sep)
		}
		appendOperand(b, op)
	}
}

// And returns the conjunction of the predicates. Nested conjunctions are
// flattened and nil predicates skipped. It returns nil for no predicates.
func And(ops ...Op) Op {
	return combine(" AND ", ops)
}

// Or returns the disjunction of the predicates. Nested disjunctions are
// flattened and nil predicates skipped. It returns nil for no predicates.
func Or(ops ...Op) Op {
	return combine(" OR ", ops)
}

func combine(sep string, ops []Op) Op {
	flat := make([]Op, 0, len(ops))
	for _, op := range ops {
		switch x := op.(type) {
		case nil:
		case *logical:
			if x.sep == sep {
				flat = append(flat, x.ops...)
				continue
			}
			flat = append(flat, x)
		default:
			flat = append(flat, x)
		}
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	}
	return &logical{ops: flat, sep: sep}
}

// OpBuilder exposes the predicate combinators to WHERE, HAVING and ON
// closures. Its comparisons accept untyped operands: a value that is not an
// Expression is bound against the type of the left operand.
type OpBuilder struct{}

// OpFunc builds a predicate in a closure.
type OpFunc func(*OpBuilder) Op

func (f OpFunc) build() Op {
	if f == nil {
		return nil
	}
	return f(&OpBuilder{})
}

func (*OpBuilder) operand(left Expression, v any) Expression {
	if e, ok := v.(Expression); ok {
		return e
	}
	return Param(v, exprType(left))
}

// EQ returns left = v, or left IS NULL for a nil v.
func (ob *OpBuilder) EQ(left Expression, v any) Op {
	if types.IsNil(v) {
		return IsNull(left)
	}
	return compare(left, "=", ob.operand(left, v))
}

// NEQ returns left <> v, or left IS NOT NULL for a nil v.
func (ob *OpBuilder) NEQ(left Expression, v any) Op {
	if types.IsNil(v) {
		return IsNotNull(left)
	}
	return compare(left, "<>", ob.operand(left, v))
}

// LT returns left < v.
func (ob *OpBuilder) LT(left Expression, v any) Op { return compare(left, "<", ob.operand(left, v)) }

// LTE returns left <= v.
func (ob *OpBuilder) LTE(left Expression, v any) Op { return compare(left, "<=", ob.operand(left, v)) }

// GT returns left > v.
func (ob *OpBuilder) GT(left Expression, v any) Op { return compare(left, ">", ob.operand(left, v)) }

// GTE returns left >= v.
func (ob *OpBuilder) GTE(left Expression, v any) Op { return compare(left, ">=", ob.operand(left, v)) }

// And returns the conjunction of the predicates.
func (*OpBuilder) And(ops ...Op) Op { return And(ops...) }

// Or returns the disjunction of the predicates.
func (*OpBuilder) Or(ops ...Op) Op { return Or(ops...) }

// Not negates the predicate.
func (*OpBuilder) Not(op Op) Op { return Not(op) }

// IsNull returns e IS NULL.
func (*OpBuilder) IsNull(e Expression) Op { return IsNull(e) }

// IsNotNull returns e IS NOT NULL.
func (*OpBuilder) IsNotNull(e Expression) Op { return IsNotNull(e) }

// Like returns e LIKE pattern.
func (*OpBuilder) Like(e Expression, pattern string) Op { return Like(e, pattern) }

// Exists returns EXISTS (q).
func (*OpBuilder) Exists(q AbstractQuery) Op { return Exists(q) }

// Raw returns a custom predicate.
func (*OpBuilder) Raw(sql string, args ...any) Op { return RawOp(sql, args...) }
