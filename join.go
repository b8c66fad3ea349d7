package tql

import (
	"strings"
)

// JoinType is the kind of a join step.
type JoinType string

// Join types.
const (
	JoinInner JoinType = "INNER JOIN"
	JoinLeft  JoinType = "LEFT JOIN"
	JoinRight JoinType = "RIGHT JOIN"
	JoinFull  JoinType = "FULL JOIN"
	JoinCross JoinType = "CROSS JOIN"
)

// Join is a chain of binary join steps. A step without an explicit
// condition joins on the single foreign key relating the new set to the
// sets already joined; none or several candidates is a BuildError.
type Join struct {
	left  ColumnSet
	parts []joinPart
	err   error
}

type joinPart struct {
	typ JoinType
	set ColumnSet
	on  Op
}

// NewJoin starts a join chain from left.
func NewJoin(left ColumnSet) *Join {
	if j, ok := left.(*Join); ok {
		return j.copy()
	}
	return &Join{left: left}
}

func (j *Join) copy() *Join {
	return &Join{left: j.left, parts: append([]joinPart(nil), j.parts...), err: j.err}
}

// Join returns a new chain with a join step appended; j is left as is.
// With no conditions the step is inferred from foreign keys, except for
// cross joins. Several conditions are combined with AND.
func (j *Join) Join(other ColumnSet, typ JoinType, on ...Op) *Join {
	c := j.copy()
	part := joinPart{typ: typ, set: other, on: And(on...)}
	if part.on == nil && typ != JoinCross {
		op, err := inferJoin(c.Columns(), other)
		if err != nil && c.err == nil {
			c.err = err
		}
		part.on = op
	}
	c.parts = append(c.parts, part)
	return c
}

// JoinFunc appends a join step whose condition is built by fn.
func (j *Join) JoinFunc(other ColumnSet, typ JoinType, fn OpFunc) *Join {
	return j.Join(other, typ, fn.build())
}

// InnerJoin appends an INNER JOIN step.
func (j *Join) InnerJoin(other ColumnSet, on ...Op) *Join {
	return j.Join(other, JoinInner, on...)
}

// LeftJoin appends a LEFT JOIN step.
func (j *Join) LeftJoin(other ColumnSet, on ...Op) *Join {
	return j.Join(other, JoinLeft, on...)
}

// RightJoin appends a RIGHT JOIN step.
func (j *Join) RightJoin(other ColumnSet, on ...Op) *Join {
	return j.Join(other, JoinRight, on...)
}

// FullJoin appends a FULL JOIN step.
func (j *Join) FullJoin(other ColumnSet, on ...Op) *Join {
	return j.Join(other, JoinFull, on...)
}

// CrossJoin appends a CROSS JOIN step.
func (j *Join) CrossJoin(other ColumnSet) *Join {
	return j.Join(other, JoinCross)
}

// Err returns the first error of the chain, such as a step whose condition
// could not be inferred.
func (j *Join) Err() error { return j.err }

// Columns returns the columns of every joined set.
func (j *Join) Columns() []AnyColumn {
	cols := j.left.Columns()
	for _, p := range j.parts {
		cols = append(cols, p.set.Columns()...)
	}
	return cols
}

// Select starts a query over the join.
func (j *Join) Select(exprs ...Expression) *Query {
	return Select(j, exprs...)
}

func (j *Join) renderSource(b *Builder) {
	b.AddError(j.err)
	renderJoined(b, j.left)
	for _, p := range j.parts {
		b.Pad().WriteString(string(p.typ)).Pad()
		renderJoined(b, p.set)
		if p.on != nil {
			b.WriteString(" ON ")
			p.on.Render(b)
		}
	}
}

func renderJoined(b *Builder, s ColumnSet) {
	if _, ok := s.(*Join); ok {
		b.Wrap(s.renderSource)
		return
	}
	s.renderSource(b)
}

// inferJoin finds the foreign key relating other to the joined columns.
func inferJoin(joined []AnyColumn, other ColumnSet) (Op, error) {
	var (
		pairs [][2]AnyColumn
		right = other.Columns()
	)
	for _, l := range joined {
		for _, r := range right {
			if references(r, l) || references(l, r) {
				pairs = append(pairs, [2]AnyColumn{l, r})
			}
		}
	}
	switch len(pairs) {
	case 0:
		return nil, buildErrorf("join", "no foreign key relates %s to the joined tables; give an explicit condition", setName(other))
	case 1:
		return compare(pairs[0][0], "=", pairs[0][1]), nil
	}
	names := make([]string, len(pairs))
	for i, p := range pairs {
		names[i] = Key(p[0]) + " = " + Key(p[1])
	}
	return nil, buildErrorf("join", "several foreign keys relate %s to the joined tables (%s); give an explicit condition",
		setName(other), strings.Join(names, ", "))
}

// references reports whether from holds a foreign key to to.
func references(from, to AnyColumn) bool {
	fk := from.Def().ForeignKey
	return fk != nil && fk.Target == to.Origin()
}

func setName(s ColumnSet) string {
	switch s := s.(type) {
	case qualifier:
		return s.qualifier()
	case *Join:
		return "join"
	default:
		return "subquery"
	}
}

// InnerJoin joins other to the table.
func (t *Table) InnerJoin(other ColumnSet, on ...Op) *Join {
	return NewJoin(t).InnerJoin(other, on...)
}

// LeftJoin left-joins other to the table.
func (t *Table) LeftJoin(other ColumnSet, on ...Op) *Join {
	return NewJoin(t).LeftJoin(other, on...)
}

// RightJoin right-joins other to the table.
func (t *Table) RightJoin(other ColumnSet, on ...Op) *Join {
	return NewJoin(t).RightJoin(other, on...)
}

// FullJoin full-joins other to the table.
func (t *Table) FullJoin(other ColumnSet, on ...Op) *Join {
	return NewJoin(t).FullJoin(other, on...)
}

// CrossJoin cross-joins other to the table.
func (t *Table) CrossJoin(other ColumnSet) *Join {
	return NewJoin(t).CrossJoin(other)
}
