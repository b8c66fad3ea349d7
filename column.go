package tql

import (
	"github.com/syssam/tql/types"
)

// ColumnDef is the declaration of a column shared by the column and the
// clones bound to aliases. It must not be changed once statements use it.
type ColumnDef struct {
	// PrimaryKey is the 1-based position in the primary key, 0 when the column
	// is not part of it.
	PrimaryKey int
	// Default is the constant written as the DDL default and used on insert
	// when the column is not assigned. HasDefault reports whether it is set.
	Default    any
	HasDefault bool
	// ClientDefault computes the value on insert when the column is not assigned.
	ClientDefault func() any
	// DefaultExpr is the database-side default expression.
	DefaultExpr Expression
	// ForeignKey is the reference to another column, if any.
	ForeignKey *ForeignKey
}

// hasDatabaseDefault reports whether the database fills the column when
// an insert omits it.
func (d *ColumnDef) hasDatabaseDefault() bool {
	return d.DefaultExpr != nil || d.HasDefault
}

// AnyColumn is a column of any Go type.
type AnyColumn interface {
	Expression
	// Name returns the column name.
	Name() string
	// Owner returns the table or alias the column belongs to.
	Owner() ColumnSet
	// Type returns the column type.
	Type() types.Type
	// Def returns the column declaration.
	Def() *ColumnDef
	// Origin returns the table column the column was cloned from, or the
	// column itself.
	Origin() AnyColumn
	// Table returns the table of the origin column.
	Table() *Table

	bindTo(owner ColumnSet) AnyColumn
}

// Column is a typed column of a table or an alias. T is the Go type its
// column type reads and writes.
type Column[T any] struct {
	cache
	owner  ColumnSet
	name   string
	typ    types.Type
	def    *ColumnDef
	origin AnyColumn
}

// AddColumn declares a column of type t on the table. It panics with a
// BuildError if the table already has a column with the same name.
func AddColumn[T any](t *Table, name string, typ types.Type) *Column[T] {
	c := &Column[T]{owner: t, name: name, typ: typ, def: &ColumnDef{}}
	t.add(c)
	return c
}

// Name returns the column name.
func (c *Column[T]) Name() string { return c.name }

// Owner returns the table or alias the column belongs to.
func (c *Column[T]) Owner() ColumnSet { return c.owner }

// Type returns the column type.
func (c *Column[T]) Type() types.Type { return c.typ }

// Def returns the column declaration.
func (c *Column[T]) Def() *ColumnDef { return c.def }

// Origin returns the table column the column was cloned from.
func (c *Column[T]) Origin() AnyColumn {
	if c.origin != nil {
		return c.origin
	}
	return c
}

// Table returns the table declaring the column.
func (c *Column[T]) Table() *Table {
	t, _ := c.Origin().Owner().(*Table)
	return t
}

// Render renders the qualified column name.
func (c *Column[T]) Render(b *Builder) {
	if q, ok := c.owner.(qualifier); ok && !b.bare {
		b.Ident(q.qualifier()).Byte('.')
	}
	b.Ident(c.name)
}

func (*Column[T]) yields(T) {}

func (c *Column[T]) bindTo(owner ColumnSet) AnyColumn {
	return &Column[T]{owner: owner, name: c.name, typ: c.typ, def: c.def, origin: c.Origin()}
}

// variant returns a copy of the column with another type, sharing nothing
// with the original but the owner and the name.
func variant[T, U any](c *Column[T], typ types.Type) *Column[U] {
	def := *c.def
	if def.ForeignKey != nil {
		fk := *def.ForeignKey
		def.ForeignKey = &fk
	}
	return &Column[U]{owner: c.owner, name: c.name, typ: typ, def: &def}
}

// Nullable returns a nullable copy of the column that replaces it in its
// table. The copy reads and writes *T, nil for NULL.
func Nullable[T any](c *Column[T]) *Column[*T] {
	n := variant[T, *T](c, types.Nullable[T](c.typ))
	c.Table().replace(c, n)
	return n
}

// AutoIncrement returns a copy of the column whose values are generated by
// the database, replacing it in its table. With a sequence name, dialects
// that support sequences draw the values from it.
func (c *Column[T]) AutoIncrement(sequence ...string) *Column[T] {
	var seq string
	if len(sequence) > 0 {
		seq = sequence[0]
	}
	n := variant[T, T](c, types.AutoIncrement(c.typ, seq))
	c.Table().replace(c, n)
	return n
}

// IsAutoIncrement reports whether the database generates the column values.
func (c *Column[T]) IsAutoIncrement() bool {
	return isAutoIncrement(c)
}

func isAutoIncrement(c AnyColumn) bool {
	_, ok := c.Type().(*types.AutoIncrementType)
	return ok
}

// PrimaryKey appends the column to the primary key of its table.
func (c *Column[T]) PrimaryKey() *Column[T] {
	c.Table().PrimaryKey(c)
	return c
}

// Default sets a constant default, written in DDL and used on insert.
func (c *Column[T]) Default(v T) *Column[T] {
	c.def.Default, c.def.HasDefault = v, true
	return c
}

// ClientDefault sets a function computing the value on insert.
func (c *Column[T]) ClientDefault(fn func() T) *Column[T] {
	c.def.ClientDefault = func() any { return fn() }
	return c
}

// DefaultExpression sets a database-side default expression.
func (c *Column[T]) DefaultExpression(e TypedExpression[T]) *Column[T] {
	c.def.DefaultExpr = e
	return c
}

// References attaches a foreign key to target.
func (c *Column[T]) References(target AnyColumn, opts ...RefOption) *Column[T] {
	fk := &ForeignKey{Target: target.Origin()}
	for _, opt := range opts {
		opt(fk)
	}
	c.def.ForeignKey = fk
	return c
}

// Unique adds a unique index over the column.
func (c *Column[T]) Unique() *Column[T] {
	c.Table().Index("", true, c)
	return c
}

// Index adds a non-unique index over the column.
func (c *Column[T]) Index() *Column[T] {
	c.Table().Index("", false, c)
	return c
}

// EQ returns a predicate that checks if the column equals the given value.
func (c *Column[T]) EQ(v T) Op { return EQ[T](c, v) }

// NEQ returns a predicate that checks if the column does not equal the given value.
func (c *Column[T]) NEQ(v T) Op { return NEQ[T](c, v) }

// LT returns a predicate that checks if the column is less than the given value.
func (c *Column[T]) LT(v T) Op { return LT[T](c, v) }

// LTE returns a predicate that checks if the column is less than or equal to the given value.
func (c *Column[T]) LTE(v T) Op { return LTE[T](c, v) }

// GT returns a predicate that checks if the column is greater than the given value.
func (c *Column[T]) GT(v T) Op { return GT[T](c, v) }

// GTE returns a predicate that checks if the column is greater than or equal to the given value.
func (c *Column[T]) GTE(v T) Op { return GTE[T](c, v) }

// In returns a predicate that checks if the column value is in the given list.
func (c *Column[T]) In(vs ...T) Op { return In[T](c, vs...) }

// NotIn returns a predicate that checks if the column value is not in the given list.
func (c *Column[T]) NotIn(vs ...T) Op { return NotIn[T](c, vs...) }

// Between returns a predicate that checks if the column lies in [from, to].
func (c *Column[T]) Between(from, to T) Op { return Between[T](c, from, to) }

// IsNull returns a predicate that checks if the column is NULL.
func (c *Column[T]) IsNull() Op { return IsNull(c) }

// IsNotNull returns a predicate that checks if the column is not NULL.
func (c *Column[T]) IsNotNull() Op { return IsNotNull(c) }

// Set assigns a value to the column in an insert or an update.
func (c *Column[T]) Set(v T) Assignment {
	return Assignment{Column: c, Value: v}
}

// SetExpr assigns an expression to the column in an insert or an update.
func (c *Column[T]) SetExpr(e TypedExpression[T]) Assignment {
	return Assignment{Column: c, Value: e}
}

// Asc orders by the column ascending.
func (c *Column[T]) Asc() OrderTerm { return OrderTerm{Expr: c, Order: Asc} }

// Desc orders by the column descending.
func (c *Column[T]) Desc() OrderTerm { return OrderTerm{Expr: c, Order: Desc} }

// Assignment is a value or an expression given to a column.
type Assignment struct {
	Column AnyColumn
	// Value is the value, or an Expression rendered in its place.
	Value any

	err error
}

func (a Assignment) render(b *Builder) {
	if a.err != nil {
		b.AddError(a.err)
	}
	if e, ok := a.Value.(Expression); ok {
		e.Render(b)
		return
	}
	b.bind(a.Column.Name(), a.Column.Type(), a.Value)
}

// Set assigns a value to a column of any type.
func Set(c AnyColumn, v any) Assignment {
	return Assignment{Column: c, Value: v}
}
