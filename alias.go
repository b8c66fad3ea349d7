package tql

// TableAlias is a table under another name. Its columns are clones of the
// table columns bound to the alias: they keep type, default and foreign key
// and render qualified by the alias name.
type TableAlias struct {
	table   *Table
	name    string
	columns []AnyColumn
}

// Alias returns the table under another name, for self joins.
func (t *Table) Alias(name string) *TableAlias {
	a := &TableAlias{table: t, name: name}
	a.columns = make([]AnyColumn, len(t.columns))
	for i, c := range t.columns {
		a.columns[i] = c.bindTo(a)
	}
	return a
}

// Name returns the alias name.
func (a *TableAlias) Name() string { return a.name }

// Table returns the aliased table.
func (a *TableAlias) Table() *Table { return a.table }

// Columns returns the alias columns.
func (a *TableAlias) Columns() []AnyColumn { return append([]AnyColumn(nil), a.columns...) }

// C returns the alias clone of a column of the aliased table, or nil.
func (a *TableAlias) C(e Expression) AnyColumn {
	c, ok := e.(AnyColumn)
	if !ok {
		return nil
	}
	for _, ac := range a.columns {
		if ac.Origin() == c.Origin() {
			return ac
		}
	}
	return nil
}

// Select starts a query over the alias.
func (a *TableAlias) Select(exprs ...Expression) *Query {
	return Select(a, exprs...)
}

// InnerJoin joins other to the alias.
func (a *TableAlias) InnerJoin(other ColumnSet, on ...Op) *Join {
	return NewJoin(a).InnerJoin(other, on...)
}

// LeftJoin left-joins other to the alias.
func (a *TableAlias) LeftJoin(other ColumnSet, on ...Op) *Join {
	return NewJoin(a).LeftJoin(other, on...)
}

func (a *TableAlias) qualifier() string { return a.name }

func (a *TableAlias) renderSource(b *Builder) {
	b.Ident(a.table.name).WriteString(" AS ").Ident(a.name)
}

// QueryAlias is a subquery in a FROM clause. Its columns are the projected
// columns and named expressions of the query, bound to the alias.
type QueryAlias struct {
	query   AbstractQuery
	name    string
	columns []AnyColumn
	byKey   map[string]AnyColumn
}

func newQueryAlias(q AbstractQuery, name string) *QueryAlias {
	a := &QueryAlias{query: q, name: name, byKey: make(map[string]AnyColumn)}
	for _, f := range q.Fields() {
		cb, ok := f.(columnBinder)
		if !ok {
			continue
		}
		c := cb.bindTo(a)
		a.columns = append(a.columns, c)
		a.byKey[Key(f)] = c
	}
	return a
}

// columnBinder is implemented by projections that a subquery alias exposes
// as columns.
type columnBinder interface {
	bindTo(owner ColumnSet) AnyColumn
}

// Name returns the alias name.
func (a *QueryAlias) Name() string { return a.name }

// Query returns the aliased query.
func (a *QueryAlias) Query() AbstractQuery { return a.query }

// Columns returns the alias columns.
func (a *QueryAlias) Columns() []AnyColumn { return append([]AnyColumn(nil), a.columns...) }

// C returns the alias column of a field projected by the query, or nil.
// Named expressions are looked up by their alias.
func (a *QueryAlias) C(e Expression) AnyColumn {
	return a.byKey[Key(e)]
}

// Select starts a query over the alias.
func (a *QueryAlias) Select(exprs ...Expression) *Query {
	return Select(a, exprs...)
}

// InnerJoin joins other to the alias.
func (a *QueryAlias) InnerJoin(other ColumnSet, on ...Op) *Join {
	return NewJoin(a).InnerJoin(other, on...)
}

// LeftJoin left-joins other to the alias.
func (a *QueryAlias) LeftJoin(other ColumnSet, on ...Op) *Join {
	return NewJoin(a).LeftJoin(other, on...)
}

func (a *QueryAlias) qualifier() string { return a.name }

func (a *QueryAlias) renderSource(b *Builder) {
	b.Wrap(a.query.Render).WriteString(" AS ").Ident(a.name)
}

// AliasColumn returns the typed clone of c bound to a table or query alias.
// It panics with a BuildError if the alias does not expose c.
func AliasColumn[T any](a interface{ C(Expression) AnyColumn }, c *Column[T]) *Column[T] {
	ac, ok := a.C(c).(*Column[T])
	if !ok {
		panic(buildErrorf("alias", "column %q is not exposed by the alias", c.Name()))
	}
	return ac
}

// bindTo exposes the named expression as a column of a subquery alias.
func (a *ExpressionAlias[T]) bindTo(owner ColumnSet) AnyColumn {
	return &Column[T]{owner: owner, name: a.name, typ: a.Type(), def: &ColumnDef{}}
}
