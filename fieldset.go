package tql

// FieldSet is an ordered projection over a column set. Fields are
// de-duplicated by rendered SQL and composites are expanded to their
// physical columns.
type FieldSet struct {
	source ColumnSet
	fields []Expression
}

// Slice returns the projection of exprs over source. No expressions
// projects every column of the source.
func Slice(source ColumnSet, exprs ...Expression) *FieldSet {
	if len(exprs) == 0 {
		for _, c := range source.Columns() {
			exprs = append(exprs, c)
		}
	}
	return &FieldSet{source: source, fields: dedupFields(exprs)}
}

func dedupFields(exprs []Expression) []Expression {
	var (
		fields = make([]Expression, 0, len(exprs))
		seen   = make(map[string]struct{}, len(exprs))
	)
	var add func(e Expression)
	add = func(e Expression) {
		if x, ok := e.(expander); ok {
			for _, f := range x.expand() {
				add(f)
			}
			return
		}
		k := Key(e)
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		fields = append(fields, e)
	}
	for _, e := range exprs {
		add(e)
	}
	return fields
}

// Source returns the column set the fields are drawn from.
func (f *FieldSet) Source() ColumnSet { return f.source }

// Fields returns the projected expressions in order.
func (f *FieldSet) Fields() []Expression { return append([]Expression(nil), f.fields...) }

// Query returns a query selecting the fields.
func (f *FieldSet) Query() *Query {
	return &Query{set: f}
}

// Where returns a query selecting the fields filtered by ops.
func (f *FieldSet) Where(ops ...Op) *Query {
	return f.Query().Where(ops...)
}

// Select returns a query selecting exprs from source. No expressions
// selects every column of the source.
func Select(source ColumnSet, exprs ...Expression) *Query {
	return Slice(source, exprs...).Query()
}

// Select returns a query selecting exprs from the table. No expressions
// selects every column.
func (t *Table) Select(exprs ...Expression) *Query {
	return Select(t, exprs...)
}

// targets returns the tables read by a column set.
func targets(s ColumnSet) []*Table {
	switch s := s.(type) {
	case *Table:
		return []*Table{s}
	case *TableAlias:
		return []*Table{s.table}
	case *Join:
		ts := targets(s.left)
		for _, p := range s.parts {
			ts = append(ts, targets(p.set)...)
		}
		return ts
	case *QueryAlias:
		return s.query.Targets()
	}
	return nil
}
