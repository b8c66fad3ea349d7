package tql

import "context"

// ExplainStatement returns the plan of a statement.
type ExplainStatement struct {
	stmt    Statement
	analyze bool
}

// Explain returns a statement producing the plan of stmt. Its rows are read
// raw, one slot per column the database returns.
func Explain(stmt Statement) *ExplainStatement {
	return &ExplainStatement{stmt: stmt}
}

// Analyze executes the statement to report actual costs, on dialects that
// support it.
func (s *ExplainStatement) Analyze() *ExplainStatement {
	s.analyze = true
	return s
}

// Kind returns KindExplain.
func (*ExplainStatement) Kind() Kind { return KindExplain }

// Targets returns the tables of the explained statement.
func (s *ExplainStatement) Targets() []*Table { return s.stmt.Targets() }

// Fields returns nil: plan columns are not known in advance.
func (*ExplainStatement) Fields() []Expression { return nil }

// Render renders the dialect EXPLAIN form of the statement.
func (s *ExplainStatement) Render(b *Builder) {
	d := b.Dialect()
	if d.Explain == nil {
		b.AddError(d.Unsupported("EXPLAIN"))
	}
	inner := b.renderString(s.stmt.Render)
	if d.Explain == nil {
		b.WriteString(inner)
		return
	}
	b.WriteString(d.Explain(inner, s.analyze))
}

// All executes the statement and returns the plan rows.
func (s *ExplainStatement) All(ctx context.Context, tx *Tx) ([]*ResultRow, error) {
	rows, err := tx.Query(ctx, s)
	if err != nil {
		return nil, err
	}
	return rows.All()
}
