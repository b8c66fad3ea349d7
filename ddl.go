package tql

import (
	"context"
	"strings"

	"github.com/syssam/tql/dialect"
	"github.com/syssam/tql/types"
)

// CreateTableStatement creates a table. Its Exec also creates the sequences
// and the indices the table declares.
type CreateTableStatement struct {
	table       *Table
	ifNotExists bool
}

// CreateTable returns the DDL creating t.
func CreateTable(t *Table) *CreateTableStatement {
	return &CreateTableStatement{table: t}
}

// IfNotExists skips tables, sequences and indices that already exist.
func (s *CreateTableStatement) IfNotExists() *CreateTableStatement {
	s.ifNotExists = true
	return s
}

// Kind returns KindDDL.
func (*CreateTableStatement) Kind() Kind { return KindDDL }

// Targets returns the table.
func (s *CreateTableStatement) Targets() []*Table { return []*Table{s.table} }

// Render renders the CREATE TABLE statement.
func (s *CreateTableStatement) Render(b *Builder) {
	t, d := s.table, b.Dialect()
	b.WriteString("CREATE TABLE ")
	if s.ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.Ident(t.name).WriteString(" (")
	inlinePK := false
	for i, c := range t.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		inlinePK = renderColumnDef(b, t, c) || inlinePK
	}
	if len(t.pk) > 0 && !inlinePK {
		b.WriteString(", PRIMARY KEY (")
		for i, c := range t.pk {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Ident(c.Name())
		}
		b.Byte(')')
	}
	for _, c := range t.columns {
		fk := c.Def().ForeignKey
		if fk == nil {
			continue
		}
		b.WriteString(", CONSTRAINT ").Ident(fk.ConstraintName(c)).
			WriteString(" FOREIGN KEY (").Ident(c.Name()).
			WriteString(") REFERENCES ").Ident(fk.Target.Table().Name()).
			WriteString(" (").Ident(fk.Target.Name()).Byte(')')
		if fk.OnDelete != "" {
			b.WriteString(" ON DELETE ").WriteString(string(fk.OnDelete))
		}
		if fk.OnUpdate != "" {
			b.WriteString(" ON UPDATE ").WriteString(string(fk.OnUpdate))
		}
	}
	for _, ck := range t.checks {
		if !d.CheckConstraints {
			b.AddError(d.Unsupported("CHECK constraints"))
			break
		}
		cond, err := inline(d, ck.Op)
		b.AddError(err)
		b.WriteString(", ")
		if ck.Name != "" {
			b.WriteString("CONSTRAINT ").Ident(ck.Name).Pad()
		}
		b.WriteString("CHECK (").WriteString(cond).Byte(')')
	}
	b.Byte(')')
}

// renderColumnDef renders one column definition. It reports whether the
// column carries the primary key inline.
func renderColumnDef(b *Builder, t *Table, c AnyColumn) bool {
	d := b.Dialect()
	b.Ident(c.Name()).Pad()
	ai, isAI := c.Type().(*types.AutoIncrementType)
	if !isAI {
		b.WriteString(c.Type().SQLType(d))
	} else {
		plan, err := ai.Resolve(d, sequenceName(t, c))
		b.AddError(err)
		b.WriteString(plan.ColumnType)
		// SQLite generates keys only for an INTEGER PRIMARY KEY declared inline.
		if d.Name == dialect.SQLite && plan.Sequence == "" && len(t.pk) == 1 && t.pk[0] == c {
			b.WriteString(" PRIMARY KEY AUTOINCREMENT")
			return true
		}
	}
	if !c.Type().Nullable() {
		b.WriteString(" NOT NULL")
	}
	def := c.Def()
	switch {
	case def.DefaultExpr != nil:
		expr, err := inline(d, def.DefaultExpr)
		b.AddError(err)
		b.WriteString(" DEFAULT (").WriteString(expr).Byte(')')
	case def.HasDefault:
		lit, err := types.DefaultLiteral(d, c.Type(), def.Default)
		b.AddError(err)
		b.WriteString(" DEFAULT ").WriteString(lit)
	}
	return false
}

// inline renders e for DDL, with inline values and unqualified columns.
func inline(d *dialect.Dialect, e Expression) (string, error) {
	b := NewBuilder(d, false)
	b.bare = true
	e.Render(b)
	return b.String(), b.Err()
}

// DDLExpression renders e the way it appears in DDL, with inline values and
// unqualified columns.
func DDLExpression(d *dialect.Dialect, e Expression) (string, error) {
	return inline(d, e)
}

// ResolveAutoIncrement returns how the dialect generates the values of c.
// ok is false when c is not an auto-increment column.
func ResolveAutoIncrement(d *dialect.Dialect, c AnyColumn) (plan types.AutoIncrementPlan, ok bool, err error) {
	ai, ok := c.Origin().Type().(*types.AutoIncrementType)
	if !ok {
		return plan, false, nil
	}
	plan, err = ai.Resolve(d, sequenceName(c.Table(), c))
	return plan, true, err
}

// statements returns the DDL statements creating the table: its sequences,
// the table and its indices.
func (s *CreateTableStatement) statements(d *dialect.Dialect) []Statement {
	var (
		stmts  []Statement
		exists string
	)
	if s.ifNotExists {
		exists = "IF NOT EXISTS "
	}
	for _, c := range s.table.columns {
		ai, ok := c.Type().(*types.AutoIncrementType)
		if !ok {
			continue
		}
		if plan, err := ai.Resolve(d, sequenceName(s.table, c)); err == nil && plan.Sequence != "" {
			stmts = append(stmts, NewRawStatement(KindDDL, "CREATE SEQUENCE "+exists+d.Quote(plan.Sequence)).On(s.table))
		}
	}
	stmts = append(stmts, s)
	for _, idx := range s.table.indices {
		var sb strings.Builder
		sb.WriteString("CREATE ")
		if idx.Unique {
			sb.WriteString("UNIQUE ")
		}
		sb.WriteString("INDEX ")
		// MySQL has no IF NOT EXISTS for indices.
		if d.Name != dialect.MySQL {
			sb.WriteString(exists)
		}
		sb.WriteString(d.Quote(idx.Name) + " ON " + d.Quote(s.table.name) + " (")
		for i, c := range idx.Columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.Quote(c.Name()))
		}
		sb.WriteString(")")
		stmts = append(stmts, NewRawStatement(KindDDL, sb.String()).On(s.table))
	}
	return stmts
}

// Exec creates the sequences, the table and the indices.
func (s *CreateTableStatement) Exec(ctx context.Context, tx *Tx) error {
	for _, stmt := range s.statements(tx.Dialect()) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// DropTableStatement drops a table.
type DropTableStatement struct {
	table    *Table
	ifExists bool
}

// DropTable returns the DDL dropping t.
func DropTable(t *Table) *DropTableStatement {
	return &DropTableStatement{table: t}
}

// IfExists skips a missing table.
func (s *DropTableStatement) IfExists() *DropTableStatement {
	s.ifExists = true
	return s
}

// Kind returns KindDDL.
func (*DropTableStatement) Kind() Kind { return KindDDL }

// Targets returns the table.
func (s *DropTableStatement) Targets() []*Table { return []*Table{s.table} }

// Render renders the statement.
func (s *DropTableStatement) Render(b *Builder) {
	b.WriteString("DROP TABLE ")
	if s.ifExists {
		b.WriteString("IF EXISTS ")
	}
	b.Ident(s.table.name)
}

// Exec drops the table.
func (s *DropTableStatement) Exec(ctx context.Context, tx *Tx) error {
	_, err := tx.Exec(ctx, s)
	return err
}
