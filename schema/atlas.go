package schema

import (
	"context"
	"fmt"
	"strings"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/tql"
	"github.com/syssam/tql/dialect"
	sqldialect "github.com/syssam/tql/dialect/sql"
	"github.com/syssam/tql/types"
)

// ToAtlas exports declared tables to an atlas schema named name. Foreign
// keys must reference tables of the same export.
func ToAtlas(d *dialect.Dialect, name string, tables ...*tql.Table) (*schema.Schema, error) {
	s := schema.New(name)
	byTable := make(map[*tql.Table]*schema.Table, len(tables))
	for _, t := range tables {
		at, err := atlasTable(d, t)
		if err != nil {
			return nil, err
		}
		at.Schema = s
		s.Tables = append(s.Tables, at)
		byTable[t] = at
	}
	for _, t := range tables {
		at := byTable[t]
		for _, c := range t.Columns() {
			fk := c.Def().ForeignKey
			if fk == nil {
				continue
			}
			ref, ok := byTable[fk.Target.Table()]
			if !ok {
				return nil, fmt.Errorf("schema: %s.%s references table %q outside the export",
					t.Name(), c.Name(), fk.Target.Table().Name())
			}
			col, _ := at.Column(c.Name())
			refCol, _ := ref.Column(fk.Target.Name())
			afk := &schema.ForeignKey{
				Symbol:     fk.ConstraintName(c),
				Table:      at,
				Columns:    []*schema.Column{col},
				RefTable:   ref,
				RefColumns: []*schema.Column{refCol},
				OnUpdate:   schema.ReferenceOption(fk.OnUpdate),
				OnDelete:   schema.ReferenceOption(fk.OnDelete),
			}
			col.ForeignKeys = append(col.ForeignKeys, afk)
			at.ForeignKeys = append(at.ForeignKeys, afk)
		}
	}
	return s, nil
}

func atlasTable(d *dialect.Dialect, t *tql.Table) (*schema.Table, error) {
	at := &schema.Table{Name: tableName(t)}
	for _, c := range t.Columns() {
		col, err := atlasColumn(d, c)
		if err != nil {
			return nil, fmt.Errorf("schema: %s.%s: %w", t.Name(), c.Name(), err)
		}
		at.Columns = append(at.Columns, col)
	}
	if pk := t.PrimaryKeyColumns(); len(pk) > 0 {
		at.PrimaryKey = &schema.Index{Unique: true, Table: at, Parts: parts(at, pk)}
	}
	for _, idx := range t.Indices() {
		ai := &schema.Index{Name: idx.Name, Unique: idx.Unique, Table: at, Parts: parts(at, idx.Columns)}
		at.Indexes = append(at.Indexes, ai)
		for _, p := range ai.Parts {
			p.C.Indexes = append(p.C.Indexes, ai)
		}
	}
	for _, ck := range t.Checks() {
		if !d.CheckConstraints {
			return nil, fmt.Errorf("schema: check %q on %s: %w", ck.Name, t.Name(), d.Unsupported("CHECK constraints"))
		}
		expr, err := tql.DDLExpression(d, ck.Op)
		if err != nil {
			return nil, fmt.Errorf("schema: check %q on %s: %w", ck.Name, t.Name(), err)
		}
		at.Attrs = append(at.Attrs, &schema.Check{Name: ck.Name, Expr: expr})
	}
	return at, nil
}

func atlasColumn(d *dialect.Dialect, c tql.AnyColumn) (*schema.Column, error) {
	typ := c.Type()
	col := &schema.Column{
		Name: c.Name(),
		Type: &schema.ColumnType{Raw: typ.SQLType(d), Null: typ.Nullable()},
	}
	col.Type.Type = atlasType(col.Type.Raw, typ)

	plan, ok, err := tql.ResolveAutoIncrement(d, c)
	if err != nil {
		return nil, err
	}
	if ok {
		col.Type.Raw = plan.ColumnType
		switch {
		case plan.Sequence != "":
			col.Default = &schema.RawExpr{X: plan.NextVal}
		case d.Name == dialect.MySQL:
			col.AddAttrs(&mysql.AutoIncrement{})
		case d.Name == dialect.SQLite:
			col.AddAttrs(&sqlite.AutoIncrement{})
		case d.Name == dialect.Postgres:
			col.Type.Type = &postgres.SerialType{T: strings.ToLower(plan.ColumnType)}
		}
		return col, nil
	}

	def := c.Def()
	switch {
	case def.DefaultExpr != nil:
		expr, err := tql.DDLExpression(d, def.DefaultExpr)
		if err != nil {
			return nil, err
		}
		col.Default = &schema.RawExpr{X: expr}
	case def.HasDefault:
		lit, err := types.DefaultLiteral(d, typ, def.Default)
		if err != nil {
			return nil, err
		}
		col.Default = &schema.Literal{V: lit}
	}
	return col, nil
}

// atlasType maps a column type onto the atlas type of its family.
func atlasType(raw string, t types.Type) schema.Type {
	for range 4 {
		if _, ok := t.(types.Familied); ok {
			break
		}
		u, ok := t.(interface{ Unwrap() types.Type })
		if !ok {
			break
		}
		t = u.Unwrap()
	}
	f, ok := t.(types.Familied)
	if !ok {
		return &schema.UnsupportedType{T: raw}
	}
	switch f.Family() {
	case dialect.TypeBool:
		return &schema.BoolType{T: raw}
	case dialect.TypeInt16, dialect.TypeInt32, dialect.TypeInt64:
		return &schema.IntegerType{T: raw}
	case dialect.TypeFloat32, dialect.TypeFloat64:
		return &schema.FloatType{T: raw}
	case dialect.TypeText, dialect.TypeVarChar, dialect.TypeChar:
		st := &schema.StringType{T: raw}
		if s, ok := t.(interface{ Size() int }); ok {
			st.Size = s.Size()
		}
		return st
	case dialect.TypeBlob, dialect.TypeBinary:
		return &schema.BinaryType{T: raw}
	case dialect.TypeUUID:
		return &schema.UUIDType{T: raw}
	case dialect.TypeDate, dialect.TypeDateTime, dialect.TypeTimestampTZ:
		return &schema.TimeType{T: raw}
	case dialect.TypeDecimal:
		return &schema.DecimalType{T: raw}
	default:
		return &schema.UnsupportedType{T: raw}
	}
}

func parts(at *schema.Table, cols []tql.AnyColumn) []*schema.IndexPart {
	ps := make([]*schema.IndexPart, len(cols))
	for i, c := range cols {
		col, _ := at.Column(c.Name())
		ps[i] = &schema.IndexPart{SeqNo: i + 1, C: col}
	}
	return ps
}

func tableName(t *tql.Table) string {
	name := t.Name()
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Inspect reads the current schema of the connected database through the
// atlas driver of its dialect.
func Inspect(ctx context.Context, db *tql.DB) (*schema.Schema, error) {
	drv, ok := db.Driver().(*sqldialect.Driver)
	if !ok {
		return nil, fmt.Errorf("schema: inspecting requires a database/sql driver, got %T", db.Driver())
	}
	var (
		ad  migrate.Driver
		err error
	)
	switch drv.Dialect() {
	case dialect.MySQL:
		ad, err = mysql.Open(drv.DB())
	case dialect.Postgres:
		ad, err = postgres.Open(drv.DB())
	case dialect.SQLite:
		ad, err = sqlite.Open(drv.DB())
	default:
		return nil, fmt.Errorf("schema: no inspector for dialect %q", drv.Dialect())
	}
	if err != nil {
		return nil, fmt.Errorf("schema: opening inspector: %w", err)
	}
	s, err := ad.InspectSchema(ctx, "", nil)
	if err != nil {
		return nil, fmt.Errorf("schema: inspecting: %w", err)
	}
	return s, nil
}

// Check compares the connected database with the declared tables. The
// database schema is the current side of the diff.
func Check(ctx context.Context, db *tql.DB, tables []*tql.Table, opts ...ValidateOption) (*ValidationResult, error) {
	current, err := Inspect(ctx, db)
	if err != nil {
		return nil, err
	}
	desired, err := ToAtlas(db.Dialect(), current.Name, tables...)
	if err != nil {
		return nil, err
	}
	return ValidateDiff(current, desired, opts...), nil
}
