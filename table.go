package tql

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/syssam/tql/types"
)

// ColumnSet is anything that can appear in a FROM clause: a table, a join
// or an alias.
type ColumnSet interface {
	// Columns returns the columns the set exposes, in declaration order.
	Columns() []AnyColumn
	renderSource(b *Builder)
}

// qualifier is implemented by column sets whose name qualifies their columns.
type qualifier interface {
	qualifier() string
}

// Table is a declared database table. Tables are declared once and are safe
// for concurrent use afterwards.
//
//	var Users = tql.NewTable("users")
//	var (
//		UserID   = Users.Long("id").AutoIncrement().PrimaryKey()
//		UserName = Users.VarChar("name", 50)
//	)
type Table struct {
	name    string
	columns []AnyColumn
	pk      []AnyColumn
	indices []*Index
	checks  []*Check
}

// Index is a declared index.
type Index struct {
	Name    string
	Unique  bool
	Columns []AnyColumn
}

// Check is a declared CHECK constraint.
type Check struct {
	Name string
	Op   Op
}

// NewTable declares a table.
func NewTable(name string) *Table {
	return &Table{name: name}
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Columns returns the columns in declaration order.
func (t *Table) Columns() []AnyColumn { return slices.Clone(t.columns) }

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) AnyColumn {
	for _, c := range t.columns {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// PrimaryKeyColumns returns the primary key columns in key order.
func (t *Table) PrimaryKeyColumns() []AnyColumn { return slices.Clone(t.pk) }

// Indices returns the declared indices.
func (t *Table) Indices() []*Index { return slices.Clone(t.indices) }

// Checks returns the declared CHECK constraints.
func (t *Table) Checks() []*Check { return slices.Clone(t.checks) }

func (t *Table) qualifier() string { return t.name }

func (t *Table) renderSource(b *Builder) { b.Ident(t.name) }

func (t *Table) add(c AnyColumn) {
	if t.Column(c.Name()) != nil {
		panic(buildErrorf("column", "duplicate column %q in table %q", c.Name(), t.name))
	}
	t.columns = append(t.columns, c)
}

// replace swaps a column for its variant everywhere the table refers to it.
func (t *Table) replace(old, c AnyColumn) {
	swap := func(cols []AnyColumn) {
		for i := range cols {
			if cols[i] == old {
				cols[i] = c
			}
		}
	}
	swap(t.columns)
	swap(t.pk)
	for _, idx := range t.indices {
		swap(idx.Columns)
	}
}

func (t *Table) owns(c AnyColumn) bool {
	return slices.Contains(t.columns, c)
}

// PrimaryKey appends columns to the primary key.
func (t *Table) PrimaryKey(cols ...AnyColumn) *Table {
	for _, c := range cols {
		if !t.owns(c) {
			panic(buildErrorf("primary key", "column %q does not belong to table %q", c.Name(), t.name))
		}
		if c.Def().PrimaryKey > 0 {
			continue
		}
		t.pk = append(t.pk, c)
		c.Def().PrimaryKey = len(t.pk)
	}
	return t
}

// Index declares an index over the columns. An empty name derives one from
// the table and column names.
func (t *Table) Index(name string, unique bool, cols ...AnyColumn) *Table {
	if len(cols) == 0 {
		panic(buildErrorf("index", "index on table %q has no columns", t.name))
	}
	if name == "" {
		parts := []string{baseName(t.name)}
		for _, c := range cols {
			parts = append(parts, c.Name())
		}
		if unique {
			parts = append(parts, "unique")
		}
		name = strings.Join(parts, "_")
	}
	t.indices = append(t.indices, &Index{Name: name, Unique: unique, Columns: cols})
	return t
}

// Check declares a CHECK constraint.
func (t *Table) Check(name string, op Op) *Table {
	t.checks = append(t.checks, &Check{Name: name, Op: op})
	return t
}

// Exists reports whether the table exists in the connected database.
func (t *Table) Exists(ctx context.Context, tx *Tx) (bool, error) {
	names, err := tx.Tables(ctx)
	if err != nil {
		return false, err
	}
	name := baseName(t.name)
	for _, n := range names {
		if tx.Dialect().EqualIdentifiers(tx.Dialect().FoldIdentifier(name), n) {
			return true, nil
		}
	}
	return false, nil
}

// Short declares a SMALLINT column.
func (t *Table) Short(name string) *Column[int16] {
	return AddColumn[int16](t, name, types.Int16)
}

// Integer declares an INT column.
func (t *Table) Integer(name string) *Column[int32] {
	return AddColumn[int32](t, name, types.Int32)
}

// Long declares a BIGINT column.
func (t *Table) Long(name string) *Column[int64] {
	return AddColumn[int64](t, name, types.Int64)
}

// Float declares a single precision floating point column.
func (t *Table) Float(name string) *Column[float32] {
	return AddColumn[float32](t, name, types.Float32)
}

// Double declares a double precision floating point column.
func (t *Table) Double(name string) *Column[float64] {
	return AddColumn[float64](t, name, types.Float64)
}

// Decimal declares a fixed-point column.
func (t *Table) Decimal(name string, precision, scale int) *Column[decimal.Decimal] {
	return AddColumn[decimal.Decimal](t, name, types.Decimal(precision, scale))
}

// Bool declares a boolean column.
func (t *Table) Bool(name string) *Column[bool] {
	return AddColumn[bool](t, name, types.Bool)
}

// Char declares a fixed-length text column.
func (t *Table) Char(name string, n int) *Column[string] {
	return AddColumn[string](t, name, types.Char(n))
}

// VarChar declares a text column of at most n characters.
func (t *Table) VarChar(name string, n int) *Column[string] {
	return AddColumn[string](t, name, types.VarChar(n))
}

// Text declares an unbounded text column.
func (t *Table) Text(name string) *Column[string] {
	return AddColumn[string](t, name, types.Text)
}

// Binary declares a binary column of at most n bytes.
func (t *Table) Binary(name string, n int) *Column[[]byte] {
	return AddColumn[[]byte](t, name, types.Binary(n))
}

// Blob declares an unbounded binary column.
func (t *Table) Blob(name string) *Column[[]byte] {
	return AddColumn[[]byte](t, name, types.Blob)
}

// UUID declares a UUID column.
func (t *Table) UUID(name string) *Column[uuid.UUID] {
	return AddColumn[uuid.UUID](t, name, types.UUID)
}

// Date declares a DATE column.
func (t *Table) Date(name string) *Column[time.Time] {
	return AddColumn[time.Time](t, name, types.Date)
}

// DateTime declares a timestamp column without time zone.
func (t *Table) DateTime(name string) *Column[time.Time] {
	return AddColumn[time.Time](t, name, types.DateTime)
}

// Timestamp declares a timestamp column with time zone.
func (t *Table) Timestamp(name string) *Column[time.Time] {
	return AddColumn[time.Time](t, name, types.Timestamp)
}

// EnumColumn declares a text column restricted to values.
func EnumColumn[E ~string](t *Table, name string, values ...E) *Column[E] {
	return AddColumn[E](t, name, types.Enum(values...))
}

// ArrayColumn declares an array column of elem values.
func ArrayColumn[E any](t *Table, name string, elem types.Type) *Column[[]E] {
	return AddColumn[[]E](t, name, types.Array[E](elem))
}

// referenceType returns the type of a column referencing c.
func referenceType(c AnyColumn) types.Type {
	if a, ok := c.Type().(*types.AutoIncrementType); ok {
		return a.Delegate
	}
	return c.Type()
}
