package tql

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/syssam/tql/dialect"
	"github.com/syssam/tql/types"
)

// EntityID is the identifier of a row of an IDTable. It carries the table
// the identifier belongs to.
type EntityID[T comparable] struct {
	Table *Table
	Value T
}

// NewEntityID returns the identifier v of a row of table.
func NewEntityID[T comparable](table *Table, v T) EntityID[T] {
	return EntityID[T]{Table: table, Value: v}
}

func (id EntityID[T]) String() string {
	return fmt.Sprint(id.Value)
}

func (id EntityID[T]) rawID() any { return id.Value }

// identifier is implemented by EntityID of any identifier type.
type identifier interface {
	rawID() any
}

// IDTable is a table whose primary key is a single identifier column.
// The column reads and writes EntityID values; result rows resolve it
// against the plain identifier as well.
type IDTable[T comparable] struct {
	*Table
	ID *Column[EntityID[T]]
}

// NewIDTable declares a table with an identifier column of type t.
func NewIDTable[T comparable](name, column string, t types.Type) *IDTable[T] {
	tbl := NewTable(name)
	id := AddColumn[EntityID[T]](tbl, column, EntityIDType[T](tbl, t))
	return &IDTable[T]{Table: tbl, ID: id.PrimaryKey()}
}

// NewLongIDTable declares a table with an auto-increment BIGINT "id" column.
func NewLongIDTable(name string) *IDTable[int64] {
	tbl := NewTable(name)
	id := AddColumn[EntityID[int64]](tbl, "id", EntityIDType[int64](tbl, types.Int64)).AutoIncrement()
	return &IDTable[int64]{Table: tbl, ID: id.PrimaryKey()}
}

// NewUUIDTable declares a table with a UUID "id" column generated on insert.
func NewUUIDTable(name string) *IDTable[uuid.UUID] {
	tbl := NewTable(name)
	id := AddColumn[EntityID[uuid.UUID]](tbl, "id", EntityIDType[uuid.UUID](tbl, types.UUID)).
		ClientDefault(func() EntityID[uuid.UUID] { return NewEntityID(tbl, uuid.New()) })
	return &IDTable[uuid.UUID]{Table: tbl, ID: id.PrimaryKey()}
}

// EntityIDType returns the column type of identifiers of table stored as raw.
// FromDB returns EntityID[T]; ToDB accepts an EntityID[T] or a plain T.
func EntityIDType[T comparable](table *Table, raw types.Type) types.Type {
	return entityIDType[T]{table: table, raw: raw}
}

type entityIDType[T comparable] struct {
	table *Table
	raw   types.Type
}

func (t entityIDType[T]) SQLType(d *dialect.Dialect) string { return t.raw.SQLType(d) }
func (t entityIDType[T]) Nullable() bool                    { return t.raw.Nullable() }
func (t entityIDType[T]) Unwrap() types.Type                { return t.raw }

func (t entityIDType[T]) Family() dialect.DataType {
	if f, ok := t.raw.(types.Familied); ok {
		return f.Family()
	}
	return 0
}

func (t entityIDType[T]) FromDB(v any) (any, error) {
	raw, err := t.raw.FromDB(v)
	if err != nil {
		return nil, err
	}
	id, ok := raw.(T)
	if !ok {
		return nil, fmt.Errorf("%w: want %T, got %T", types.ErrMismatch, id, raw)
	}
	return EntityID[T]{Table: t.table, Value: id}, nil
}

func (t entityIDType[T]) ToDB(d *dialect.Dialect, v any) (any, error) {
	return t.raw.ToDB(d, t.unwrap(v))
}

func (t entityIDType[T]) Literal(d *dialect.Dialect, v any) (string, error) {
	return t.raw.Literal(d, t.unwrap(v))
}

func (t entityIDType[T]) Validate(v any) error {
	return t.raw.Validate(t.unwrap(v))
}

func (entityIDType[T]) unwrap(v any) any {
	switch x := v.(type) {
	case EntityID[T]:
		return x.Value
	case *EntityID[T]:
		if x == nil {
			return nil
		}
		return x.Value
	}
	return v
}
