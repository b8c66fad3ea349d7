package tql

import (
	"strings"

	"github.com/go-openapi/inflect"
)

// ReferenceOption is the action taken on referencing rows when the
// referenced row is updated or deleted.
type ReferenceOption string

// Reference options.
const (
	Cascade    ReferenceOption = "CASCADE"
	SetNull    ReferenceOption = "SET NULL"
	Restrict   ReferenceOption = "RESTRICT"
	SetDefault ReferenceOption = "SET DEFAULT"
	NoAction   ReferenceOption = "NO ACTION"
)

// ForeignKey is the reference of a column to a column of another table.
type ForeignKey struct {
	// Target is the referenced table column.
	Target AnyColumn
	// OnUpdate and OnDelete are the referential actions. Empty means the
	// database default.
	OnUpdate ReferenceOption
	OnDelete ReferenceOption
	// Name is the constraint name. Empty means a name derived from the
	// columns, see ConstraintName.
	Name string
}

// ConstraintName returns the constraint name of the foreign key held by from.
func (fk *ForeignKey) ConstraintName(from AnyColumn) string {
	if fk.Name != "" {
		return fk.Name
	}
	return "fk_" + baseName(from.Table().Name()) + "_" + from.Name() +
		"__" + baseName(fk.Target.Table().Name()) + "_" + fk.Target.Name()
}

// RefOption configures a foreign key.
type RefOption func(*ForeignKey)

// OnDelete sets the action taken when the referenced row is deleted.
func OnDelete(o ReferenceOption) RefOption {
	return func(fk *ForeignKey) { fk.OnDelete = o }
}

// OnUpdate sets the action taken when the referenced key is updated.
func OnUpdate(o ReferenceOption) RefOption {
	return func(fk *ForeignKey) { fk.OnUpdate = o }
}

// ConstraintName sets the constraint name of the foreign key.
func ConstraintName(name string) RefOption {
	return func(fk *ForeignKey) { fk.Name = name }
}

// RefColumn declares on t a column referencing target, named after the
// singular of the target table and the target column (e.g. "city_id" for
// cities.id). Auto-increment targets are referenced with their plain type.
func RefColumn[T any](t *Table, target *Column[T], opts ...RefOption) *Column[T] {
	name := inflect.Singularize(baseName(target.Table().Name())) + "_" + target.Name()
	return AddColumn[T](t, name, referenceType(target)).References(target, opts...)
}

// OptRefColumn is RefColumn for a nullable reference.
func OptRefColumn[T any](t *Table, target *Column[T], opts ...RefOption) *Column[*T] {
	return Nullable(RefColumn(t, target, opts...))
}

// baseName strips the schema of a qualified table name.
func baseName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
