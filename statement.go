package tql

import (
	"github.com/syssam/tql/dialect"
)

// Kind is the kind of a statement.
type Kind uint8

// Statement kinds.
const (
	KindSelect Kind = iota + 1
	KindInsert
	KindUpdate
	KindDelete
	KindUpsert
	KindReplace
	KindDDL
	KindExplain
	KindOther
)

var kindNames = [...]string{
	KindSelect:  "SELECT",
	KindInsert:  "INSERT",
	KindUpdate:  "UPDATE",
	KindDelete:  "DELETE",
	KindUpsert:  "UPSERT",
	KindReplace: "REPLACE",
	KindDDL:     "DDL",
	KindExplain: "EXPLAIN",
	KindOther:   "OTHER",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "UNKNOWN"
}

// Statement is a unit of execution.
type Statement interface {
	// Kind returns the statement kind.
	Kind() Kind
	// Targets returns the tables the statement reads or writes.
	Targets() []*Table
	// Render appends the statement SQL to the builder.
	Render(b *Builder)
}

// rowsStatement is implemented by statements returning rows, with the
// expressions their columns convert through.
type rowsStatement interface {
	Statement
	Fields() []Expression
}

// Render renders the statement for the dialect without executing it. In
// prepared mode values are returned as arguments in placeholder order.
func Render(stmt Statement, d *dialect.Dialect, prepared bool) (string, []Arg, error) {
	b := NewBuilder(d, prepared)
	stmt.Render(b)
	if err := b.Err(); err != nil {
		return "", nil, err
	}
	return b.String(), b.Args(), nil
}

// RawStatement is a hand-written statement. Each "?" in its SQL binds the
// next argument.
type RawStatement struct {
	kind    Kind
	expr    *raw[any]
	targets []*Table
}

// NewRawStatement returns a statement of the given kind executing sql.
func NewRawStatement(kind Kind, sql string, args ...any) *RawStatement {
	return &RawStatement{kind: kind, expr: &raw[any]{sql: sql, args: args}}
}

// On records the tables the statement touches.
func (s *RawStatement) On(tables ...*Table) *RawStatement {
	s.targets = append(s.targets, tables...)
	return s
}

// Kind returns the statement kind.
func (s *RawStatement) Kind() Kind { return s.kind }

// Targets returns the tables recorded with On.
func (s *RawStatement) Targets() []*Table { return s.targets }

// Render renders the statement.
func (s *RawStatement) Render(b *Builder) { s.expr.Render(b) }
