package dialect

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Dialect names.
const (
	Postgres  = "postgres"
	MySQL     = "mysql"
	SQLite    = "sqlite"
	Canonical = "canonical"
)

// ExecQuerier wraps the 2 database operations.
type ExecQuerier interface {
	// Exec executes a query that does not return records. For example, in SQL, INSERT or UPDATE.
	// It scans the result into the pointer v. For SQL drivers, it is dialect/sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows, typically a SELECT in SQL.
	// It scans the result into the pointer v. For SQL drivers, it is *dialect/sql.Rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for a driver session.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in transaction.
type Tx interface {
	ExecQuerier
	driver.Tx
}

// Savepointer is implemented by transactions that support nested savepoints.
type Savepointer interface {
	Savepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error
}

// Metadata describes the existing schema of the connected database.
type Metadata interface {
	// Tables returns the names of the tables in the current schema.
	Tables(ctx context.Context) ([]string, error)
}

// ErrUnsupported is matched by errors.Is for every UnsupportedError.
var ErrUnsupported = errors.New("dialect: unsupported feature")

// UnsupportedError reports a feature the dialect cannot express.
type UnsupportedError struct {
	Dialect string
	Feature string
}

// Error implements the error interface.
func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("dialect: %s does not support %s", e.Dialect, e.Feature)
}

// Is reports whether target is ErrUnsupported.
func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupported }

// Unsupported returns an UnsupportedError for the dialect.
func (d *Dialect) Unsupported(feature string) error {
	return &UnsupportedError{Dialect: d.Name, Feature: feature}
}

// DataType identifies a family of column types whose SQL name differs per dialect.
type DataType uint8

// Data type families.
const (
	TypeBool DataType = iota + 1
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeText
	TypeBlob
	TypeUUID
	TypeDate
	TypeDateTime
	TypeTimestampTZ
	// Sized families carry fmt verbs for their length, precision or scale.
	TypeVarChar
	TypeChar
	TypeBinary
	TypeDecimal
)

// UpsertStyle is the syntax family used for INSERT ... ON CONFLICT statements.
type UpsertStyle uint8

// Upsert styles.
const (
	UpsertNone UpsertStyle = iota
	// UpsertOnConflict renders ON CONFLICT (keys) DO UPDATE SET c = EXCLUDED.c.
	UpsertOnConflict
	// UpsertOnDuplicateKey renders ON DUPLICATE KEY UPDATE c = VALUES(c).
	UpsertOnDuplicateKey
)

// LockMode is a row locking clause appended to SELECT statements.
type LockMode uint8

// Lock modes.
const (
	LockNone LockMode = iota
	LockForUpdate
	LockForShare
)

// Dialect is a capability descriptor: the feature flags and rendering rules
// of one database backend. Descriptors are read-only after registration and
// safe for concurrent use.
type Dialect struct {
	// Name is the dialect identifier (e.g. "postgres").
	Name string
	// QuoteChar encloses identifiers.
	QuoteChar byte
	// NumberedParams renders $1, $2, ... instead of ?.
	NumberedParams bool
	// MaxParameters bounds the bind parameters of one statement. Zero means unbounded.
	MaxParameters int

	// Types maps data type families to SQL type names.
	Types map[DataType]string

	// BoolAsInt renders boolean literals as 1/0.
	BoolAsInt bool
	// BackslashEscapes marks string literals where backslash is an escape character.
	BackslashEscapes bool
	// UUIDAsBinary binds UUID values as 16 raw bytes.
	UUIDAsBinary bool
	// FoldLower reports whether unquoted identifiers fold to lower case.
	FoldLower bool
	// Arrays reports support for array columns.
	Arrays bool
	// ExprTextDefaults reports that TEXT and BLOB defaults must be written as
	// parenthesized expressions.
	ExprTextDefaults bool

	// Returning reports support for INSERT ... RETURNING.
	Returning bool
	// Intersect and Except report support for the INTERSECT and EXCEPT set operations.
	Intersect bool
	Except    bool
	// SetOperandSubqueries reports whether set operation operands may be
	// parenthesized subqueries carrying their own ORDER BY or LIMIT.
	SetOperandSubqueries bool
	// MultipleCursors reports whether one session may keep several result sets open.
	MultipleCursors bool
	// NativeAutoIncrement reports support for auto-increment column types.
	NativeAutoIncrement bool
	// Sequences reports support for explicit sequences.
	Sequences bool
	// CheckConstraints reports support for CHECK constraints.
	CheckConstraints bool
	// ILike reports support for the ILIKE operator.
	ILike bool
	// RowLocks reports support for FOR UPDATE / FOR SHARE.
	RowLocks bool
	// UpdateLimit reports support for LIMIT on UPDATE and DELETE.
	UpdateLimit bool

	// Upsert is the upsert syntax family.
	Upsert UpsertStyle
	// ReplaceInto reports support for REPLACE INTO.
	ReplaceInto bool
	// InsertIgnore is the INSERT prefix used to skip conflicting rows.
	// Empty means the dialect uses ON CONFLICT DO NOTHING.
	InsertIgnore string

	// LimitClause renders the LIMIT/OFFSET tail. hasLimit is false when only an offset is set.
	LimitClause func(limit int64, hasLimit bool, offset int64) string
	// Regexp renders a regular expression match of expr against pattern.
	// Nil means the dialect has no regexp operator.
	Regexp func(expr, pattern string, caseSensitive bool) string
	// Explain prefixes a statement to produce its plan.
	Explain func(query string, analyze bool) string
	// AutoIncrementType returns the column type of an auto-increment column.
	AutoIncrementType func(base DataType) string
	// NextVal renders the next value of a sequence.
	NextVal func(sequence string) string
	// BinaryLiteral renders a byte string literal.
	BinaryLiteral func(b []byte) string
	// PipeConcat renders string concatenation with || instead of CONCAT().
	PipeConcat bool
	// CharLength is the function returning the character length of a string.
	CharLength string
	// Random is the function call returning a random number.
	Random string
	// TablesQuery lists the table names of the current schema.
	TablesQuery string
}

// Quote quotes an identifier. Dotted names are quoted per part.
func (d *Dialect) Quote(ident string) string {
	q := string(d.QuoteChar)
	if !strings.Contains(ident, ".") {
		return q + strings.ReplaceAll(ident, q, q+q) + q
	}
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = q + strings.ReplaceAll(p, q, q+q) + q
	}
	return strings.Join(parts, ".")
}

// Placeholder returns the bind marker of the i-th (1-based) parameter.
func (d *Dialect) Placeholder(i int) string {
	if d.NumberedParams {
		return "$" + strconv.Itoa(i)
	}
	return "?"
}

// TypeName returns the SQL name of a data type family.
func (d *Dialect) TypeName(t DataType) string {
	if name, ok := d.Types[t]; ok {
		return name
	}
	return genericTypes[t]
}

// SizedTypeName returns the SQL name of a sized data type family with its
// size arguments substituted.
func (d *Dialect) SizedTypeName(t DataType, size ...int) string {
	name := d.TypeName(t)
	if n := strings.Count(name, "%d"); n > 0 && n <= len(size) {
		args := make([]any, n)
		for i := range args {
			args[i] = size[i]
		}
		return fmt.Sprintf(name, args...)
	}
	return name
}

// Bool renders a boolean literal.
func (d *Dialect) Bool(b bool) string {
	switch {
	case d.BoolAsInt && b:
		return "1"
	case d.BoolAsInt:
		return "0"
	case b:
		return "TRUE"
	default:
		return "FALSE"
	}
}

// String renders a quoted string literal.
func (d *Dialect) String(s string) string {
	s = strings.ReplaceAll(s, "'", "''")
	if d.BackslashEscapes {
		s = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`, "\x00", `\0`).Replace(s)
	}
	return "'" + s + "'"
}

// Time renders a timestamp literal.
func (d *Dialect) Time(t time.Time) string {
	return "'" + t.Format("2006-01-02 15:04:05.000000") + "'"
}

// Date renders a date literal.
func (d *Dialect) Date(t time.Time) string {
	return "'" + t.Format("2006-01-02") + "'"
}

// Lock renders the row locking clause for the mode. Dialects without row
// locks serialize writers and ignore the clause.
func (d *Dialect) Lock(m LockMode) string {
	if !d.RowLocks {
		return ""
	}
	switch m {
	case LockForUpdate:
		return " FOR UPDATE"
	case LockForShare:
		return " FOR SHARE"
	default:
		return ""
	}
}

// FoldIdentifier returns the identifier as the database stores it when unquoted.
func (d *Dialect) FoldIdentifier(s string) string {
	if d.FoldLower {
		return cases.Lower(language.Und).String(s)
	}
	return s
}

// EqualIdentifiers compares two identifiers the way the database resolves them.
func (d *Dialect) EqualIdentifiers(a, b string) bool {
	fold := cases.Fold()
	return fold.String(a) == fold.String(b)
}

func defaultLimit(limit int64, hasLimit bool, offset int64) string {
	var b strings.Builder
	if hasLimit {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.FormatInt(limit, 10))
	}
	if offset > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.FormatInt(offset, 10))
	}
	return b.String()
}

func hexLiteral(b []byte) string {
	return fmt.Sprintf("X'%X'", b)
}

var (
	mu       sync.RWMutex
	registry = map[string]*Dialect{}
)

// Register makes a dialect descriptor available by name. Registering a name twice replaces the descriptor.
func Register(d *Dialect) {
	mu.Lock()
	defer mu.Unlock()
	registry[d.Name] = d
}

// Get returns the registered descriptor of the dialect. Driver names with a
// known dialect prefix (e.g. "postgres+otel") resolve to the base dialect.
func Get(name string) (*Dialect, error) {
	mu.RLock()
	defer mu.RUnlock()
	if d, ok := registry[name]; ok {
		return d, nil
	}
	for _, base := range []string{MySQL, SQLite, Postgres} {
		if strings.HasPrefix(name, base) {
			return registry[base], nil
		}
	}
	return nil, fmt.Errorf("dialect: unknown dialect %q", name)
}

func init() {
	for _, d := range []*Dialect{Generic, PostgresDialect, MySQLDialect, SQLiteDialect} {
		Register(d)
	}
}
