package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/syssam/tql/dialect"
)

// validIdentifierRe validates SQL identifiers (alphanumeric, underscores, dots for schema.name)
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// isValidIdentifier checks if the string is a valid SQL identifier.
func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// Driver is a dialect.Driver implementation for SQL based databases.
type Driver struct {
	Conn
	dialect string
}

// Option configures a Driver.
type Option func(*Driver)

// WithStatementCache keeps a prepared statement per distinct query text for
// the lifetime of the driver. Concurrent first uses of the same query share
// one prepare round trip.
func WithStatementCache() Option {
	return func(d *Driver) {
		if db, ok := d.ExecQuerier.(*sql.DB); ok {
			d.stmts = newStmtCache(db)
		}
	}
}

// NewDriver creates a new Driver with the given Conn and dialect.
func NewDriver(dialect string, c Conn, opts ...Option) *Driver {
	d := &Driver{dialect: dialect, Conn: c}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open wraps the database/sql.Open method and returns a dialect.Driver.
func Open(dialect, source string, opts ...Option) (*Driver, error) {
	db, err := sql.Open(dialect, source)
	if err != nil {
		return nil, err
	}
	return NewDriver(dialect, Conn{ExecQuerier: db, dialect: dialect}, opts...), nil
}

// OpenDB wraps the given database/sql.DB method with a Driver.
func OpenDB(dialect string, db *sql.DB, opts ...Option) *Driver {
	return NewDriver(dialect, Conn{ExecQuerier: db, dialect: dialect}, opts...)
}

// DB returns the underlying *sql.DB instance.
func (d Driver) DB() *sql.DB {
	return d.ExecQuerier.(*sql.DB)
}

// Dialect implements the dialect.Dialect method.
func (d Driver) Dialect() string {
	// If the underlying driver is wrapped with a telemetry driver.
	for _, name := range []string{dialect.MySQL, dialect.SQLite, dialect.Postgres} {
		if strings.HasPrefix(d.dialect, name) {
			return name
		}
	}
	return d.dialect
}

// Tx starts and returns a transaction.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	return d.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with options.
func (d *Driver) BeginTx(ctx context.Context, opts *TxOptions) (dialect.Tx, error) {
	tx, err := d.DB().BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{
		Conn: Conn{ExecQuerier: tx, dialect: d.dialect, stmts: d.stmts},
		Tx:   tx,
	}, nil
}

// Close closes the cached statements and the underlying connection.
func (d *Driver) Close() error {
	var err error
	if d.stmts != nil {
		err = d.stmts.close()
	}
	return errors.Join(err, d.DB().Close())
}

// Tx implements dialect.Tx interface.
type Tx struct {
	Conn
	driver.Tx
}

// Savepoint creates a savepoint with the given name inside the transaction.
func (tx *Tx) Savepoint(ctx context.Context, name string) error {
	return tx.savepoint(ctx, "SAVEPOINT ", name)
}

// RollbackTo rolls the transaction back to the named savepoint.
func (tx *Tx) RollbackTo(ctx context.Context, name string) error {
	return tx.savepoint(ctx, "ROLLBACK TO SAVEPOINT ", name)
}

// Release destroys the named savepoint, keeping its effects.
func (tx *Tx) Release(ctx context.Context, name string) error {
	return tx.savepoint(ctx, "RELEASE SAVEPOINT ", name)
}

func (tx *Tx) savepoint(ctx context.Context, stmt, name string) error {
	if !isValidIdentifier(name) {
		return fmt.Errorf("dialect/sql: invalid savepoint name: %q", name)
	}
	if _, err := tx.ExecContext(ctx, stmt+name); err != nil {
		return fmt.Errorf("dialect/sql: %s: %w", strings.ToLower(strings.TrimSpace(stmt)), err)
	}
	return nil
}

// ExecQuerier wraps the standard Exec and Query methods.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn implements dialect.ExecQuerier given ExecQuerier.
type Conn struct {
	ExecQuerier
	dialect string
	stmts   *stmtCache
}

// Exec implements the dialect.Exec method.
func (c Conn) Exec(ctx context.Context, query string, args, v any) error {
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	switch v := v.(type) {
	case nil:
		if _, err := c.exec(ctx, query, argv); err != nil {
			return fmt.Errorf("dialect/sql: exec: %w", err)
		}
	case *sql.Result:
		res, err := c.exec(ctx, query, argv)
		if err != nil {
			return fmt.Errorf("dialect/sql: exec: %w", err)
		}
		*v = res
	default:
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Result", v)
	}
	return nil
}

// Query implements the dialect.Query method.
func (c Conn) Query(ctx context.Context, query string, args, v any) error {
	vr, ok := v.(*Rows)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Rows", v)
	}
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	rows, err := c.query(ctx, query, argv)
	if err != nil {
		return fmt.Errorf("dialect/sql: query: %w", err)
	}
	*vr = Rows{rows}
	return nil
}

// Tables implements dialect.Metadata. It lists the tables of the current schema.
func (c Conn) Tables(ctx context.Context) ([]string, error) {
	d, err := dialect.Get(c.dialect)
	if err != nil {
		return nil, err
	}
	if d.TablesQuery == "" {
		return nil, d.Unsupported("table metadata")
	}
	rows, err := c.QueryContext(ctx, d.TablesQuery)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: tables: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (c Conn) exec(ctx context.Context, query string, args []any) (sql.Result, error) {
	if c.stmts == nil {
		return c.ExecContext(ctx, query, args...)
	}
	stmt, err := c.stmt(ctx, query)
	if err != nil {
		return nil, err
	}
	return stmt.ExecContext(ctx, args...)
}

func (c Conn) query(ctx context.Context, query string, args []any) (*sql.Rows, error) {
	if c.stmts == nil {
		return c.QueryContext(ctx, query, args...)
	}
	stmt, err := c.stmt(ctx, query)
	if err != nil {
		return nil, err
	}
	return stmt.QueryContext(ctx, args...)
}

// stmt returns the cached statement of the query, bound to the transaction
// when the connection is one. Transaction-bound statements are closed by
// database/sql on commit or rollback.
func (c Conn) stmt(ctx context.Context, query string) (*sql.Stmt, error) {
	stmt, err := c.stmts.get(ctx, query)
	if err != nil {
		return nil, err
	}
	if tx, ok := c.ExecQuerier.(*sql.Tx); ok {
		return tx.StmtContext(ctx, stmt), nil
	}
	return stmt, nil
}

// stmtCache holds prepared statements keyed by query text.
type stmtCache struct {
	db    *sql.DB
	group singleflight.Group
	mu    sync.RWMutex
	stmts map[string]*sql.Stmt
}

func newStmtCache(db *sql.DB) *stmtCache {
	return &stmtCache{db: db, stmts: make(map[string]*sql.Stmt)}
}

func (c *stmtCache) get(ctx context.Context, query string) (*sql.Stmt, error) {
	c.mu.RLock()
	stmt, ok := c.stmts[query]
	c.mu.RUnlock()
	if ok {
		return stmt, nil
	}
	v, err, _ := c.group.Do(query, func() (any, error) {
		c.mu.RLock()
		stmt, ok := c.stmts[query]
		c.mu.RUnlock()
		if ok {
			return stmt, nil
		}
		// Callers waiting on the same query share this prepare; one of them
		// being canceled must not fail the others.
		stmt, err := c.db.PrepareContext(context.WithoutCancel(ctx), query)
		if err != nil {
			return nil, fmt.Errorf("prepare: %w", err)
		}
		c.mu.Lock()
		c.stmts[query] = stmt
		c.mu.Unlock()
		return stmt, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sql.Stmt), nil
}

// len returns the number of cached statements.
func (c *stmtCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.stmts)
}

func (c *stmtCache) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for q, stmt := range c.stmts {
		errs = append(errs, stmt.Close())
		delete(c.stmts, q)
	}
	return errors.Join(errs...)
}

var (
	_ dialect.Driver      = (*Driver)(nil)
	_ dialect.Savepointer = (*Tx)(nil)
	_ dialect.Metadata    = (*Driver)(nil)
)

type (
	// Rows wraps the sql.Rows to avoid locks copy.
	Rows struct{ ColumnScanner }
	// Result is an alias to sql.Result.
	Result = sql.Result
	// TxOptions holds the transaction options to be used in DB.BeginTx.
	TxOptions = sql.TxOptions
)

// ColumnScanner is the interface that wraps the standard
// sql.Rows methods used for scanning database rows.
type ColumnScanner interface {
	Close() error
	ColumnTypes() ([]*sql.ColumnType, error)
	Columns() ([]string, error)
	Err() error
	Next() bool
	NextResultSet() bool
	Scan(dest ...any) error
}
