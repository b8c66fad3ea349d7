package tql

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/syssam/tql/dialect"
)

// DB executes statements through a driver.
type DB struct {
	drv     dialect.Driver
	dialect *dialect.Dialect

	mu   sync.RWMutex
	opts options
}

type options struct {
	logger        *slog.Logger
	debug         bool
	slowThreshold time.Duration
	interceptors  []Interceptor
	dialect       *dialect.Dialect
}

// Option configures a DB.
type Option func(*options)

// WithLogger sets the logger of debug output and long query warnings.
// Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithDebug logs every statement with its arguments expanded inline, and
// expands them in ExecError messages.
func WithDebug(debug bool) Option {
	return func(o *options) {
		o.debug = debug
	}
}

// WithSlowThreshold logs a "long query" warning for statements running
// longer than d. Zero disables the warning. Statements are never cancelled.
func WithSlowThreshold(d time.Duration) Option {
	return func(o *options) {
		o.slowThreshold = d
	}
}

// WithInterceptors appends statement interceptors.
func WithInterceptors(is ...Interceptor) Option {
	return func(o *options) {
		o.interceptors = append(o.interceptors, is...)
	}
}

// WithDialect overrides the dialect descriptor resolved from the driver.
func WithDialect(d *dialect.Dialect) Option {
	return func(o *options) {
		o.dialect = d
	}
}

// Open returns a DB executing statements through drv.
func Open(drv dialect.Driver, opts ...Option) (*DB, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	d := o.dialect
	if d == nil {
		var err error
		if d, err = dialect.Get(drv.Dialect()); err != nil {
			return nil, fmt.Errorf("tql: %w", err)
		}
	}
	return &DB{drv: drv, dialect: d, opts: o}, nil
}

// Apply changes the options of an open DB. Statements already running keep
// the options they started with.
func (db *DB) Apply(opts ...Option) {
	db.mu.Lock()
	defer db.mu.Unlock()
	o := db.opts
	o.interceptors = append([]Interceptor(nil), db.opts.interceptors...)
	for _, opt := range opts {
		opt(&o)
	}
	db.opts = o
}

func (db *DB) options() options {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.opts
}

// Logger returns the logger the DB writes statements and warnings to.
func (db *DB) Logger() *slog.Logger { return db.options().logger }

// Dialect returns the dialect descriptor statements are rendered for.
func (db *DB) Dialect() *dialect.Dialect { return db.dialect }

// Driver returns the underlying driver.
func (db *DB) Driver() dialect.Driver { return db.drv }

// Close closes the driver.
func (db *DB) Close() error { return db.drv.Close() }

// Tx starts a transaction.
func (db *DB) Tx(ctx context.Context) (*Tx, error) {
	tx, err := db.drv.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("tql: starting a transaction: %w", err)
	}
	return &Tx{db: db, conn: tx, tx: tx, dialect: db.dialect}, nil
}

// Session returns a Tx executing every statement in its own implicit
// transaction. Its Commit and Rollback do nothing.
func (db *DB) Session() *Tx {
	return &Tx{db: db, conn: db.drv, dialect: db.dialect}
}

// Transaction runs fn in a transaction. The transaction is committed when fn
// returns nil and rolled back when fn fails or panics. Failed transactions
// are not retried.
func (db *DB) Transaction(ctx context.Context, fn func(*Tx) error) (err error) {
	tx, err := db.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return NewAggregateError(err, &RollbackError{Err: rerr})
		}
		return err
	}
	return tx.Commit()
}
