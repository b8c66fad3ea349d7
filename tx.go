package tql

import (
	"context"
	"time"

	"github.com/syssam/tql/dialect"
	sqldialect "github.com/syssam/tql/dialect/sql"
)

// Tx executes statements in one transaction. A Tx must be used by one
// goroutine at a time; its statements run in the order they are issued.
type Tx struct {
	db      *DB
	conn    dialect.ExecQuerier
	tx      dialect.Tx
	dialect *dialect.Dialect
	seq     int64
	done    bool
}

// Dialect returns the dialect descriptor statements are rendered for.
func (tx *Tx) Dialect() *dialect.Dialect { return tx.dialect }

// Statements returns the number of statements issued so far.
func (tx *Tx) Statements() int64 { return tx.seq }

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	if tx.tx == nil {
		return nil
	}
	tx.done = true
	return tx.tx.Commit()
}

// Rollback aborts the transaction.
func (tx *Tx) Rollback() error {
	if tx.done {
		return ErrTxDone
	}
	if tx.tx == nil {
		return nil
	}
	tx.done = true
	return tx.tx.Rollback()
}

func (tx *Tx) savepointer() (dialect.Savepointer, error) {
	if sp, ok := tx.tx.(dialect.Savepointer); ok {
		return sp, nil
	}
	return nil, tx.dialect.Unsupported("savepoints outside a transaction")
}

// Savepoint creates a savepoint.
func (tx *Tx) Savepoint(ctx context.Context, name string) error {
	sp, err := tx.savepointer()
	if err != nil {
		return err
	}
	return sp.Savepoint(ctx, name)
}

// RollbackTo rolls back to a savepoint, keeping the transaction open.
func (tx *Tx) RollbackTo(ctx context.Context, name string) error {
	sp, err := tx.savepointer()
	if err != nil {
		return err
	}
	return sp.RollbackTo(ctx, name)
}

// Release destroys a savepoint, keeping its effects.
func (tx *Tx) Release(ctx context.Context, name string) error {
	sp, err := tx.savepointer()
	if err != nil {
		return err
	}
	return sp.Release(ctx, name)
}

// Tables returns the names of the tables of the current schema.
func (tx *Tx) Tables(ctx context.Context) ([]string, error) {
	md, ok := tx.conn.(dialect.Metadata)
	if !ok {
		return nil, tx.dialect.Unsupported("table metadata")
	}
	return md.Tables(ctx)
}

// Exec executes a statement and returns the number of affected rows.
func (tx *Tx) Exec(ctx context.Context, stmt Statement) (int64, error) {
	res, err := tx.exec(ctx, stmt)
	if err != nil {
		return 0, err
	}
	return affected(res)
}

func (tx *Tx) exec(ctx context.Context, stmt Statement) (sqldialect.Result, error) {
	var res sqldialect.Result
	if err := tx.run(ctx, stmt, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func affected(res sqldialect.Result) (int64, error) {
	if res == nil {
		return 0, nil
	}
	return res.RowsAffected()
}

// Query executes a statement returning rows. The rows convert through the
// fields of the statement, or are read raw when it has none.
func (tx *Tx) Query(ctx context.Context, stmt Statement) (*Rows, error) {
	var cursor sqldialect.Rows
	if err := tx.run(ctx, stmt, &cursor); err != nil {
		return nil, err
	}
	var fields []Expression
	if rs, ok := stmt.(rowsStatement); ok {
		fields = rs.Fields()
	}
	return newRows(&cursor, fields, !tx.dialect.MultipleCursors)
}

// run is the single path of every statement to the driver. Rendering errors
// are returned before any I/O.
func (tx *Tx) run(ctx context.Context, stmt Statement, v any) error {
	if tx.done {
		return ErrTxDone
	}
	tx.seq++
	query, args, err := Render(stmt, tx.dialect, true)
	if err != nil {
		return err
	}
	o := tx.db.options()
	info := &StatementInfo{
		Kind:    stmt.Kind(),
		SQL:     query,
		Args:    args,
		Seq:     tx.seq,
		Targets: stmt.Targets(),
	}
	for _, i := range o.interceptors {
		i.BeforeExecute(ctx, info)
	}
	argv := argValues(args)
	start := time.Now()
	if _, ok := v.(*sqldialect.Rows); ok {
		err = tx.conn.Query(ctx, query, argv, v)
	} else {
		err = tx.conn.Exec(ctx, query, argv, v)
	}
	info.Duration = time.Since(start)
	for _, i := range o.interceptors {
		i.AfterExecute(ctx, info, err)
	}

	var inline string
	if o.debug {
		inline = tx.inline(stmt, query)
		o.logger.InfoContext(ctx, "tql: statement", "seq", info.Seq, "kind", info.Kind.String(),
			"sql", inline, "duration", info.Duration)
	}
	if o.slowThreshold > 0 && info.Duration > o.slowThreshold {
		o.logger.WarnContext(ctx, "long query", "duration", info.Duration, "sql", query, "args", argv)
	}
	if err != nil {
		return &ExecError{SQL: query, Args: args, Inline: inline, Err: err}
	}
	return nil
}

// inline renders the statement with its values expanded, falling back to
// the prepared text when a value has no literal form.
func (tx *Tx) inline(stmt Statement, prepared string) string {
	s, _, err := Render(stmt, tx.dialect, false)
	if err != nil {
		return prepared
	}
	return s
}
