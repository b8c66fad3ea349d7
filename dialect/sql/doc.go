// Package sql implements the dialect.Driver session on top of database/sql.
//
// A Driver wraps a *sql.DB and the name of its dialect. Statements go through
// Exec and Query with their arguments passed as []any, and results are
// written into a *sql.Result or a *Rows:
//
//	drv, err := sql.Open(dialect.Postgres, dsn)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
//	var rows sql.Rows
//	if err := drv.Query(ctx, "SELECT id FROM users WHERE name = $1", []any{"a8m"}, &rows); err != nil {
//	    log.Fatal(err)
//	}
//	defer rows.Close()
//
// # Prepared Statements
//
// WithStatementCache keeps one prepared statement per query text. Concurrent
// first executions of the same text share a single prepare, and statements
// are rebound to transactions on use:
//
//	drv := sql.OpenDB(dialect.MySQL, db, sql.WithStatementCache())
//
// # Transactions
//
// Transactions implement dialect.Savepointer:
//
//	tx, _ := drv.Tx(ctx)
//	sp := tx.(dialect.Savepointer)
//	_ = sp.Savepoint(ctx, "before_import")
//	_ = sp.RollbackTo(ctx, "before_import")
//
// # Constraint Errors
//
// IsUniqueConstraintError, IsForeignKeyConstraintError, IsCheckConstraintError
// and IsNotNullConstraintError classify driver errors from lib/pq,
// go-sql-driver/mysql and modernc.org/sqlite, falling back to message
// matching for wrapped or unknown drivers.
package sql
