package sql

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/tql/dialect"
)

func newMock(t *testing.T, name string, opts ...Option) (*Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return OpenDB(name, db, opts...), mock
}

func TestDriverDialect(t *testing.T) {
	tests := []struct {
		registered string
		want       string
	}{
		{dialect.Postgres, dialect.Postgres},
		{dialect.MySQL, dialect.MySQL},
		{dialect.SQLite, dialect.SQLite},
		// Instrumented drivers register under a suffixed name.
		{"sqlite-traced", dialect.SQLite},
		{"postgres_otel", dialect.Postgres},
		{"cockroach", "cockroach"},
	}
	for _, tt := range tests {
		t.Run(tt.registered, func(t *testing.T) {
			drv, _ := newMock(t, tt.registered)
			assert.Equal(t, tt.want, drv.Dialect())
			assert.NotNil(t, drv.DB())
		})
	}
}

func TestDriverExec(t *testing.T) {
	drv, mock := newMock(t, dialect.Postgres)
	ctx := context.Background()

	t.Run("Result", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO "cities" ("name") VALUES ($1)`).
			WithArgs("Munich").
			WillReturnResult(sqlmock.NewResult(3, 1))
		var res sql.Result
		err := drv.Exec(ctx, `INSERT INTO "cities" ("name") VALUES ($1)`, []any{"Munich"}, &res)
		require.NoError(t, err)
		n, err := res.RowsAffected()
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})

	t.Run("Discard", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM "cities"`).WillReturnResult(sqlmock.NewResult(0, 4))
		require.NoError(t, drv.Exec(ctx, `DELETE FROM "cities"`, []any{}, nil))
	})

	t.Run("Error", func(t *testing.T) {
		cause := errors.New("relation \"cities\" does not exist")
		mock.ExpectExec(`DELETE FROM "cities"`).WillReturnError(cause)
		err := drv.Exec(ctx, `DELETE FROM "cities"`, []any{}, nil)
		require.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "dialect/sql: exec:")
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverQuery(t *testing.T) {
	drv, mock := newMock(t, dialect.MySQL)
	ctx := context.Background()

	mock.ExpectQuery("SELECT `name`, `age` FROM `users` WHERE `id` = ?").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"name", "age"}).
			AddRow("alex", nil))
	var rows Rows
	require.NoError(t, drv.Query(ctx, "SELECT `name`, `age` FROM `users` WHERE `id` = ?", []any{7}, &rows))
	require.True(t, rows.Next())
	var (
		name string
		age  sql.NullInt64
	)
	require.NoError(t, rows.Scan(&name, &age))
	assert.Equal(t, "alex", name)
	assert.False(t, age.Valid)
	assert.False(t, rows.Next())
	require.NoError(t, rows.Close())

	cause := errors.New("bad connection")
	mock.ExpectQuery("SELECT 1").WillReturnError(cause)
	err := drv.Query(ctx, "SELECT 1", []any{}, &rows)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "dialect/sql: query:")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverTx(t *testing.T) {
	ctx := context.Background()

	t.Run("Commit", func(t *testing.T) {
		drv, mock := newMock(t, dialect.SQLite)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "users" SET "age" = ?`).WithArgs(30).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectQuery(`SELECT COUNT(*) FROM "users"`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectCommit()

		tx, err := drv.Tx(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Exec(ctx, `UPDATE "users" SET "age" = ?`, []any{30}, nil))
		var rows Rows
		require.NoError(t, tx.Query(ctx, `SELECT COUNT(*) FROM "users"`, []any{}, &rows))
		require.NoError(t, rows.Close())
		require.NoError(t, tx.Commit())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rollback", func(t *testing.T) {
		drv, mock := newMock(t, dialect.SQLite)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "users"`).WillReturnError(errors.New("locked"))
		mock.ExpectRollback()

		tx, err := drv.BeginTx(ctx, &TxOptions{ReadOnly: false})
		require.NoError(t, err)
		require.Error(t, tx.Exec(ctx, `DELETE FROM "users"`, []any{}, nil))
		require.NoError(t, tx.Rollback())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("CanceledContext", func(t *testing.T) {
		drv, mock := newMock(t, dialect.SQLite)
		mock.ExpectBegin().WillReturnError(context.Canceled)
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := drv.Tx(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestIsValidIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"valid_simple", "foo", true},
		{"valid_with_underscore", "foo_bar", true},
		{"valid_with_number", "foo123", true},
		{"valid_with_dot", "schema.table", true},
		{"valid_starting_underscore", "_private", true},
		{"invalid_empty", "", false},
		{"invalid_starting_number", "123foo", false},
		{"invalid_with_space", "foo bar", false},
		{"invalid_with_quote", "foo'bar", false},
		{"invalid_with_semicolon", "foo;DROP TABLE", false},
		{"invalid_with_dash", "foo-bar", false},
		{"invalid_too_long", string(make([]byte, 129)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isValidIdentifier(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// TestSavepoints tests nested savepoints inside a transaction.
func TestSavepoints(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)
	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT sp_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ROLLBACK TO SAVEPOINT sp_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("RELEASE SAVEPOINT sp_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	sp, ok := tx.(dialect.Savepointer)
	require.True(t, ok)
	require.NoError(t, sp.Savepoint(context.Background(), "sp_1"))
	require.NoError(t, sp.RollbackTo(context.Background(), "sp_1"))
	require.NoError(t, sp.Release(context.Background(), "sp_1"))

	err = sp.Savepoint(context.Background(), "x; DROP TABLE users")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid savepoint name")

	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestTables tests the metadata query of each dialect.
func TestTables(t *testing.T) {
	for _, name := range []string{dialect.Postgres, dialect.MySQL, dialect.SQLite} {
		t.Run(name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
			require.NoError(t, err)
			defer db.Close()

			d, err := dialect.Get(name)
			require.NoError(t, err)
			mock.ExpectQuery(d.TablesQuery).
				WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("users").AddRow("cities"))

			tables, err := OpenDB(name, db).Tables(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []string{"users", "cities"}, tables)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// TestStatementCache tests that a query is prepared once and reused,
// including inside transactions.
func TestStatementCache(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.MySQL, db, WithStatementCache())
	const query = "UPDATE users SET name = ? WHERE id = ?"
	prep := mock.ExpectPrepare(query)
	prep.ExpectExec().WithArgs("a", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("b", 2).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, drv.Exec(context.Background(), query, []any{"a", 1}, nil))
	require.NoError(t, drv.Exec(context.Background(), query, []any{"b", 2}, nil))
	assert.Equal(t, 1, drv.stmts.len())

	mock.ExpectBegin()
	prep.ExpectExec().WithArgs("c", 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Exec(context.Background(), query, []any{"c", 3}, nil))
	require.NoError(t, tx.Commit())
	assert.Equal(t, 1, drv.stmts.len())

	prep.WillBeClosed()
	mock.ExpectClose()
	require.NoError(t, drv.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestStatementCacheCanceledCaller tests that the statement is prepared and
// cached even when the caller that triggered the prepare is canceled.
func TestStatementCacheCanceledCaller(t *testing.T) {
	drv, mock := newMock(t, dialect.Postgres, WithStatementCache())
	const query = `DELETE FROM "users" WHERE "id" = $1`
	prep := mock.ExpectPrepare(query)
	prep.ExpectExec().WithArgs(2).WillReturnResult(sqlmock.NewResult(0, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := drv.Exec(ctx, query, []any{1}, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, drv.stmts.len())

	require.NoError(t, drv.Exec(context.Background(), query, []any{2}, nil))
	assert.Equal(t, 1, drv.stmts.len())
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestInvalidArguments tests the type checks on args and result targets.
func TestInvalidArguments(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.SQLite, db)
	err = drv.Exec(context.Background(), "DELETE FROM users", "nope", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expect []any for args")

	var n int
	err = drv.Exec(context.Background(), "DELETE FROM users", []any{}, &n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expect *sql.Result")

	err = drv.Query(context.Background(), "SELECT 1", []any{}, &n)
	require.Error(t, err)
}
