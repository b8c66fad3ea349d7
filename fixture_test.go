package tql_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/tql"
	"github.com/syssam/tql/dialect"
	"github.com/syssam/tql/dialect/sql"
)

var (
	cities   = tql.NewLongIDTable("cities")
	cityName = cities.VarChar("name", 50)

	users      = tql.NewLongIDTable("users")
	userName   = users.VarChar("name", 20)
	userAge    = tql.Nullable(users.Integer("age"))
	userCityID = tql.OptRefColumn(users.Table, cities.ID)

	tags     = tql.NewTable("tags")
	tagName  = tags.VarChar("name", 30).PrimaryKey()
	tagColor = tags.VarChar("color", 10).Default("grey")
)

// mustRender renders stmt in prepared mode and fails the test on error.
func mustRender(t *testing.T, stmt tql.Statement, d *dialect.Dialect) (string, []any) {
	t.Helper()
	query, args, err := tql.Render(stmt, d, true)
	require.NoError(t, err)
	vs := make([]any, len(args))
	for i, a := range args {
		vs[i] = a.DBValue()
	}
	return query, vs
}

// newMock opens a DB over sqlmock. Statements are matched verbatim.
func newMock(t *testing.T, name string, opts ...tql.Option) (*tql.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	db, err := tql.Open(sql.OpenDB(name, conn), opts...)
	require.NoError(t, err)
	return db, mock
}

// openSQLite opens an in-memory database holding the test tables.
func openSQLite(t *testing.T, opts ...tql.Option) *tql.DB {
	t.Helper()
	drv, err := sql.Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	// Every connection opens its own in-memory database.
	drv.DB().SetMaxOpenConns(1)
	db, err := tql.Open(drv, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := db.Session()
	for _, tbl := range []*tql.Table{cities.Table, users.Table, tags} {
		require.NoError(t, tql.CreateTable(tbl).Exec(context.Background(), s))
	}
	return db
}

// insertCity inserts a city and returns its generated id.
func insertCity(t *testing.T, tx *tql.Tx, name string) tql.EntityID[int64] {
	t.Helper()
	row, err := tql.Insert(cities.Table, cityName.Set(name)).Exec(context.Background(), tx)
	require.NoError(t, err)
	id, err := tql.Get(row, cities.ID)
	require.NoError(t, err)
	return id
}

// insertUser inserts a user living in city, if any.
func insertUser(t *testing.T, tx *tql.Tx, name string, city *tql.EntityID[int64]) tql.EntityID[int64] {
	t.Helper()
	row, err := tql.Insert(users.Table, userName.Set(name), userCityID.Set(city)).Exec(context.Background(), tx)
	require.NoError(t, err)
	id, err := tql.Get(row, users.ID)
	require.NoError(t, err)
	return id
}
