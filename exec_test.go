package tql_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/tql"
	"github.com/syssam/tql/dialect"
	"github.com/syssam/tql/types"
)

func TestValidationBeforeIO(t *testing.T) {
	db, mock := newMock(t, dialect.Postgres)
	ctx := context.Background()

	_, err := tql.Insert(users.Table, userName.Set(strings.Repeat("x", 21))).Exec(ctx, db.Session())
	require.Error(t, err)
	assert.True(t, tql.IsValidationError(err))
	assert.ErrorIs(t, err, types.ErrTooLong)
	assert.False(t, tql.IsExecError(err))

	_, err = users.Select(userName).Where(userName.EQ(strings.Repeat("y", 30))).All(ctx, db.Session())
	assert.True(t, tql.IsValidationError(err))

	// No driver call was expected.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryAll(t *testing.T) {
	db, mock := newMock(t, dialect.Postgres)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT "users"."id", "users"."name", "users"."age" FROM "users" WHERE "users"."name" LIKE $1`).
		WithArgs("b%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}).
			AddRow(1, "bob", 31).
			AddRow(2, "bea", nil))

	rows, err := users.Select(users.ID, userName, userAge).Where(tql.Like(userName, "b%")).All(ctx, db.Session())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	id, err := tql.Get(rows[0], users.ID)
	require.NoError(t, err)
	assert.Equal(t, tql.NewEntityID(users.Table, int64(1)), id)
	assert.Same(t, users.Table, id.Table)

	name, err := tql.Get(rows[1], userName)
	require.NoError(t, err)
	assert.Equal(t, "bea", name)

	age, err := tql.Get(rows[0], userAge)
	require.NoError(t, err)
	require.NotNil(t, age)
	assert.Equal(t, int32(31), *age)

	age, err = tql.Get(rows[1], userAge)
	require.NoError(t, err)
	assert.Nil(t, age)

	_, err = tql.Get(rows[0], cityName)
	assert.ErrorIs(t, err, tql.ErrNotProjected)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryFirstSingle(t *testing.T) {
	db, mock := newMock(t, dialect.MySQL)
	ctx := context.Background()
	q := users.Select(userName)
	const query = "SELECT `users`.`name` FROM `users`"

	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"name"}))
	_, err := q.First(ctx, db.Session())
	assert.ErrorIs(t, err, tql.ErrNotFound)

	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a").AddRow("b"))
	_, err = q.Copy().Single(ctx, db.Session())
	assert.ErrorIs(t, err, tql.ErrNotSingular)

	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a"))
	row, err := q.Copy().Single(ctx, db.Session())
	require.NoError(t, err)
	name, _ := tql.Get(row, userName)
	assert.Equal(t, "a", name)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryCount(t *testing.T) {
	db, mock := newMock(t, dialect.Postgres)
	ctx := context.Background()

	t.Run("Plain", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT(*) FROM "users" WHERE "users"."name" = $1`).
			WithArgs("bob").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

		n, err := users.Select(userName).Where(userName.EQ("bob")).OrderBy(userName, tql.Asc).Count(ctx, db.Session())
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("Grouped", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT(*) FROM (SELECT "users"."city_id" AS "users_city_id" FROM "users" GROUP BY "users"."city_id") subquery`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

		n, err := users.Select(userCityID).GroupBy(userCityID).Count(ctx, db.Session())
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("Union", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT(*) FROM (SELECT "users"."name" AS "users_name" FROM "users" UNION SELECT "tags"."name" AS "tags_name" FROM "tags") subquery`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

		n, err := tql.Union(users.Select(userName), tags.Select(tagName)).Count(ctx, db.Session())
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryEmpty(t *testing.T) {
	db, mock := newMock(t, dialect.Postgres)
	ctx := context.Background()

	empty, err := users.Select(userName).Limit(0).Empty(ctx, db.Session())
	require.NoError(t, err)
	assert.True(t, empty)

	mock.ExpectQuery(`SELECT "users"."name" FROM "users" LIMIT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a"))
	q := users.Select(userName)
	empty, err = q.Empty(ctx, db.Session())
	require.NoError(t, err)
	assert.False(t, empty)

	// The probe limit does not stick to the query.
	query, _ := mustRender(t, q, dialect.PostgresDialect)
	assert.Equal(t, `SELECT "users"."name" FROM "users"`, query)

	// A locking query keeps its full row set: no LIMIT is added.
	mock.ExpectQuery(`SELECT "users"."name" FROM "users" FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	empty, err = users.Select(userName).ForUpdate().Empty(ctx, db.Session())
	require.NoError(t, err)
	assert.True(t, empty)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockAfterExecution(t *testing.T) {
	db, mock := newMock(t, dialect.Postgres)
	mock.ExpectQuery(`SELECT "users"."name" FROM "users"`).WillReturnRows(sqlmock.NewRows([]string{"name"}))

	q := users.Select(userName)
	_, err := q.All(context.Background(), db.Session())
	require.NoError(t, err)

	q.ForUpdate()
	assert.True(t, tql.IsBuildError(q.Err()))
	assert.True(t, tql.IsBuildError(q.Copy().Err()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecErrorWrapping(t *testing.T) {
	db, mock := newMock(t, dialect.MySQL)
	driverErr := errors.New("lock wait timeout")

	mock.ExpectExec("DELETE FROM `users` WHERE `users`.`name` = ?").
		WithArgs("bob").
		WillReturnError(driverErr)

	_, err := tql.Delete(users.Table).Where(userName.EQ("bob")).Exec(context.Background(), db.Session())
	require.Error(t, err)
	var execErr *tql.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "DELETE FROM `users` WHERE `users`.`name` = ?", execErr.SQL)
	assert.ErrorIs(t, err, driverErr)
	assert.Empty(t, execErr.Inline)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateExec(t *testing.T) {
	db, mock := newMock(t, dialect.MySQL)
	mock.ExpectExec("UPDATE `users` SET `name` = ? WHERE `users`.`id` = ?").
		WithArgs("bob", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := tql.Update(users.Table, userName.Set("bob")).
		Where(users.ID.EQ(tql.NewEntityID(users.Table, int64(4)))).
		Exec(context.Background(), db.Session())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGeneratedKeys(t *testing.T) {
	ctx := context.Background()

	t.Run("LastInsertId", func(t *testing.T) {
		db, mock := newMock(t, dialect.MySQL)
		mock.ExpectExec("INSERT INTO `cities` (`name`) VALUES (?)").
			WithArgs("Munich").
			WillReturnResult(sqlmock.NewResult(42, 1))

		row, err := tql.Insert(cities.Table, cityName.Set("Munich")).Exec(ctx, db.Session())
		require.NoError(t, err)
		id, err := tql.Get(row, cities.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(42), id.Value)
		name, _ := tql.Get(row, cityName)
		assert.Equal(t, "Munich", name)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Returning", func(t *testing.T) {
		db, mock := newMock(t, dialect.Postgres)
		mock.ExpectQuery(`INSERT INTO "cities" ("name") VALUES ($1) RETURNING "id"`).
			WithArgs("Prague").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

		row, err := tql.Insert(cities.Table, cityName.Set("Prague")).Exec(ctx, db.Session())
		require.NoError(t, err)
		id, err := tql.Get(row, cities.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(7), id.Value)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Batch", func(t *testing.T) {
		db, mock := newMock(t, dialect.MySQL)
		mock.ExpectExec("INSERT INTO `cities` (`name`) VALUES (?), (?), (?)").
			WithArgs("a", "b", "c").
			WillReturnResult(sqlmock.NewResult(10, 3))

		b := tql.BatchInsert(cities.Table)
		for _, name := range []string{"a", "b", "c"} {
			b.Add(cityName.Set(name))
		}
		rows, err := b.Exec(ctx, db.Session())
		require.NoError(t, err)
		require.Len(t, rows, 3)
		for i, row := range rows {
			id, err := tql.Get(row, cities.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(10+i), id.Value)
		}
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBatchInconsistentFirstRow(t *testing.T) {
	db, mock := newMock(t, dialect.MySQL)

	b := tql.BatchInsert(users.Table).
		Add(userAge.Set(ptr[int32](3))).
		Add(userName.Set("bob"))
	_, err := b.Exec(context.Background(), db.Session())
	var inc *tql.BatchInconsistencyError
	require.ErrorAs(t, err, &inc)
	assert.Equal(t, 1, inc.Position)
	assert.ErrorIs(t, err, tql.ErrMissingValue)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchChunks(t *testing.T) {
	db, mock := newMock(t, dialect.MySQL)
	d := *dialect.MySQLDialect
	d.MaxParameters = 4
	db2, err := tql.Open(db.Driver(), tql.WithDialect(&d))
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO `tags` (`name`, `color`) VALUES (?, ?), (?, ?)").
		WithArgs("a", "grey", "b", "grey").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO `tags` (`name`, `color`) VALUES (?, ?)").
		WithArgs("c", "grey").
		WillReturnResult(sqlmock.NewResult(0, 1))

	b := tql.BatchInsert(tags)
	for _, name := range []string{"a", "b", "c"} {
		b.Add(tagName.Set(name))
	}
	rows, err := b.Exec(context.Background(), db2.Session())
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchShapeChange(t *testing.T) {
	db, mock := newMock(t, dialect.MySQL)

	mock.ExpectExec("INSERT INTO `users` (`name`) VALUES (?), (?)").
		WithArgs("a", "b").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectExec("INSERT INTO `users` (`name`, `age`) VALUES (?, ?)").
		WithArgs("c", 30).
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectExec("INSERT INTO `users` (`name`) VALUES (?)").
		WithArgs("d").
		WillReturnResult(sqlmock.NewResult(4, 1))

	rows, err := tql.BatchInsert(users.Table).
		Add(userName.Set("a")).
		Add(userName.Set("b")).
		Add(userName.Set("c"), userAge.Set(ptr[int32](30))).
		Add(userName.Set("d")).
		Exec(context.Background(), db.Session())
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for i, row := range rows {
		id, err := tql.Get(row, users.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), id.Value)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchInvalidRows(t *testing.T) {
	db, mock := newMock(t, dialect.MySQL)

	for i, name := range []string{"a", "c", "e"} {
		mock.ExpectExec("INSERT INTO `users` (`name`) VALUES (?)").
			WithArgs(name).
			WillReturnResult(sqlmock.NewResult(int64(i+1), 1))
	}

	tooLong := strings.Repeat("x", 21)
	rows, err := tql.BatchInsert(users.Table).
		Add(userName.Set("a")).
		Add(userName.Set(tooLong)).
		Add(userName.Set("c")).
		Add(userName.Set(tooLong)).
		Add(userName.Set("e")).
		Exec(context.Background(), db.Session())
	require.Error(t, err)
	assert.True(t, tql.IsBatchError(err))
	assert.Equal(t, []int{2, 4}, tql.FailedPositions(err))
	assert.True(t, tql.IsValidationError(err))

	require.Len(t, rows, 3)
	for i, want := range []string{"a", "c", "e"} {
		name, err := tql.Get(rows[i], userName)
		require.NoError(t, err)
		assert.Equal(t, want, name)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInterceptors(t *testing.T) {
	stats := tql.NewQueryStats(tql.WithStatsThreshold(time.Hour))
	var seen []*tql.StatementInfo
	db, mock := newMock(t, dialect.MySQL, tql.WithInterceptors(stats, tql.InterceptorFuncs{
		After: func(_ context.Context, info *tql.StatementInfo, _ error) {
			seen = append(seen, info)
		},
	}))
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT `users`.`name` FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a"))
	mock.ExpectExec("DELETE FROM `users`").
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := db.Transaction(ctx, func(tx *tql.Tx) error {
		if _, err := users.Select(userName).All(ctx, tx); err != nil {
			return err
		}
		_, err := tql.DeleteAll(users.Table).Exec(ctx, tx)
		return err
	})
	require.Error(t, err)
	assert.True(t, tql.IsExecError(err))

	s := stats.Stats()
	assert.Equal(t, int64(1), s.TotalQueries)
	assert.Equal(t, int64(1), s.TotalExecs)
	assert.Equal(t, int64(1), s.Errors)
	assert.Zero(t, s.SlowQueries)

	require.Len(t, seen, 2)
	assert.Equal(t, tql.KindSelect, seen[0].Kind)
	assert.Equal(t, int64(1), seen[0].Seq)
	assert.Equal(t, tql.KindDelete, seen[1].Kind)
	assert.Equal(t, int64(2), seen[1].Seq)
	assert.Equal(t, []*tql.Table{users.Table}, seen[1].Targets)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("Commit", func(t *testing.T) {
		db, mock := newMock(t, dialect.MySQL)
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM `tags`").WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		var deleted int64
		err := db.Transaction(ctx, func(tx *tql.Tx) (err error) {
			deleted, err = tql.DeleteAll(tags).Exec(ctx, tx)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RollbackOnError", func(t *testing.T) {
		db, mock := newMock(t, dialect.MySQL)
		mock.ExpectBegin()
		mock.ExpectRollback()

		fail := errors.New("abort")
		err := db.Transaction(ctx, func(*tql.Tx) error { return fail })
		assert.Equal(t, fail, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RollbackFails", func(t *testing.T) {
		db, mock := newMock(t, dialect.MySQL)
		mock.ExpectBegin()
		mock.ExpectRollback().WillReturnError(errors.New("conn closed"))

		fail := errors.New("abort")
		err := db.Transaction(ctx, func(*tql.Tx) error { return fail })
		assert.ErrorIs(t, err, fail)
		var rerr *tql.RollbackError
		assert.ErrorAs(t, err, &rerr)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RollbackOnPanic", func(t *testing.T) {
		db, mock := newMock(t, dialect.MySQL)
		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.PanicsWithValue(t, "boom", func() {
			_ = db.Transaction(ctx, func(*tql.Tx) error { panic("boom") })
		})
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Done", func(t *testing.T) {
		db, mock := newMock(t, dialect.MySQL)
		mock.ExpectBegin()
		mock.ExpectCommit()

		tx, err := db.Tx(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		assert.ErrorIs(t, tx.Commit(), tql.ErrTxDone)
		_, err = tql.DeleteAll(tags).Exec(ctx, tx)
		assert.ErrorIs(t, err, tql.ErrTxDone)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Savepoint", func(t *testing.T) {
		db, mock := newMock(t, dialect.Postgres)
		mock.ExpectBegin()
		mock.ExpectExec("SAVEPOINT before_tags").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("ROLLBACK TO SAVEPOINT before_tags").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := db.Transaction(ctx, func(tx *tql.Tx) error {
			if err := tx.Savepoint(ctx, "before_tags"); err != nil {
				return err
			}
			return tx.RollbackTo(ctx, "before_tags")
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())

		assert.True(t, tql.IsUnsupported(db.Session().Savepoint(ctx, "x")))
	})
}

func TestDebugLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	db, mock := newMock(t, dialect.MySQL, tql.WithLogger(logger), tql.WithDebug(true))

	mock.ExpectExec("DELETE FROM `users` WHERE `users`.`name` = ?").
		WithArgs("o'hara").
		WillReturnError(errors.New("boom"))

	_, err := tql.Delete(users.Table).Where(userName.EQ("o'hara")).Exec(context.Background(), db.Session())
	var execErr *tql.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "DELETE FROM `users` WHERE `users`.`name` = 'o''hara'", execErr.Inline)
	assert.Contains(t, buf.String(), "tql: statement")
	assert.Contains(t, buf.String(), "kind=DELETE")

	// Debug output stops once the option is turned off.
	buf.Reset()
	db.Apply(tql.WithDebug(false))
	mock.ExpectExec("DELETE FROM `users`").WillReturnResult(sqlmock.NewResult(0, 0))
	_, err = tql.DeleteAll(users.Table).Exec(context.Background(), db.Session())
	require.NoError(t, err)
	assert.Empty(t, buf.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTableExec(t *testing.T) {
	db, mock := newMock(t, dialect.Postgres)

	orders := tql.NewTable("orders")
	orders.Long("number").AutoIncrement("order_numbers")
	orders.VarChar("item", 10).Unique()

	mock.ExpectExec(`CREATE SEQUENCE IF NOT EXISTS "order_numbers"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "orders" ("number" BIGINT NOT NULL, "item" VARCHAR(10) NOT NULL)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE UNIQUE INDEX IF NOT EXISTS "orders_item_unique" ON "orders" ("item")`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, tql.CreateTable(orders).IfNotExists().Exec(context.Background(), db.Session()))
	require.NoError(t, mock.ExpectationsWereMet())
}
