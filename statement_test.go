package tql_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/tql"
	"github.com/syssam/tql/dialect"
	"github.com/syssam/tql/types"
)

func TestInsert(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		query, args := mustRender(t, tql.Insert(tags, tagName.Set("go")), dialect.PostgresDialect)
		assert.Equal(t, `INSERT INTO "tags" ("name", "color") VALUES ($1, $2)`, query)
		assert.Equal(t, []any{"go", "grey"}, args)
	})

	t.Run("GeneratedKeyOmitted", func(t *testing.T) {
		query, args := mustRender(t, tql.Insert(users.Table, userName.Set("bob")), dialect.MySQLDialect)
		assert.Equal(t, "INSERT INTO `users` (`name`) VALUES (?)", query)
		assert.Equal(t, []any{"bob"}, args)
	})

	t.Run("NullableAssigned", func(t *testing.T) {
		query, args := mustRender(t, tql.Insert(users.Table, userName.Set("bob"), userAge.Set(nil)), dialect.PostgresDialect)
		assert.Equal(t, `INSERT INTO "users" ("name", "age") VALUES ($1, $2)`, query)
		assert.Equal(t, []any{"bob", nil}, args)
	})

	t.Run("MissingValue", func(t *testing.T) {
		s := tql.Insert(users.Table, userAge.Set(ptr[int32](3)))
		err := s.Err()
		require.Error(t, err)
		assert.True(t, tql.IsValidationError(err))
		assert.ErrorIs(t, err, tql.ErrMissingValue)
		assert.Contains(t, err.Error(), `"name"`)
	})

	t.Run("TooLong", func(t *testing.T) {
		_, _, err := tql.Render(tql.Insert(users.Table, userName.Set(strings.Repeat("x", 21))), dialect.PostgresDialect, true)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrTooLong)
	})

	t.Run("ForeignColumn", func(t *testing.T) {
		s := tql.Insert(users.Table, userName.Set("bob"), cityName.Set("Munich"))
		assert.True(t, tql.IsBuildError(s.Err()))
	})

	t.Run("AssignedTwice", func(t *testing.T) {
		s := tql.Insert(users.Table, userName.Set("bob"), userName.Set("bea"))
		assert.True(t, tql.IsBuildError(s.Err()))
	})

	t.Run("Ignore", func(t *testing.T) {
		s := tql.Insert(tags, tagName.Set("go"), tagColor.Set("blue")).Ignore()
		query, _ := mustRender(t, s, dialect.MySQLDialect)
		assert.Equal(t, "INSERT IGNORE INTO `tags` (`name`, `color`) VALUES (?, ?)", query)
		query, _ = mustRender(t, s, dialect.SQLiteDialect)
		assert.Equal(t, "INSERT OR IGNORE INTO `tags` (`name`, `color`) VALUES (?, ?)", query)
		query, _ = mustRender(t, s, dialect.PostgresDialect)
		assert.Equal(t, `INSERT INTO "tags" ("name", "color") VALUES ($1, $2) ON CONFLICT DO NOTHING`, query)
	})

	t.Run("Returning", func(t *testing.T) {
		s := tql.Insert(users.Table, userName.Set("bob")).Returning(userAge)
		query, _ := mustRender(t, s, dialect.PostgresDialect)
		assert.Equal(t, `INSERT INTO "users" ("name") VALUES ($1) RETURNING "age"`, query)

		_, _, err := tql.Render(s, dialect.MySQLDialect, true)
		assert.True(t, tql.IsUnsupported(err))
	})

	t.Run("Sequence", func(t *testing.T) {
		orders := tql.NewTable("orders")
		orders.Long("number").AutoIncrement("order_numbers")
		item := orders.VarChar("item", 10)

		query, _ := mustRender(t, tql.Insert(orders, item.Set("pen")), dialect.PostgresDialect)
		assert.Equal(t, `INSERT INTO "orders" ("item", "number") VALUES ($1, nextval('order_numbers'))`, query)
		query, _ = mustRender(t, tql.Insert(orders, item.Set("pen")), dialect.MySQLDialect)
		assert.Equal(t, "INSERT INTO `orders` (`item`) VALUES (?)", query)
	})

	t.Run("OnlyDefaults", func(t *testing.T) {
		counters := tql.NewLongIDTable("counters")
		query, _ := mustRender(t, tql.Insert(counters.Table), dialect.PostgresDialect)
		assert.Equal(t, `INSERT INTO "counters" DEFAULT VALUES`, query)
		query, _ = mustRender(t, tql.Insert(counters.Table), dialect.MySQLDialect)
		assert.Equal(t, "INSERT INTO `counters` () VALUES ()", query)
	})
}

func TestInsertSelect(t *testing.T) {
	s := tql.InsertSelect(tags, users.Select(userName, tql.Value("red")))
	query, args := mustRender(t, s, dialect.PostgresDialect)
	assert.Equal(t, `INSERT INTO "tags" ("name", "color") SELECT "users"."name", $1 FROM "users"`, query)
	assert.Equal(t, []any{"red"}, args)

	s = tql.InsertSelect(tags, users.Select(userName), tagName, tagColor)
	_, _, err := tql.Render(s, dialect.PostgresDialect, true)
	assert.True(t, tql.IsBuildError(err))
}

func TestReplace(t *testing.T) {
	s := tql.Replace(tags, tagName.Set("go"), tagColor.Set("blue"))
	query, args := mustRender(t, s, dialect.MySQLDialect)
	assert.Equal(t, "REPLACE INTO `tags` (`name`, `color`) VALUES (?, ?)", query)
	assert.Equal(t, []any{"go", "blue"}, args)

	_, _, err := tql.Render(s, dialect.PostgresDialect, true)
	assert.True(t, tql.IsUnsupported(err))

	assert.True(t, tql.IsBuildError(tql.Replace(tags, tagName.Set("go")).Ignore().Err()))
}

func TestUpsert(t *testing.T) {
	t.Run("PrimaryKey", func(t *testing.T) {
		s := tql.Upsert(tags, nil, tagName.Set("go"), tagColor.Set("blue"))
		query, args := mustRender(t, s, dialect.PostgresDialect)
		assert.Equal(t, `INSERT INTO "tags" ("name", "color") VALUES ($1, $2) ON CONFLICT ("name") DO UPDATE SET "color" = EXCLUDED."color"`, query)
		assert.Equal(t, []any{"go", "blue"}, args)

		query, _ = mustRender(t, s, dialect.MySQLDialect)
		assert.Equal(t, "INSERT INTO `tags` (`name`, `color`) VALUES (?, ?) ON DUPLICATE KEY UPDATE `color` = VALUES(`color`)", query)
	})

	t.Run("OnUpdate", func(t *testing.T) {
		s := tql.Upsert(tags, nil, tagName.Set("go"), tagColor.Set("blue")).
			OnUpdate(tagColor.Set("red"))
		query, args := mustRender(t, s, dialect.SQLiteDialect)
		assert.Equal(t, "INSERT INTO `tags` (`name`, `color`) VALUES (?, ?) ON CONFLICT (`name`) DO UPDATE SET `color` = ?", query)
		assert.Equal(t, []any{"go", "blue", "red"}, args)
	})

	t.Run("OnlyKeys", func(t *testing.T) {
		keys := tql.NewTable("keys")
		k := keys.VarChar("k", 5).PrimaryKey()
		s := tql.Upsert(keys, nil, k.Set("a"))
		query, _ := mustRender(t, s, dialect.PostgresDialect)
		assert.Equal(t, `INSERT INTO "keys" ("k") VALUES ($1) ON CONFLICT ("k") DO NOTHING`, query)
		query, _ = mustRender(t, s, dialect.MySQLDialect)
		assert.Equal(t, "INSERT INTO `keys` (`k`) VALUES (?) ON DUPLICATE KEY UPDATE `k` = `k`", query)
	})

	t.Run("NoKeys", func(t *testing.T) {
		logs := tql.NewTable("logs")
		line := logs.Text("line")
		s := tql.Upsert(logs, nil, line.Set("x"))
		assert.True(t, tql.IsBuildError(s.Err()))
	})
}

func TestUpdate(t *testing.T) {
	s := tql.Update(users.Table, userAge.Set(ptr[int32](30))).Where(userName.EQ("bob"))
	query, args := mustRender(t, s, dialect.PostgresDialect)
	assert.Equal(t, `UPDATE "users" SET "age" = $1 WHERE "users"."name" = $2`, query)
	assert.Equal(t, []any{int64(30), "bob"}, args)

	s = tql.Update(users.Table, userName.Set("x")).Limit(1)
	query, _ = mustRender(t, s, dialect.MySQLDialect)
	assert.Equal(t, "UPDATE `users` SET `name` = ? LIMIT 1", query)
	_, _, err := tql.Render(s, dialect.PostgresDialect, true)
	assert.True(t, tql.IsUnsupported(err))

	assert.True(t, tql.IsBuildError(tql.Update(users.Table).Err()))
	assert.True(t, tql.IsBuildError(tql.Update(users.Table, cityName.Set("x")).Err()))
}

func TestDelete(t *testing.T) {
	query, args := mustRender(t, tql.Delete(users.Table).Where(userName.EQ("bob")), dialect.PostgresDialect)
	assert.Equal(t, `DELETE FROM "users" WHERE "users"."name" = $1`, query)
	assert.Equal(t, []any{"bob"}, args)

	_, _, err := tql.Render(tql.Delete(users.Table), dialect.PostgresDialect, true)
	assert.True(t, tql.IsBuildError(err))

	query, _ = mustRender(t, tql.DeleteAll(users.Table), dialect.PostgresDialect)
	assert.Equal(t, `DELETE FROM "users"`, query)
}

func TestCreateTable(t *testing.T) {
	t.Run("Postgres", func(t *testing.T) {
		query, _ := mustRender(t, tql.CreateTable(users.Table), dialect.PostgresDialect)
		assert.Equal(t, `CREATE TABLE "users" ("id" BIGSERIAL NOT NULL, "name" VARCHAR(20) NOT NULL, "age" INT, "city_id" BIGINT, `+
			`PRIMARY KEY ("id"), CONSTRAINT "fk_users_city_id__cities_id" FOREIGN KEY ("city_id") REFERENCES "cities" ("id"))`, query)
	})

	t.Run("SQLite", func(t *testing.T) {
		query, _ := mustRender(t, tql.CreateTable(cities.Table).IfNotExists(), dialect.SQLiteDialect)
		assert.Equal(t, "CREATE TABLE IF NOT EXISTS `cities` (`id` INTEGER PRIMARY KEY AUTOINCREMENT, `name` VARCHAR(50) NOT NULL)", query)
	})

	t.Run("Default", func(t *testing.T) {
		query, _ := mustRender(t, tql.CreateTable(tags), dialect.MySQLDialect)
		assert.Equal(t, "CREATE TABLE `tags` (`name` VARCHAR(30) NOT NULL, `color` VARCHAR(10) NOT NULL DEFAULT 'grey', PRIMARY KEY (`name`))", query)
	})

	t.Run("Check", func(t *testing.T) {
		products := tql.NewTable("products")
		price := products.Integer("price")
		products.Check("positive_price", price.GT(0))

		query, _ := mustRender(t, tql.CreateTable(products), dialect.PostgresDialect)
		assert.Equal(t, `CREATE TABLE "products" ("price" INT NOT NULL, CONSTRAINT "positive_price" CHECK ("price" > 0))`, query)

		_, _, err := tql.Render(tql.CreateTable(products), dialect.MySQLDialect, true)
		assert.True(t, tql.IsUnsupported(err))
	})

	t.Run("ReferenceOptions", func(t *testing.T) {
		pets := tql.NewLongIDTable("pets")
		tql.RefColumn(pets.Table, users.ID, tql.OnDelete(tql.Cascade), tql.ConstraintName("pet_owner"))

		query, _ := mustRender(t, tql.CreateTable(pets.Table), dialect.PostgresDialect)
		assert.Equal(t, `CREATE TABLE "pets" ("id" BIGSERIAL NOT NULL, "user_id" BIGINT NOT NULL, PRIMARY KEY ("id"), `+
			`CONSTRAINT "pet_owner" FOREIGN KEY ("user_id") REFERENCES "users" ("id") ON DELETE CASCADE)`, query)
	})

	t.Run("DuplicateColumn", func(t *testing.T) {
		dup := tql.NewTable("dup")
		dup.Integer("x")
		assert.PanicsWithError(t, `tql: column: duplicate column "x" in table "dup"`, func() { dup.Long("x") })
	})
}

func TestDropTable(t *testing.T) {
	query, _ := mustRender(t, tql.DropTable(users.Table).IfExists(), dialect.PostgresDialect)
	assert.Equal(t, `DROP TABLE IF EXISTS "users"`, query)
}

func TestExplain(t *testing.T) {
	q := users.Select(userName).Where(userName.EQ("bob"))

	query, args := mustRender(t, tql.Explain(q), dialect.PostgresDialect)
	assert.Equal(t, `EXPLAIN SELECT "users"."name" FROM "users" WHERE "users"."name" = $1`, query)
	assert.Equal(t, []any{"bob"}, args)

	query, _ = mustRender(t, tql.Explain(q).Analyze(), dialect.MySQLDialect)
	assert.Equal(t, "EXPLAIN ANALYZE SELECT `users`.`name` FROM `users` WHERE `users`.`name` = ?", query)

	query, _ = mustRender(t, tql.Explain(q), dialect.SQLiteDialect)
	assert.Equal(t, "EXPLAIN QUERY PLAN SELECT `users`.`name` FROM `users` WHERE `users`.`name` = ?", query)
}

type span struct {
	From, To int32
}

func TestComposite(t *testing.T) {
	ranges := tql.NewTable("ranges")
	from := ranges.Integer("from_n")
	to := ranges.Integer("to_n")
	spans := tql.NewComposite(
		func(s span) []any { return []any{s.From, s.To} },
		func(vs []any) (span, error) {
			return span{From: vs[0].(int32), To: vs[1].(int32)}, nil
		},
		from, to,
	)

	query, args := mustRender(t, tql.Insert(ranges, spans.Set(span{1, 5})...), dialect.PostgresDialect)
	assert.Equal(t, `INSERT INTO "ranges" ("from_n", "to_n") VALUES ($1, $2)`, query)
	assert.Equal(t, []any{int64(1), int64(5)}, args)

	q := ranges.Select(spans).Where(spans.EQ(span{1, 5}))
	query, _ = mustRender(t, q, dialect.PostgresDialect)
	assert.Equal(t, `SELECT "ranges"."from_n", "ranges"."to_n" FROM "ranges" WHERE "ranges"."from_n" = $1 AND "ranges"."to_n" = $2`, query)

	row := tql.NewResultRow(from, to)
	row.Set(from, int32(2))
	row.Set(to, int32(4))
	got, err := tql.GetComposite(row, spans)
	require.NoError(t, err)
	assert.Equal(t, span{2, 4}, got)

	nullable := tql.NullableComposite(spans)
	empty := tql.NewResultRow(from, to)
	empty.Set(from, nil)
	empty.Set(to, nil)
	v, err := tql.GetComposite(empty, nullable)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = tql.GetComposite(empty, spans)
	assert.ErrorIs(t, err, types.ErrNull)
}
