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

func ptr[T any](v T) *T { return &v }

func render(t *testing.T, e tql.Expression, d *dialect.Dialect) (string, []any) {
	t.Helper()
	b := tql.NewBuilder(d, true)
	e.Render(b)
	require.NoError(t, b.Err())
	vs := make([]any, len(b.Args()))
	for i, a := range b.Args() {
		vs[i] = a.DBValue()
	}
	return b.String(), vs
}

func adults() tql.Op {
	return tql.And(
		tql.Like(userName, "b%"),
		tql.Or(userAge.GT(ptr[int32](18)), userCityID.IsNull()),
		userName.In("bob", "bea"),
	)
}

func TestRenderDeterminism(t *testing.T) {
	a, b := adults(), adults()

	sqlA, argsA := render(t, a, dialect.MySQLDialect)
	sqlB, argsB := render(t, b, dialect.MySQLDialect)
	assert.Equal(t, sqlA, sqlB)
	assert.Equal(t, argsA, argsB)
	assert.Equal(t, tql.Key(a), tql.Key(b))
	assert.True(t, tql.Equal(a, b))
	assert.False(t, tql.Equal(a, tql.Like(userName, "b%")))
}

func TestPredicateRender(t *testing.T) {
	query, args := render(t, adults(), dialect.MySQLDialect)
	assert.Equal(t, "`users`.`name` LIKE ? AND (`users`.`age` > ? OR `users`.`city_id` IS NULL) AND `users`.`name` IN (?, ?)", query)
	assert.Equal(t, []any{"b%", int64(18), "bob", "bea"}, args)
	assert.Equal(t, strings.Count(query, "?"), len(args))

	query, args = render(t, adults(), dialect.PostgresDialect)
	assert.Equal(t, `"users"."name" LIKE $1 AND ("users"."age" > $2 OR "users"."city_id" IS NULL) AND "users"."name" IN ($3, $4)`, query)
	assert.Len(t, args, 4)
}

func TestKey(t *testing.T) {
	assert.Equal(t, `"users"."name" = 'bob'`, tql.Key(userName.EQ("bob")))
	assert.Equal(t, `"users"."age" BETWEEN 18 AND 30`, tql.Key(userAge.Between(ptr[int32](18), ptr[int32](30))))
	assert.Equal(t, `"users"."age" IS NULL`, tql.Key(userAge.EQ(nil)))
	assert.Equal(t, "", tql.Key(nil))

	// The key is computed once per node.
	op := userName.NEQ("x")
	assert.Equal(t, tql.Key(op), tql.Key(op))
}

func TestParameterOrder(t *testing.T) {
	op := tql.Or(
		userAge.Between(ptr[int32](1), ptr[int32](2)),
		tql.Not(userName.In("a", "b", "c")),
		tql.RawOp("LENGTH(?) > ?", "abc", 2),
	)
	query, args := render(t, op, dialect.SQLiteDialect)
	assert.Equal(t, strings.Count(query, "?"), len(args))
	assert.Equal(t, []any{int64(1), int64(2), "a", "b", "c", "abc", int64(2)}, args)
}

func TestEmptyIn(t *testing.T) {
	query, args := render(t, userName.In(), dialect.PostgresDialect)
	assert.Equal(t, "FALSE", query)
	assert.Empty(t, args)

	query, _ = render(t, userName.NotIn(), dialect.PostgresDialect)
	assert.Equal(t, "TRUE", query)
}

func TestAndOrSkipNil(t *testing.T) {
	assert.Nil(t, tql.And())
	assert.Nil(t, tql.Or(nil, nil))
	op := userName.EQ("x")
	assert.Equal(t, tql.Key(op), tql.Key(tql.And(nil, op)))
}

func TestValidationOnBind(t *testing.T) {
	b := tql.NewBuilder(dialect.PostgresDialect, true)
	userName.EQ(strings.Repeat("x", 21)).Render(b)
	err := b.Err()
	require.Error(t, err)
	assert.True(t, tql.IsValidationError(err))
	assert.ErrorIs(t, err, types.ErrTooLong)
	assert.Empty(t, b.Args())
}

func TestFunctions(t *testing.T) {
	tests := []struct {
		name string
		expr tql.Expression
		want string
	}{
		{"Count", tql.Count(userName), `COUNT("users"."name")`},
		{"CountDistinct", tql.CountDistinct(userName), `COUNT(DISTINCT "users"."name")`},
		{"CountAll", tql.CountAll(), `COUNT(*)`},
		{"Lower", tql.Lower(userName), `LOWER("users"."name")`},
		{"Coalesce", tql.Coalesce[*int32](userAge, tql.Value(ptr[int32](0))), `COALESCE("users"."age", 0)`},
		{"Case", tql.Case[string](types.Text).
			When(userAge.GTE(ptr[int32](18)), tql.Value("adult")).
			Else(tql.Value("minor")), `CASE WHEN "users"."age" >= 18 THEN 'adult' ELSE 'minor' END`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tql.Key(tt.expr))
		})
	}
}

func TestAliasExpression(t *testing.T) {
	n := tql.Alias(tql.Count(users.ID), "n")
	q := users.Select(userName, n).GroupBy(userName).OrderBy(n, tql.Desc)
	query, _ := mustRender(t, q, dialect.PostgresDialect)
	assert.Equal(t, `SELECT "users"."name", COUNT("users"."id") AS "n" FROM "users" GROUP BY "users"."name" ORDER BY "n" DESC`, query)
}

func TestRaw(t *testing.T) {
	b := tql.NewBuilder(dialect.MySQLDialect, true)
	tql.Raw[int64]("? + ?", types.Int64, 1).Render(b)
	assert.True(t, tql.IsBuildError(b.Err()))
}
