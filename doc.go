// Package tql builds typed SQL statements and executes them through a
// dialect.Driver.
//
// Tables and columns are declared once, as package variables:
//
//	var (
//		Cities   = tql.NewLongIDTable("cities")
//		CityName = Cities.VarChar("name", 50)
//
//		Users      = tql.NewLongIDTable("users")
//		UserName   = Users.VarChar("name", 50)
//		UserCityID = tql.OptRefColumn(Users.Table, Cities.ID)
//	)
//
// Expressions are values. Two expressions are the same when they render the
// same SQL, see Key. Queries are assembled from a column set and a
// projection, and executed in a transaction:
//
//	q := Users.InnerJoin(Cities.Table).
//		Select(UserName, CityName).
//		Where(CityName.In("Munich", "Prague")).
//		OrderBy(UserName, tql.Asc)
//
//	err := db.Transaction(ctx, func(tx *tql.Tx) error {
//		rows, err := q.All(ctx, tx)
//		if err != nil {
//			return err
//		}
//		for _, r := range rows {
//			name, _ := tql.Get(r, UserName)
//			fmt.Println(name)
//		}
//		return nil
//	})
//
// # Rendering
//
// Statements render against a dialect.Dialect descriptor. Render returns the
// SQL and its arguments without I/O:
//
//	sql, args, err := tql.Render(q, dialect.PostgresDialect, true)
//
// Values are validated against their column type while rendering, so an
// invalid value never reaches the driver.
//
// # Batches
//
// BatchInsert, BatchUpsert and BatchReplace write many rows with multi-row
// statements. A row inconsistent with the rows before it is retried alone,
// and the rows that still fail are reported in a *BatchError returned along
// with the rows written:
//
//	b := tql.BatchInsert(Cities.Table)
//	for _, name := range names {
//		b.Add(CityName.Set(name))
//	}
//	rows, err := b.Exec(ctx, tx)
//
// # Observing Execution
//
// Every statement goes through Tx.Exec or Tx.Query. WithDebug logs the
// statements with their arguments inline, WithSlowThreshold warns about
// long ones, and Interceptors such as QueryStats observe every execution.
package tql
