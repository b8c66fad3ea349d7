// Package dialect describes the database backends tql renders SQL for.
//
// A dialect is a capability descriptor rather than a type hierarchy: a
// *Dialect value carries the feature flags of one backend (RETURNING,
// INTERSECT, row locks, upsert syntax, ...) together with the small rendering
// rules that differ between them (identifier quoting, bind markers, LIMIT
// tails, type names). Code that needs a feature checks the flag and reports an
// *UnsupportedError when it is absent.
//
// # Supported Dialects
//
//   - Postgres: PostgreSQL
//   - MySQL: MySQL 5.7 and later
//   - SQLite: SQLite 3.35 and later
//   - Canonical: a permissive ANSI descriptor used to compute expression identity
//
// Descriptors are registered by name and looked up with Get:
//
//	d, err := dialect.Get(dialect.Postgres)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(d.Quote("users.name")) // "users"."name"
//
// # Driver Interface
//
// The package also defines the session interfaces implemented by dialect/sql:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// Transactions returned by a Driver implement Tx, and Savepointer when the
// backend supports nested savepoints.
package dialect
