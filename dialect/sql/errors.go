package sql

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	return IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err) ||
		IsNotNullConstraintError(err)
}

// sqlStateError is an interface for errors that provide SQLSTATE codes.
// Implemented by: pq.Error, pgx, and some MySQL drivers.
type sqlStateError interface {
	SQLState() string
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlBadNull                = 1048
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// violation describes how each driver reports one constraint category.
type violation struct {
	sqlState string
	mysql    []uint16
	sqlite   []int
	// Fallback to string matching for drivers that are wrapped or unknown.
	messages []string
}

var (
	uniqueViolation = violation{
		sqlState: pgUniqueViolation,
		mysql:    []uint16{mysqlDuplicateEntry},
		sqlite:   []int{sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY},
		messages: []string{"Error 1062", "violates unique constraint", "UNIQUE constraint failed"},
	}
	foreignKeyViolation = violation{
		sqlState: pgForeignKeyViolation,
		mysql:    []uint16{mysqlForeignKeyParent, mysqlForeignKeyChild},
		sqlite:   []int{sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY},
		messages: []string{"Error 1451", "Error 1452", "violates foreign key constraint", "FOREIGN KEY constraint failed"},
	}
	checkViolation = violation{
		sqlState: pgCheckViolation,
		mysql:    []uint16{mysqlCheckConstraintViolate},
		sqlite:   []int{sqlite3.SQLITE_CONSTRAINT_CHECK},
		messages: []string{"Error 3819", "violates check constraint", "CHECK constraint failed"},
	}
	notNullViolation = violation{
		sqlState: pgNotNullViolation,
		mysql:    []uint16{mysqlBadNull},
		sqlite:   []int{sqlite3.SQLITE_CONSTRAINT_NOTNULL},
		messages: []string{"Error 1048", "violates not-null constraint", "NOT NULL constraint failed"},
	}
)

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
// e.g. duplicate value in unique index.
func IsUniqueConstraintError(err error) bool {
	return uniqueViolation.match(err)
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
// e.g. parent row does not exist.
func IsForeignKeyConstraintError(err error) bool {
	return foreignKeyViolation.match(err)
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
// e.g. a value does not satisfy a check condition.
func IsCheckConstraintError(err error) bool {
	return checkViolation.match(err)
}

// IsNotNullConstraintError reports if the error resulted from storing NULL
// in a NOT NULL column.
func IsNotNullConstraintError(err error) bool {
	return notNullViolation.match(err)
}

func (v violation) match(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.SQLState() == v.sqlState
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		for _, n := range v.mysql {
			if myErr.Number == n {
				return true
			}
		}
		return false
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		for _, c := range v.sqlite {
			if liteErr.Code() == c {
				return true
			}
		}
		return false
	}
	// Check for SQLSTATE code (pgx and other drivers)
	if e, ok := asError[sqlStateError](err); ok && e.SQLState() == v.sqlState {
		return true
	}
	return containsAny(err.Error(), v.messages...)
}

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
