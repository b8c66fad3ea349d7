package dialect

import "fmt"

var genericTypes = map[DataType]string{
	TypeBool:        "BOOLEAN",
	TypeInt16:       "SMALLINT",
	TypeInt32:       "INT",
	TypeInt64:       "BIGINT",
	TypeFloat32:     "REAL",
	TypeFloat64:     "DOUBLE PRECISION",
	TypeText:        "TEXT",
	TypeBlob:        "BLOB",
	TypeUUID:        "UUID",
	TypeDate:        "DATE",
	TypeDateTime:    "TIMESTAMP",
	TypeTimestampTZ: "TIMESTAMP WITH TIME ZONE",
	TypeVarChar:     "VARCHAR(%d)",
	TypeChar:        "CHAR(%d)",
	TypeBinary:      "VARBINARY(%d)",
	TypeDecimal:     "DECIMAL(%d, %d)",
}

var mysqlTypes = map[DataType]string{
	TypeBool:        "BOOLEAN",
	TypeInt16:       "SMALLINT",
	TypeInt32:       "INT",
	TypeInt64:       "BIGINT",
	TypeFloat32:     "FLOAT",
	TypeFloat64:     "DOUBLE",
	TypeText:        "LONGTEXT",
	TypeBlob:        "LONGBLOB",
	TypeUUID:        "BINARY(16)",
	TypeDate:        "DATE",
	TypeDateTime:    "DATETIME(6)",
	TypeTimestampTZ: "DATETIME(6)",
	TypeBinary:      "VARBINARY(%d)",
}

// Generic is the canonical descriptor. It renders ANSI-flavoured SQL, accepts
// every feature, and is used to compute the identity of expressions
// independently of the database they run against.
var Generic = &Dialect{
	Name:                 Canonical,
	QuoteChar:            '"',
	Types:                genericTypes,
	Arrays:               true,
	Returning:            true,
	Intersect:            true,
	Except:               true,
	SetOperandSubqueries: true,
	MultipleCursors:      true,
	NativeAutoIncrement:  true,
	Sequences:            true,
	CheckConstraints:     true,
	ILike:                true,
	RowLocks:             true,
	UpdateLimit:          true,
	Upsert:               UpsertOnConflict,
	ReplaceInto:          true,
	LimitClause:          defaultLimit,
	Regexp: func(expr, pattern string, caseSensitive bool) string {
		if caseSensitive {
			return expr + " SIMILAR TO " + pattern
		}
		return "LOWER(" + expr + ") SIMILAR TO LOWER(" + pattern + ")"
	},
	Explain: func(query string, analyze bool) string {
		if analyze {
			return "EXPLAIN ANALYZE " + query
		}
		return "EXPLAIN " + query
	},
	AutoIncrementType: func(base DataType) string {
		return genericTypes[base] + " GENERATED BY DEFAULT AS IDENTITY"
	},
	NextVal: func(sequence string) string {
		return "NEXT VALUE FOR " + sequence
	},
	BinaryLiteral: hexLiteral,
	PipeConcat:    true,
	Random:        "RANDOM()",
	CharLength:    "CHAR_LENGTH",
}

// PostgresDialect describes PostgreSQL.
var PostgresDialect = &Dialect{
	Name:           Postgres,
	QuoteChar:      '"',
	NumberedParams: true,
	MaxParameters:  65535,
	Types: map[DataType]string{
		TypeBool:        "BOOLEAN",
		TypeInt16:       "SMALLINT",
		TypeInt32:       "INT",
		TypeInt64:       "BIGINT",
		TypeFloat32:     "REAL",
		TypeFloat64:     "DOUBLE PRECISION",
		TypeText:        "TEXT",
		TypeBlob:        "BYTEA",
		TypeUUID:        "UUID",
		TypeDate:        "DATE",
		TypeDateTime:    "TIMESTAMP",
		TypeTimestampTZ: "TIMESTAMP WITH TIME ZONE",
		TypeBinary:      "BYTEA",
	},
	FoldLower:            true,
	Arrays:               true,
	Returning:            true,
	Intersect:            true,
	Except:               true,
	SetOperandSubqueries: true,
	NativeAutoIncrement:  true,
	Sequences:            true,
	CheckConstraints:     true,
	ILike:                true,
	RowLocks:             true,
	Upsert:               UpsertOnConflict,
	LimitClause:          defaultLimit,
	Regexp: func(expr, pattern string, caseSensitive bool) string {
		if caseSensitive {
			return expr + " ~ " + pattern
		}
		return expr + " ~* " + pattern
	},
	Explain: func(query string, analyze bool) string {
		if analyze {
			return "EXPLAIN ANALYZE " + query
		}
		return "EXPLAIN " + query
	},
	AutoIncrementType: func(base DataType) string {
		if base == TypeInt64 {
			return "BIGSERIAL"
		}
		return "SERIAL"
	},
	NextVal: func(sequence string) string {
		return "nextval('" + sequence + "')"
	},
	BinaryLiteral: func(b []byte) string {
		return fmt.Sprintf(`'\x%x'::bytea`, b)
	},
	Random:      "RANDOM()",
	CharLength:  "CHAR_LENGTH",
	TablesQuery: "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema()",
}

// MySQLDialect describes MySQL 5.7 and later.
var MySQLDialect = &Dialect{
	Name:                 MySQL,
	QuoteChar:            '`',
	MaxParameters:        65535,
	Types:                mysqlTypes,
	BackslashEscapes:     true,
	UUIDAsBinary:         true,
	ExprTextDefaults:     true,
	SetOperandSubqueries: true,
	NativeAutoIncrement:  true,
	RowLocks:             true,
	UpdateLimit:          true,
	Upsert:               UpsertOnDuplicateKey,
	ReplaceInto:          true,
	InsertIgnore:         "INSERT IGNORE",
	LimitClause: func(limit int64, hasLimit bool, offset int64) string {
		if !hasLimit && offset > 0 {
			return fmt.Sprintf(" LIMIT 18446744073709551615 OFFSET %d", offset)
		}
		return defaultLimit(limit, hasLimit, offset)
	},
	Regexp: func(expr, pattern string, caseSensitive bool) string {
		if caseSensitive {
			return "REGEXP_LIKE(" + expr + ", " + pattern + ", 'c')"
		}
		return expr + " REGEXP " + pattern
	},
	Explain: func(query string, analyze bool) string {
		if analyze {
			return "EXPLAIN ANALYZE " + query
		}
		return "EXPLAIN " + query
	},
	AutoIncrementType: func(base DataType) string {
		return mysqlTypes[base] + " AUTO_INCREMENT"
	},
	BinaryLiteral: hexLiteral,
	Random:        "RAND()",
	CharLength:    "CHAR_LENGTH",
	TablesQuery:   "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE()",
}

// SQLiteDialect describes SQLite 3.35 and later.
var SQLiteDialect = &Dialect{
	Name:          SQLite,
	QuoteChar:     '`',
	MaxParameters: 32766,
	Types: map[DataType]string{
		TypeBool:        "BOOLEAN",
		TypeInt16:       "SMALLINT",
		TypeInt32:       "INT",
		TypeInt64:       "BIGINT",
		TypeFloat32:     "REAL",
		TypeFloat64:     "REAL",
		TypeText:        "TEXT",
		TypeBlob:        "BLOB",
		TypeUUID:        "CHAR(36)",
		TypeDate:        "DATE",
		TypeDateTime:    "DATETIME",
		TypeTimestampTZ: "DATETIME",
		TypeBinary:      "BLOB",
	},
	BoolAsInt:           true,
	Returning:           true,
	Intersect:           true,
	Except:              true,
	MultipleCursors:     true,
	NativeAutoIncrement: true,
	CheckConstraints:    true,
	Upsert:              UpsertOnConflict,
	ReplaceInto:         true,
	InsertIgnore:        "INSERT OR IGNORE",
	LimitClause: func(limit int64, hasLimit bool, offset int64) string {
		if !hasLimit && offset > 0 {
			return fmt.Sprintf(" LIMIT -1 OFFSET %d", offset)
		}
		return defaultLimit(limit, hasLimit, offset)
	},
	Explain: func(query string, _ bool) string {
		return "EXPLAIN QUERY PLAN " + query
	},
	// SQLite only accepts AUTOINCREMENT on INTEGER PRIMARY KEY columns.
	AutoIncrementType: func(DataType) string {
		return "INTEGER"
	},
	BinaryLiteral: hexLiteral,
	PipeConcat:    true,
	// random() returns a 64-bit integer; scale it into [0, 1).
	Random:      "(ABS(RANDOM()) / 9223372036854775808.0)",
	CharLength:  "LENGTH",
	TablesQuery: "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'",
}
