package types

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/syssam/tql/dialect"
)

// Blob is the unbounded binary type. FromDB returns []byte.
var Blob Type = binary{family: dialect.TypeBlob}

// Binary returns a binary type holding at most n bytes. FromDB returns []byte.
func Binary(n int) Type {
	return binary{family: dialect.TypeBinary, size: n}
}

type binary struct {
	family dialect.DataType
	size   int
}

func (t binary) SQLType(d *dialect.Dialect) string { return d.SizedTypeName(t.family, t.size) }
func (t binary) Family() dialect.DataType          { return t.family }
func (binary) Nullable() bool                      { return false }

func (binary) FromDB(v any) (any, error) {
	switch x := v.(type) {
	case []byte:
		// Drivers reuse the scan buffer.
		return append([]byte(nil), x...), nil
	case string:
		return []byte(x), nil
	}
	return nil, mismatch("[]byte", v)
}

func (t binary) ToDB(_ *dialect.Dialect, v any) (any, error) {
	return t.check(v)
}

func (t binary) Literal(d *dialect.Dialect, v any) (string, error) {
	b, err := t.check(v)
	if err != nil {
		return "", err
	}
	return d.BinaryLiteral(b), nil
}

func (t binary) DefaultLiteral(d *dialect.Dialect, v any) (string, error) {
	lit, err := t.Literal(d, v)
	if err != nil {
		return "", err
	}
	if t.family == dialect.TypeBlob && d.ExprTextDefaults {
		return "(" + lit + ")", nil
	}
	return lit, nil
}

func (t binary) Validate(v any) error {
	_, err := t.check(v)
	return err
}

func (t binary) check(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, mismatch("[]byte", v)
	}
	if t.size > 0 && len(b) > t.size {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrTooLong, len(b), t.size)
	}
	return b, nil
}

// UUID is the UUID type. It is stored natively where the dialect has a UUID
// type, as 16 raw bytes where the dialect binds UUIDs as binary, and as text
// otherwise. FromDB returns uuid.UUID.
var UUID Type = uuidType{}

type uuidType struct{}

func (uuidType) SQLType(d *dialect.Dialect) string { return d.TypeName(dialect.TypeUUID) }
func (uuidType) Family() dialect.DataType          { return dialect.TypeUUID }
func (uuidType) Nullable() bool                    { return false }

func (uuidType) FromDB(v any) (any, error) {
	return toUUID(v)
}

func (uuidType) ToDB(d *dialect.Dialect, v any) (any, error) {
	u, err := toUUID(v)
	if err != nil {
		return nil, err
	}
	if d.UUIDAsBinary {
		return u[:], nil
	}
	return u.String(), nil
}

func (uuidType) Literal(d *dialect.Dialect, v any) (string, error) {
	u, err := toUUID(v)
	if err != nil {
		return "", err
	}
	if d.UUIDAsBinary {
		return d.BinaryLiteral(u[:]), nil
	}
	return d.String(u.String()), nil
}

func (uuidType) Validate(v any) error {
	_, err := toUUID(v)
	return err
}

// toUUID accepts the value and every wire form drivers return for it:
// 16 raw bytes, or the textual form as string or bytes.
func toUUID(v any) (uuid.UUID, error) {
	switch x := v.(type) {
	case uuid.UUID:
		return x, nil
	case [16]byte:
		return uuid.UUID(x), nil
	case []byte:
		if len(x) == 16 {
			return uuid.FromBytes(x)
		}
		return uuid.ParseBytes(x)
	case string:
		return uuid.Parse(x)
	}
	return uuid.Nil, mismatch("uuid.UUID", v)
}
