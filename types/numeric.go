package types

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/syssam/tql/dialect"
)

// Integer column types. FromDB returns int16, int32 and int64 respectively.
var (
	Int16 Type = integer{family: dialect.TypeInt16, min: math.MinInt16, max: math.MaxInt16}
	Int32 Type = integer{family: dialect.TypeInt32, min: math.MinInt32, max: math.MaxInt32}
	Int64 Type = integer{family: dialect.TypeInt64, min: math.MinInt64, max: math.MaxInt64}
)

type integer struct {
	family   dialect.DataType
	min, max int64
}

func (t integer) SQLType(d *dialect.Dialect) string { return d.TypeName(t.family) }
func (t integer) Family() dialect.DataType          { return t.family }
func (integer) Nullable() bool                      { return false }

func (t integer) FromDB(v any) (any, error) {
	n, err := toInt64(v)
	if err != nil {
		return nil, err
	}
	return t.narrow(n), nil
}

func (t integer) ToDB(_ *dialect.Dialect, v any) (any, error) {
	n, err := t.check(v)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (t integer) Literal(_ *dialect.Dialect, v any) (string, error) {
	n, err := t.check(v)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n, 10), nil
}

func (t integer) Validate(v any) error {
	_, err := t.check(v)
	return err
}

func (t integer) check(v any) (int64, error) {
	n, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	if n < t.min || n > t.max {
		return 0, fmt.Errorf("%w: %d does not fit in [%d, %d]", ErrOutOfRange, n, t.min, t.max)
	}
	return n, nil
}

func (t integer) narrow(n int64) any {
	switch t.family {
	case dialect.TypeInt16:
		return int16(n)
	case dialect.TypeInt32:
		return int32(n)
	default:
		return n
	}
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d", ErrOutOfRange, x)
		}
		return int64(x), nil
	case uint:
		return toInt64(uint64(x))
	case float64:
		if x != math.Trunc(x) {
			return 0, mismatch("integer", v)
		}
		return int64(x), nil
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	case string:
		return strconv.ParseInt(x, 10, 64)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return toInt64(rv.Uint())
	}
	return 0, mismatch("integer", v)
}

// Float column types. FromDB returns float32 and float64 respectively.
var (
	Float32 Type = float{family: dialect.TypeFloat32}
	Float64 Type = float{family: dialect.TypeFloat64}
)

type float struct {
	family dialect.DataType
}

func (t float) SQLType(d *dialect.Dialect) string { return d.TypeName(t.family) }
func (t float) Family() dialect.DataType          { return t.family }
func (float) Nullable() bool                      { return false }

func (t float) FromDB(v any) (any, error) {
	f, err := toFloat64(v)
	if err != nil {
		return nil, err
	}
	if t.family == dialect.TypeFloat32 {
		return float32(f), nil
	}
	return f, nil
}

func (float) ToDB(_ *dialect.Dialect, v any) (any, error) {
	return toFloat64(v)
}

func (float) Literal(_ *dialect.Dialect, v any) (string, error) {
	f, err := toFloat64(v)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}

func (float) Validate(v any) error {
	f, err := toFloat64(v)
	if err != nil {
		return err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: %v", ErrOutOfRange, f)
	}
	return nil
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		// Go through the shortest decimal form so 0.1f reads back as 0.1.
		return strconv.ParseFloat(strconv.FormatFloat(float64(x), 'g', -1, 32), 64)
	case []byte:
		return strconv.ParseFloat(string(x), 64)
	case string:
		return strconv.ParseFloat(x, 64)
	case decimal.Decimal:
		return x.InexactFloat64(), nil
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, mismatch("float", v)
	}
	return float64(n), nil
}

// Decimal returns a fixed-point type with the given precision and scale.
// Values are rounded half to even to the scale when read and written.
// FromDB returns decimal.Decimal.
func Decimal(precision, scale int) Type {
	return decimalType{precision: precision, scale: int32(scale)}
}

type decimalType struct {
	precision int
	scale     int32
}

func (t decimalType) SQLType(d *dialect.Dialect) string {
	return d.SizedTypeName(dialect.TypeDecimal, t.precision, int(t.scale))
}

func (decimalType) Nullable() bool { return false }

func (t decimalType) FromDB(v any) (any, error) {
	dec, err := toDecimal(v)
	if err != nil {
		return nil, err
	}
	return dec.RoundBank(t.scale), nil
}

func (t decimalType) ToDB(_ *dialect.Dialect, v any) (any, error) {
	dec, err := t.check(v)
	if err != nil {
		return nil, err
	}
	return dec.StringFixedBank(t.scale), nil
}

func (t decimalType) Literal(_ *dialect.Dialect, v any) (string, error) {
	dec, err := t.check(v)
	if err != nil {
		return "", err
	}
	return dec.StringFixedBank(t.scale), nil
}

func (t decimalType) Validate(v any) error {
	_, err := t.check(v)
	return err
}

func (t decimalType) check(v any) (decimal.Decimal, error) {
	dec, err := toDecimal(v)
	if err != nil {
		return decimal.Decimal{}, err
	}
	dec = dec.RoundBank(t.scale)
	if t.precision == 0 {
		return dec, nil
	}
	if whole := dec.Truncate(0).Abs().String(); whole != "0" && len(whole) > t.precision-int(t.scale) {
		return decimal.Decimal{}, fmt.Errorf("%w: %s exceeds DECIMAL(%d, %d)", ErrOutOfRange, dec, t.precision, t.scale)
	}
	return dec, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case *decimal.Decimal:
		return *x, nil
	case []byte:
		return decimal.NewFromString(string(x))
	case string:
		return decimal.NewFromString(x)
	case float64:
		return decimal.NewFromFloat(x), nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	}
	n, err := toInt64(v)
	if err != nil {
		return decimal.Decimal{}, mismatch("decimal", v)
	}
	return decimal.NewFromInt(n), nil
}

// Bool is the boolean column type. FromDB returns bool.
var Bool Type = boolean{}

type boolean struct{}

func (boolean) SQLType(d *dialect.Dialect) string { return d.TypeName(dialect.TypeBool) }
func (boolean) Family() dialect.DataType          { return dialect.TypeBool }
func (boolean) Nullable() bool                    { return false }

func (boolean) FromDB(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case []byte:
		return strconv.ParseBool(string(x))
	case string:
		return strconv.ParseBool(x)
	}
	n, err := toInt64(v)
	if err != nil {
		return nil, mismatch("bool", v)
	}
	return n != 0, nil
}

func (boolean) ToDB(_ *dialect.Dialect, v any) (any, error) {
	return toBool(v)
}

func (boolean) Literal(d *dialect.Dialect, v any) (string, error) {
	b, err := toBool(v)
	if err != nil {
		return "", err
	}
	return d.Bool(b), nil
}

func (boolean) Validate(v any) error {
	_, err := toBool(v)
	return err
}

func toBool(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Bool {
		return rv.Bool(), nil
	}
	return false, mismatch("bool", v)
}
