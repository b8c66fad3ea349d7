package types

import (
	"strings"
	"time"

	"github.com/syssam/tql/dialect"
)

// Temporal column types. FromDB returns time.Time.
var (
	// Date holds a calendar date. Values are truncated to midnight UTC.
	Date Type = temporal{family: dialect.TypeDate}
	// DateTime holds a timestamp without time zone, stored in UTC.
	DateTime Type = temporal{family: dialect.TypeDateTime}
	// Timestamp holds a timestamp with time zone where the dialect has one.
	Timestamp Type = temporal{family: dialect.TypeTimestampTZ}
)

// Layouts accepted when a driver returns temporal values as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

type temporal struct {
	family dialect.DataType
}

func (t temporal) SQLType(d *dialect.Dialect) string { return d.TypeName(t.family) }
func (t temporal) Family() dialect.DataType          { return t.family }
func (temporal) Nullable() bool                      { return false }

func (t temporal) FromDB(v any) (any, error) {
	var (
		tm  time.Time
		err error
	)
	switch x := v.(type) {
	case time.Time:
		tm = x
	case []byte:
		tm, err = parseTime(string(x))
	case string:
		tm, err = parseTime(x)
	default:
		return nil, mismatch("time.Time", v)
	}
	if err != nil {
		return nil, err
	}
	return t.normalize(tm), nil
}

func (t temporal) ToDB(_ *dialect.Dialect, v any) (any, error) {
	tm, ok := v.(time.Time)
	if !ok {
		return nil, mismatch("time.Time", v)
	}
	return t.normalize(tm), nil
}

func (t temporal) Literal(d *dialect.Dialect, v any) (string, error) {
	tm, ok := v.(time.Time)
	if !ok {
		return "", mismatch("time.Time", v)
	}
	tm = t.normalize(tm)
	if t.family == dialect.TypeDate {
		return d.Date(tm), nil
	}
	return d.Time(tm), nil
}

func (temporal) Validate(v any) error {
	if _, ok := v.(time.Time); !ok {
		return mismatch("time.Time", v)
	}
	return nil
}

func (t temporal) normalize(tm time.Time) time.Time {
	switch t.family {
	case dialect.TypeDate:
		y, m, d := tm.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case dialect.TypeDateTime:
		return tm.UTC()
	default:
		return tm
	}
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var err error
	for _, layout := range timeLayouts {
		var tm time.Time
		if tm, err = time.Parse(layout, s); err == nil {
			return tm, nil
		}
	}
	return time.Time{}, err
}
