package tql

import (
	"fmt"
	"iter"

	sqldialect "github.com/syssam/tql/dialect/sql"
)

// Rows is a lazy sequence of result rows. HasNext fetches the next driver
// row once and caches the answer until Next consumes it; the cursor is
// closed when the rows are exhausted.
//
// Rows of sessions that cannot keep several cursors open are read eagerly
// when the statement executes.
type Rows struct {
	cursor  *sqldialect.Rows
	exprs   []Expression
	index   map[string]int
	pending *ResultRow
	fetched bool
	done    bool
	err     error

	buffered []*ResultRow
	eager    bool
}

func newRows(cursor *sqldialect.Rows, exprs []Expression, eager bool) (*Rows, error) {
	r := &Rows{cursor: cursor, exprs: exprs, index: rowIndex(exprs)}
	if err := r.bindColumns(); err != nil {
		_ = cursor.Close()
		return nil, err
	}
	if !eager {
		return r, nil
	}
	for r.HasNext() {
		r.buffered = append(r.buffered, r.Next())
	}
	if r.err != nil {
		return nil, r.err
	}
	r.eager = true
	return r, nil
}

// bindColumns checks the driver columns against the expressions. Statements
// returning columns not known in advance read them as raw values.
func (r *Rows) bindColumns() error {
	cols, err := r.cursor.Columns()
	if err != nil {
		return err
	}
	switch {
	case len(r.exprs) == 0:
		for _, c := range cols {
			r.exprs = append(r.exprs, Raw[any](c, nil))
		}
		r.index = rowIndex(r.exprs)
	case len(cols) != len(r.exprs):
		return fmt.Errorf("tql: statement returned %d columns for %d fields", len(cols), len(r.exprs))
	}
	return nil
}

// HasNext reports whether another row is available.
func (r *Rows) HasNext() bool {
	if r.eager {
		return len(r.buffered) > 0
	}
	if r.fetched {
		return r.pending != nil
	}
	if r.done {
		return false
	}
	r.fetched = true
	if !r.cursor.Next() {
		r.finish(r.cursor.Err())
		return false
	}
	row, err := r.scan()
	if err != nil {
		r.finish(err)
		return false
	}
	r.pending = row
	return true
}

// Next returns the next row, or nil when there is none.
func (r *Rows) Next() *ResultRow {
	if r.eager {
		if len(r.buffered) == 0 {
			return nil
		}
		row := r.buffered[0]
		r.buffered = r.buffered[1:]
		return row
	}
	if !r.HasNext() {
		return nil
	}
	row := r.pending
	r.pending, r.fetched = nil, false
	return row
}

func (r *Rows) scan() (*ResultRow, error) {
	raw := make([]any, len(r.exprs))
	dest := make([]any, len(raw))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := r.cursor.Scan(dest...); err != nil {
		return nil, err
	}
	values := make([]any, len(raw))
	for i, e := range r.exprs {
		v, err := fromDB(e, raw[i])
		if err != nil {
			return nil, fmt.Errorf("tql: read %s: %w", Key(e), err)
		}
		values[i] = v
	}
	return newRowFrom(r.exprs, r.index, values), nil
}

// fromDB converts a driver value through the type of the expression.
// NULL stays nil whatever the type.
func fromDB(e Expression, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	t := exprType(e)
	if t == nil {
		if b, ok := v.([]byte); ok {
			return string(b), nil
		}
		return v, nil
	}
	return t.FromDB(v)
}

func (r *Rows) finish(err error) {
	r.done = true
	r.pending = nil
	if err != nil && r.err == nil {
		r.err = err
	}
	if cerr := r.cursor.Close(); cerr != nil && r.err == nil {
		r.err = cerr
	}
}

// Err returns the error that ended the iteration, if any.
func (r *Rows) Err() error { return r.err }

// Close releases the cursor. It is safe to call more than once.
func (r *Rows) Close() error {
	if r.eager {
		r.buffered = nil
		return nil
	}
	if !r.done {
		r.finish(nil)
	}
	return r.err
}

// All consumes the remaining rows.
func (r *Rows) All() ([]*ResultRow, error) {
	defer r.Close()
	var rows []*ResultRow
	for r.HasNext() {
		rows = append(rows, r.Next())
	}
	return rows, r.Err()
}

// Seq returns an iterator over the remaining rows. The iteration stops
// after yielding the error that ended it, and the rows are closed when the
// loop exits.
func (r *Rows) Seq() iter.Seq2[*ResultRow, error] {
	return func(yield func(*ResultRow, error) bool) {
		defer r.Close()
		for r.HasNext() {
			if !yield(r.Next(), nil) {
				return
			}
		}
		if err := r.Err(); err != nil {
			yield(nil, err)
		}
	}
}
