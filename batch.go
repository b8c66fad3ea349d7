package tql

import (
	"context"
	"errors"

	"github.com/syssam/tql/dialect"
)

// BatchStatement writes many rows of one table with multi-row statements.
//
// Rows are staged with Add and validated when the batch executes: a row that
// does not write the same columns as the rows before it, or whose values do
// not fit their columns, is inconsistent. The rows accumulated before it are
// executed, and the inconsistent row is retried alone. If it still fails, it
// is reported as a BatchRowError and the batch goes on with the next rows.
// An inconsistent first row fails the whole batch.
type BatchStatement struct {
	kind    Kind
	table   *Table
	ignore  bool
	keys    []AnyColumn
	updates []Assignment
	rows    [][]Assignment
	err     error
}

// BatchInsert returns a batch inserting rows into t.
func BatchInsert(t *Table) *BatchStatement {
	return &BatchStatement{kind: KindInsert, table: t}
}

// BatchUpsert returns a batch upserting rows into t on keys. No keys means
// the primary key of t.
func BatchUpsert(t *Table, keys ...AnyColumn) *BatchStatement {
	s := &BatchStatement{kind: KindUpsert, table: t}
	s.keys, s.err = upsertKeys(t, keys)
	return s
}

// BatchReplace returns a batch replacing rows of t.
func BatchReplace(t *Table) *BatchStatement {
	return &BatchStatement{kind: KindReplace, table: t}
}

// Add stages a row.
func (s *BatchStatement) Add(assignments ...Assignment) *BatchStatement {
	s.rows = append(s.rows, assignments)
	return s
}

// Ignore skips rows conflicting with existing rows. It only applies to
// BatchInsert.
func (s *BatchStatement) Ignore() *BatchStatement {
	if s.kind != KindInsert && s.err == nil {
		s.err = buildErrorf("batch", "IGNORE only applies to INSERT")
	}
	s.ignore = true
	return s
}

// OnUpdate sets the assignments applied to conflicting rows of a
// BatchUpsert, see UpsertStatement.OnUpdate.
func (s *BatchStatement) OnUpdate(assignments ...Assignment) *BatchStatement {
	if s.kind != KindUpsert && s.err == nil {
		s.err = buildErrorf("batch", "OnUpdate only applies to upserts")
	}
	s.updates = append(s.updates, assignments...)
	return s
}

// Len returns the number of staged rows.
func (s *BatchStatement) Len() int { return len(s.rows) }

// Exec executes the batch. It returns the written rows in input order,
// completed with the keys the database generated, skipping the rows that
// failed. When rows failed, the error is a *BatchError alongside the
// results. Driver errors stop the batch and are returned as they are.
func (s *BatchStatement) Exec(ctx context.Context, tx *Tx) ([]*ResultRow, error) {
	if s.err != nil {
		return nil, s.err
	}
	var (
		results []*ResultRow
		failed  []*BatchRowError
		batch   []*insertRow
	)
	flush := func() error {
		for _, chunk := range s.chunks(tx, batch) {
			rows, _, err := execWrite(ctx, tx, s.write(chunk))
			if err != nil {
				return err
			}
			results = append(results, rows...)
		}
		batch = batch[:0]
		return nil
	}
	for i, assignments := range s.rows {
		pos := i + 1
		r, err := s.stage(assignments)
		if err == nil && len(batch) > 0 {
			err = batch[0].sameShape(r)
		}
		if err == nil {
			batch = append(batch, r)
			continue
		}
		if pos == 1 {
			return nil, &BatchInconsistencyError{Position: pos, Err: err}
		}
		if err := flush(); err != nil {
			return results, err
		}
		// Retry the row alone in a new batch.
		if r, err = s.stage(assignments); err != nil {
			failed = append(failed, &BatchRowError{Position: pos, Err: err})
			continue
		}
		batch = append(batch, r)
		if err := flush(); err != nil {
			return results, err
		}
	}
	if err := flush(); err != nil {
		return results, err
	}
	if len(failed) > 0 {
		return results, &BatchError{Rows: failed}
	}
	return results, nil
}

// stage resolves a row against the table and validates its values.
func (s *BatchStatement) stage(assignments []Assignment) (*insertRow, error) {
	r, err := resolveRow(s.table, assignments)
	if err != nil {
		return nil, err
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *BatchStatement) write(rows []*insertRow) *write {
	return &write{
		kind:    s.kind,
		table:   s.table,
		rows:    rows,
		ignore:  s.ignore,
		keys:    s.keys,
		updates: s.updates,
	}
}

// chunks splits rows so that no statement binds more parameters than the
// dialect accepts.
func (s *BatchStatement) chunks(tx *Tx, rows []*insertRow) [][]*insertRow {
	if len(rows) == 0 {
		return nil
	}
	d := tx.Dialect()
	size := len(rows)
	if per := rows[0].params(); per > 0 && d.MaxParameters > 0 {
		fixed := 0
		for _, a := range s.updates {
			if _, ok := a.Value.(Expression); !ok {
				fixed++
			}
		}
		size = max(1, (d.MaxParameters-fixed)/per)
	}
	// Rows of defaults only take one statement each, but on MySQL.
	if len(rows[0].values) == 0 && d.Name != dialect.MySQL {
		size = 1
	}
	var chunks [][]*insertRow
	for len(rows) > 0 {
		n := min(size, len(rows))
		chunks = append(chunks, append([]*insertRow(nil), rows[:n]...))
		rows = rows[n:]
	}
	return chunks
}

// FailedPositions returns the 1-based positions of the rows a batch error
// reports, or nil when err is not a *BatchError.
func FailedPositions(err error) []int {
	var be *BatchError
	if errors.As(err, &be) {
		return be.Positions()
	}
	return nil
}
