package tql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/tql/dialect"
	"github.com/syssam/tql/dialect/sql"
)

// Standard sentinel errors.
var (
	// ErrBuild is matched by every BuildError.
	ErrBuild = errors.New("tql: invalid statement")

	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("tql: invalid value")

	// ErrUnsupported is matched by every UnsupportedError.
	ErrUnsupported = dialect.ErrUnsupported

	// ErrNotFound is returned by First and Single when the query has no rows.
	ErrNotFound = errors.New("tql: no rows in result set")

	// ErrNotSingular is returned by Single when the query has more than one row.
	ErrNotSingular = errors.New("tql: more than one row in result set")

	// ErrMissingValue is the cause of a ValidationError for a required column
	// that was not assigned and has no default.
	ErrMissingValue = errors.New("tql: missing value for column without default")

	// ErrTxDone is returned when a statement is executed on a finished transaction.
	ErrTxDone = errors.New("tql: transaction has already been committed or rolled back")
)

// UnsupportedError reports a feature the active dialect cannot express.
type UnsupportedError = dialect.UnsupportedError

// BuildError reports a statement or schema that cannot be built, such as a
// duplicate column or a join without an unambiguous condition.
type BuildError struct {
	Op  string // Building step (e.g. "join", "union")
	Msg string
}

// Error returns the error string.
func (e *BuildError) Error() string {
	return fmt.Sprintf("tql: %s: %s", e.Op, e.Msg)
}

// Is reports whether the target error matches BuildError.
// This allows errors.Is(buildErr, ErrBuild) to return true.
func (e *BuildError) Is(err error) bool {
	return err == ErrBuild
}

func buildErrorf(op, format string, args ...any) *BuildError {
	return &BuildError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// IsBuildError returns true if the error is a BuildError.
func IsBuildError(err error) bool {
	if err == nil {
		return false
	}
	var e *BuildError
	return errors.As(err, &e)
}

// ValidationError represents a value rejected before it reached the driver.
type ValidationError struct {
	Name string // Column name, empty for unnamed parameters
	Err  error  // Underlying validation error
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("tql: validator failed for parameter: %s", e.Err)
	}
	return fmt.Sprintf("tql: validator failed for column %q: %s", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches ValidationError.
func (e *ValidationError) Is(err error) bool {
	return err == ErrValidation
}

// NewValidationError returns a new ValidationError for the given column.
func NewValidationError(name string, err error) *ValidationError {
	return &ValidationError{Name: name, Err: err}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// IsUnsupported returns true if the error reports a feature the dialect lacks.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

// BatchInconsistencyError reports a staged batch row that disagrees with the
// shape or the column types established by the batch.
type BatchInconsistencyError struct {
	Position int // 1-based position of the row in the batch input
	Err      error
}

// Error returns the error string.
func (e *BatchInconsistencyError) Error() string {
	return fmt.Sprintf("tql: batch row %d is inconsistent: %v", e.Position, e.Err)
}

// Unwrap returns the underlying error.
func (e *BatchInconsistencyError) Unwrap() error {
	return e.Err
}

// BatchRowError is a batch row that still failed when retried alone.
type BatchRowError struct {
	Position int // 1-based position of the row in the batch input
	Err      error
}

// Error returns the error string.
func (e *BatchRowError) Error() string {
	return fmt.Sprintf("tql: batch row %d: %v", e.Position, e.Err)
}

// Unwrap returns the underlying error.
func (e *BatchRowError) Unwrap() error {
	return e.Err
}

// BatchError is returned alongside the results of a batch in which some rows
// were skipped.
type BatchError struct {
	Rows []*BatchRowError
}

// Error returns the error string.
func (e *BatchError) Error() string {
	if len(e.Rows) == 1 {
		return e.Rows[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "tql: %d batch rows failed:", len(e.Rows))
	for _, r := range e.Rows {
		fmt.Fprintf(&sb, "\n  [%d] %v", r.Position, r.Err)
	}
	return sb.String()
}

// Unwrap returns the row errors.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Rows))
	for i, r := range e.Rows {
		errs[i] = r
	}
	return errs
}

// Positions returns the 1-based positions of the failed rows.
func (e *BatchError) Positions() []int {
	pos := make([]int, len(e.Rows))
	for i, r := range e.Rows {
		pos[i] = r.Position
	}
	return pos
}

// IsBatchError returns true if the error is a BatchError.
func IsBatchError(err error) bool {
	if err == nil {
		return false
	}
	var e *BatchError
	return errors.As(err, &e)
}

// ExecError wraps a driver error with the statement that caused it.
type ExecError struct {
	SQL    string // Rendered SQL with placeholders
	Args   []Arg  // Bound arguments in placeholder order
	Inline string // SQL with arguments expanded, only set in debug mode
	Err    error
}

// Error returns the error string.
func (e *ExecError) Error() string {
	if e.Inline != "" {
		return fmt.Sprintf("tql: exec %s: %v", e.Inline, e.Err)
	}
	if len(e.Args) == 0 {
		return fmt.Sprintf("tql: exec %s: %v", e.SQL, e.Err)
	}
	return fmt.Sprintf("tql: exec %s %v: %v", e.SQL, argValues(e.Args), e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecError) Unwrap() error {
	return e.Err
}

// IsExecError returns true if the error is an ExecError.
func IsExecError(err error) bool {
	if err == nil {
		return false
	}
	var e *ExecError
	return errors.As(err, &e)
}

// IsConstraintError returns true if the error resulted from a database
// constraint violation.
func IsConstraintError(err error) bool {
	return sql.IsConstraintError(err)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("tql: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "tql: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("tql: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
