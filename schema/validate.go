package schema

import (
	"fmt"
	"strings"

	"ariga.io/atlas/sql/schema"

	"github.com/syssam/tql"
	"github.com/syssam/tql/dialect"
	"github.com/syssam/tql/types"
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Table   string
	Column  string
	Message string
	// Breaking indicates if this is a breaking change.
	Breaking bool
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of schema validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// HasBreakingChanges returns true if there are any breaking changes.
func (r *ValidationResult) HasBreakingChanges() bool {
	for _, e := range r.Errors {
		if e.Breaking {
			return true
		}
	}
	for _, w := range r.Warnings {
		if w.Breaking {
			return true
		}
	}
	return false
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	writeAll := func(title string, errs []*ValidationError) {
		if len(errs) == 0 {
			return
		}
		sb.WriteString(title + ":\n")
		for _, e := range errs {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			if e.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	writeAll("Errors", r.Errors)
	writeAll("Warnings", r.Warnings)
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

func (r *ValidationResult) add(err *ValidationError, allowed bool) {
	if allowed {
		r.Warnings = append(r.Warnings, err)
	} else {
		r.Errors = append(r.Errors, err)
	}
}

// ValidateOption configures schema validation.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	allowDropColumn    bool
	allowDropTable     bool
	allowDropIndex     bool
	allowNullToNotNull bool
}

// AllowDropColumn allows dropping columns without error.
func AllowDropColumn() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropColumn = true
	}
}

// AllowDropTable allows dropping tables without error.
func AllowDropTable() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropTable = true
	}
}

// AllowDropIndex allows dropping indexes without error.
func AllowDropIndex() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropIndex = true
	}
}

// AllowNullToNotNull allows changing nullable columns to not null.
func AllowNullToNotNull() ValidateOption {
	return func(c *validateConfig) {
		c.allowNullToNotNull = true
	}
}

// ValidateDiff validates the difference between the current and the desired
// schema. Breaking changes are errors unless an option allows them, and
// changes that may fail on existing data are warnings.
//
// Example:
//
//	current, _ := schema.Inspect(ctx, db)
//	desired, _ := schema.ToAtlas(db.Dialect(), current.Name, users, cities)
//	if result := schema.ValidateDiff(current, desired); result.HasBreakingChanges() {
//	    log.Fatal("Breaking changes detected:", result)
//	}
func ValidateDiff(current, desired *schema.Schema, opts ...ValidateOption) *ValidationResult {
	cfg := &validateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	result := &ValidationResult{}
	for _, ct := range current.Tables {
		if _, ok := desired.Table(ct.Name); !ok {
			result.add(&ValidationError{
				Table:    ct.Name,
				Message:  "table will be dropped",
				Breaking: true,
			}, cfg.allowDropTable)
		}
	}
	for _, dt := range desired.Tables {
		// New tables need no validation.
		if ct, ok := current.Table(dt.Name); ok {
			validateTableDiff(ct, dt, cfg, result)
		}
	}
	return result
}

func validateTableDiff(current, desired *schema.Table, cfg *validateConfig, result *ValidationResult) {
	for _, cc := range current.Columns {
		if _, ok := desired.Column(cc.Name); !ok {
			result.add(&ValidationError{
				Table:    current.Name,
				Column:   cc.Name,
				Message:  "column will be dropped",
				Breaking: true,
			}, cfg.allowDropColumn)
		}
	}

	for _, dc := range desired.Columns {
		cc, ok := current.Column(dc.Name)
		if !ok {
			if !dc.Type.Null && dc.Default == nil {
				result.Warnings = append(result.Warnings, &ValidationError{
					Table:   current.Name,
					Column:  dc.Name,
					Message: "new NOT NULL column without default value may fail if table has data",
				})
			}
			continue
		}

		if from, to := rawType(cc), rawType(dc); !strings.EqualFold(from, to) {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   current.Name,
				Column:  dc.Name,
				Message: fmt.Sprintf("column type changing from %s to %s", from, to),
			})
		}

		if cc.Type.Null && !dc.Type.Null {
			result.add(&ValidationError{
				Table:    current.Name,
				Column:   dc.Name,
				Message:  "column changing from NULL to NOT NULL may fail if column has NULL values",
				Breaking: true,
			}, cfg.allowNullToNotNull)
		}

		if from, to := size(cc), size(dc); from > 0 && to > 0 && to < from {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   current.Name,
				Column:  dc.Name,
				Message: fmt.Sprintf("column size reducing from %d to %d may truncate data", from, to),
			})
		}

		if !uniqueColumn(current, cc.Name) && uniqueColumn(desired, dc.Name) {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   current.Name,
				Column:  dc.Name,
				Message: "adding UNIQUE constraint may fail if duplicate values exist",
			})
		}
	}

	for _, idx := range current.Indexes {
		if _, ok := desired.Index(idx.Name); !ok {
			result.add(&ValidationError{
				Table:   current.Name,
				Message: fmt.Sprintf("index %q will be dropped", idx.Name),
			}, cfg.allowDropIndex)
		}
	}
}

func rawType(c *schema.Column) string {
	if c.Type == nil {
		return ""
	}
	if c.Type.Raw != "" {
		return c.Type.Raw
	}
	if c.Type.Type != nil {
		return fmt.Sprint(c.Type.Type)
	}
	return ""
}

func size(c *schema.Column) int {
	if c.Type == nil {
		return 0
	}
	if st, ok := c.Type.Type.(*schema.StringType); ok {
		return st.Size
	}
	return 0
}

// uniqueColumn reports whether a single-column unique index covers the column.
func uniqueColumn(t *schema.Table, name string) bool {
	for _, idx := range t.Indexes {
		if idx.Unique && len(idx.Parts) == 1 && idx.Parts[0].C != nil && idx.Parts[0].C.Name == name {
			return true
		}
	}
	return false
}

// Validate validates declared tables for a dialect: primary keys, index and
// foreign key targets, and features the dialect cannot create.
func Validate(d *dialect.Dialect, tables ...*tql.Table) *ValidationResult {
	result := &ValidationResult{}

	declared := make(map[*tql.Table]bool, len(tables))
	names := make(map[string]bool, len(tables))
	for _, t := range tables {
		if names[t.Name()] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name(),
				Message: "duplicate table name",
			})
		}
		names[t.Name()] = true
		declared[t] = true
	}

	for _, t := range tables {
		validateTable(d, t, declared, result)
	}
	return result
}

func validateTable(d *dialect.Dialect, t *tql.Table, declared map[*tql.Table]bool, result *ValidationResult) {
	if len(t.PrimaryKeyColumns()) == 0 {
		result.Warnings = append(result.Warnings, &ValidationError{
			Table:   t.Name(),
			Message: "table has no primary key",
		})
	}

	idxNames := make(map[string]bool)
	for _, idx := range t.Indices() {
		if idxNames[idx.Name] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name(),
				Message: fmt.Sprintf("duplicate index name: %s", idx.Name),
			})
		}
		idxNames[idx.Name] = true
	}

	if n := len(t.Checks()); n > 0 && !d.CheckConstraints {
		result.Errors = append(result.Errors, &ValidationError{
			Table:   t.Name(),
			Message: fmt.Sprintf("%s does not support the %d CHECK constraints of the table", d.Name, n),
		})
	}

	for _, c := range t.Columns() {
		if _, _, err := tql.ResolveAutoIncrement(d, c); err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name(),
				Column:  c.Name(),
				Message: err.Error(),
			})
		}
		fk := c.Def().ForeignKey
		if fk == nil {
			continue
		}
		target := fk.Target.Table()
		if !declared[target] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name(),
				Column:  c.Name(),
				Message: fmt.Sprintf("foreign key references undeclared table %q", target.Name()),
			})
			continue
		}
		if family(c.Type()) != family(fk.Target.Type()) {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   t.Name(),
				Column:  c.Name(),
				Message: fmt.Sprintf("foreign key type %s differs from referenced %s.%s type %s",
					c.Type().SQLType(d), target.Name(), fk.Target.Name(), fk.Target.Type().SQLType(d)),
			})
		}
	}
}

func family(t types.Type) dialect.DataType {
	for range 4 {
		if f, ok := t.(types.Familied); ok {
			return f.Family()
		}
		u, ok := t.(interface{ Unwrap() types.Type })
		if !ok {
			break
		}
		t = u.Unwrap()
	}
	return 0
}
