package partition

import (
	"fmt"
	"strings"

	"github.com/arkilian/pqdataset/internal/frame"
)

// ValidationError represents a problem found in a table before it is written.
// RowIndex is -1 when the problem is not tied to a single row.
type ValidationError struct {
	RowIndex int
	Field    string
	Message  string
}

func (e *ValidationError) Error() string {
	if e.RowIndex < 0 {
		return fmt.Sprintf("field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("row %d, field %q: %s", e.RowIndex, e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// TableValidator checks that a table can be encoded by every codec.
type TableValidator struct {
	// IndexName is the column name the index is written under. Empty means
	// the index is dropped before writing.
	IndexName string
}

// Validate returns ValidationErrors describing every problem found, or nil.
// At most one row-level error is reported per column.
func (v *TableValidator) Validate(f *frame.Frame) error {
	if f == nil {
		return ValidationErrors{{RowIndex: -1, Message: "table is nil"}}
	}
	var errs ValidationErrors

	if len(f.Columns) == 0 && (v.IndexName == "" || f.Index == nil) {
		errs = append(errs, &ValidationError{RowIndex: -1, Message: "table has no columns to write"})
	}

	seen := make(map[string]bool, len(f.Columns)+1)
	if v.IndexName != "" && f.Index != nil {
		seen[v.IndexName] = true
		errs = append(errs, v.validateColumn(f.Index, v.IndexName, f.NumRows())...)
	}
	for _, col := range f.Columns {
		if col == nil {
			errs = append(errs, &ValidationError{RowIndex: -1, Message: "nil column"})
			continue
		}
		if col.Name == "" {
			errs = append(errs, &ValidationError{RowIndex: -1, Message: "column name is empty"})
		} else if seen[col.Name] {
			errs = append(errs, &ValidationError{RowIndex: -1, Field: col.Name, Message: "duplicate column name"})
		}
		seen[col.Name] = true
		errs = append(errs, v.validateColumn(col, col.Name, f.NumRows())...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *TableValidator) validateColumn(col *frame.Column, name string, rows int) []*ValidationError {
	var errs []*ValidationError
	if !col.Type.Valid() {
		return append(errs, &ValidationError{RowIndex: -1, Field: name, Message: fmt.Sprintf("unsupported type %q", col.Type)})
	}
	if col.Len() != rows {
		errs = append(errs, &ValidationError{RowIndex: -1, Field: name,
			Message: fmt.Sprintf("has %d values, table has %d rows", col.Len(), rows)})
	}
	for i, val := range col.Values {
		if !col.Type.Accepts(val) {
			errs = append(errs, &ValidationError{RowIndex: i, Field: name,
				Message: fmt.Sprintf("value %v (%T) is not %s", val, val, col.Type)})
			break
		}
	}
	return errs
}
