// Package types defines the dataset schema, column data types and the value
// ordering used for partition statistics and divisions.
package types

import "fmt"

// Schema defines the ordered columns of a dataset.
type Schema struct {
	// Columns defines the columns in file order
	Columns []ColumnDef `json:"columns"`
}

// ColumnDef defines a single column in the schema.
type ColumnDef struct {
	// Name is the column name
	Name string `json:"name"`

	// Type is the semantic type: int32, int64, float64, string, bool
	Type DataType `json:"type"`
}

// NewSchema builds a schema from column definitions.
func NewSchema(columns ...ColumnDef) Schema {
	cols := make([]ColumnDef, len(columns))
	copy(cols, columns)
	return Schema{Columns: cols}
}

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Lookup finds a column by name.
func (s Schema) Lookup(name string) (ColumnDef, int, bool) {
	for i, c := range s.Columns {
		if c.Name == name {
			return c, i, true
		}
	}
	return ColumnDef{}, -1, false
}

// Has reports whether the schema contains a column with the given name.
func (s Schema) Has(name string) bool {
	_, _, ok := s.Lookup(name)
	return ok
}

// Validate checks that names are non-empty and unique and that every type is known.
func (s Schema) Validate() error {
	seen := make(map[string]struct{}, len(s.Columns))
	for i, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("duplicate column name %q", c.Name)
		}
		seen[c.Name] = struct{}{}
		if !c.Type.Valid() {
			return fmt.Errorf("column %q has unknown type %q", c.Name, c.Type)
		}
	}
	return nil
}

// Equal reports whether two schemas have the same columns in the same order.
func (s Schema) Equal(other Schema) bool {
	if len(s.Columns) != len(other.Columns) {
		return false
	}
	for i := range s.Columns {
		if s.Columns[i] != other.Columns[i] {
			return false
		}
	}
	return true
}
