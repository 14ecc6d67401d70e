package frame

import (
	"fmt"
	"math"

	"github.com/arkilian/pqdataset/pkg/types"
)

// Column is a named, typed vector of values. Columns are treated as immutable
// once they are part of a Frame.
type Column struct {
	Name   string
	Type   types.DataType
	Values []any
}

// NewColumn creates a column without checking the values against the type.
func NewColumn(name string, t types.DataType, values ...any) *Column {
	vals := make([]any, len(values))
	copy(vals, values)
	return &Column{Name: name, Type: t, Values: vals}
}

// Int32s creates an int32 column.
func Int32s(name string, vs ...int32) *Column {
	return typed(name, types.TypeInt32, vs)
}

// Int64s creates an int64 column.
func Int64s(name string, vs ...int64) *Column {
	return typed(name, types.TypeInt64, vs)
}

// Float64s creates a float64 column.
func Float64s(name string, vs ...float64) *Column {
	return typed(name, types.TypeFloat64, vs)
}

// Strings creates a string column.
func Strings(name string, vs ...string) *Column {
	return typed(name, types.TypeString, vs)
}

// Bools creates a bool column.
func Bools(name string, vs ...bool) *Column {
	return typed(name, types.TypeBool, vs)
}

func typed[T any](name string, t types.DataType, vs []T) *Column {
	vals := make([]any, len(vs))
	for i, v := range vs {
		vals[i] = v
	}
	return &Column{Name: name, Type: t, Values: vals}
}

// Len returns the number of values.
func (c *Column) Len() int {
	return len(c.Values)
}

// Def returns the schema definition of the column.
func (c *Column) Def() types.ColumnDef {
	return types.ColumnDef{Name: c.Name, Type: c.Type}
}

// Slice returns rows [lo, hi). The result shares storage with c.
func (c *Column) Slice(lo, hi int) *Column {
	return &Column{Name: c.Name, Type: c.Type, Values: c.Values[lo:hi:hi]}
}

// Rename returns a copy of the column header with a new name.
func (c *Column) Rename(name string) *Column {
	return &Column{Name: name, Type: c.Type, Values: c.Values}
}

// Validate checks the column type and that every value matches it.
func (c *Column) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("column has an empty name")
	}
	if !c.Type.Valid() {
		return fmt.Errorf("column %q has unknown type %q", c.Name, c.Type)
	}
	for i, v := range c.Values {
		if !c.Type.Accepts(v) {
			return fmt.Errorf("column %q row %d: value %v (%T) is not %s", c.Name, i, v, v, c.Type)
		}
	}
	return nil
}

// Equal reports whether two columns have the same name, type and values.
// NaN equals NaN.
func (c *Column) Equal(o *Column) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.Name != o.Name || c.Type != o.Type || len(c.Values) != len(o.Values) {
		return false
	}
	for i := range c.Values {
		if !valueEqual(c.Values[i], o.Values[i]) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	if fa, ok := a.(float64); ok {
		if fb, ok := b.(float64); ok && math.IsNaN(fa) && math.IsNaN(fb) {
			return true
		}
	}
	return a == b
}
