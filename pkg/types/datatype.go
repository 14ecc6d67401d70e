package types

import (
	"cmp"
	"fmt"
)

// DataType is the semantic type of a column.
type DataType string

const (
	TypeInt32   DataType = "int32"
	TypeInt64   DataType = "int64"
	TypeFloat64 DataType = "float64"
	TypeString  DataType = "string"
	TypeBool    DataType = "bool"
)

// Valid reports whether t is a known type.
func (t DataType) Valid() bool {
	switch t {
	case TypeInt32, TypeInt64, TypeFloat64, TypeString, TypeBool:
		return true
	default:
		return false
	}
}

// Sortable reports whether min/max statistics are recorded for columns of this type.
func (t DataType) Sortable() bool {
	switch t {
	case TypeInt32, TypeInt64, TypeFloat64, TypeString:
		return true
	default:
		return false
	}
}

// Accepts reports whether v is a value of this type. Nulls are not supported.
func (t DataType) Accepts(v any) bool {
	switch v.(type) {
	case int32:
		return t == TypeInt32
	case int64:
		return t == TypeInt64
	case float64:
		return t == TypeFloat64
	case string:
		return t == TypeString
	case bool:
		return t == TypeBool
	default:
		return false
	}
}

// TypeOf returns the data type of a Go value, or false if the value is unsupported.
func TypeOf(v any) (DataType, bool) {
	switch v.(type) {
	case int32:
		return TypeInt32, true
	case int64:
		return TypeInt64, true
	case float64:
		return TypeFloat64, true
	case string:
		return TypeString, true
	case bool:
		return TypeBool, true
	default:
		return "", false
	}
}

// Compare orders two values of the same sortable type.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
func Compare(a, b any) (int, error) {
	switch av := a.(type) {
	case int32:
		if bv, ok := b.(int32); ok {
			return cmp.Compare(av, bv), nil
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return cmp.Compare(av, bv), nil
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return cmp.Compare(av, bv), nil
		}
	case string:
		if bv, ok := b.(string); ok {
			return cmp.Compare(av, bv), nil
		}
	default:
		return 0, fmt.Errorf("%w: %T", ErrNotComparable, a)
	}
	return 0, fmt.Errorf("%w: %T vs %T", ErrTypeMismatch, a, b)
}
