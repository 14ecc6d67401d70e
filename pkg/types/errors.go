package types

import "errors"

// Value comparison errors
var (
	// ErrNotComparable is returned when a value's type has no ordering
	ErrNotComparable = errors.New("value type is not comparable")

	// ErrTypeMismatch is returned when two compared values have different types
	ErrTypeMismatch = errors.New("value types do not match")
)
