// Package errors provides structured error types for dataset planning and I/O.
// All errors include a category, code, message, and retryable flag so callers
// can match them with errors.Is regardless of the message.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryDataset    ErrorCategory = "DATASET"
	ErrCategoryMetadata   ErrorCategory = "METADATA"
	ErrCategorySchema     ErrorCategory = "SCHEMA"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryPlan       ErrorCategory = "PLAN"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Dataset codes
	CodeDatasetNotFound = "DATASET_NOT_FOUND"

	// Metadata codes
	CodeCorruptMetadata = "CORRUPT_METADATA"

	// Schema codes
	CodeColumnNotFound = "COLUMN_NOT_FOUND"

	// Storage codes
	CodePartitionIO    = "PARTITION_IO"
	CodeMetadataIO     = "METADATA_IO"
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"

	// Validation codes
	CodeInvalidTable       = "INVALID_TABLE"
	CodeInvalidChunkPolicy = "INVALID_CHUNK_POLICY"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeUnknownCodec       = "UNKNOWN_CODEC"

	// Plan codes
	CodeUnknownDivisions = "UNKNOWN_DIVISIONS"
	CodeKeyNotFound      = "KEY_NOT_FOUND"

	// Internal codes
	CodeKeyCollision = "KEY_COLLISION"
	CodeUnexpected   = "UNEXPECTED"
)

// Sentinels for errors.Is matching. Matching compares category and code only.
var (
	ErrDatasetNotFound = New(ErrCategoryDataset, CodeDatasetNotFound, "dataset not found")
	ErrCorruptMetadata = New(ErrCategoryMetadata, CodeCorruptMetadata, "corrupt metadata")
	ErrColumnNotFound  = New(ErrCategorySchema, CodeColumnNotFound, "column not found")
	ErrPartitionIO     = New(ErrCategoryStorage, CodePartitionIO, "partition I/O failed")
)

// DatasetError is the structured error type used throughout the module.
type DatasetError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *DatasetError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *DatasetError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *DatasetError) Is(target error) bool {
	var t *DatasetError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new DatasetError.
func New(category ErrorCategory, code, message string) *DatasetError {
	return &DatasetError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new DatasetError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *DatasetError {
	return &DatasetError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DatasetError) WithDetails(details map[string]interface{}) *DatasetError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var de *DatasetError
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a DatasetError.
func GetCategory(err error) ErrorCategory {
	var de *DatasetError
	if errors.As(err, &de) {
		return de.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a DatasetError.
func GetCode(err error) string {
	var de *DatasetError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// FileOf returns the file reference attached to a partition or metadata error,
// or "" when the error carries none.
func FileOf(err error) string {
	var de *DatasetError
	if errors.As(err, &de) {
		if f, ok := de.Details["file"].(string); ok {
			return f
		}
	}
	return ""
}

// isRetryable reports whether a transient storage transfer produced the error.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewDatasetNotFound(location string, cause error) *DatasetError {
	return Wrap(ErrCategoryDataset, CodeDatasetNotFound,
		fmt.Sprintf("no dataset metadata at %s", location), cause).
		WithDetails(map[string]interface{}{"file": location})
}

func NewCorruptMetadata(location, reason string, cause error) *DatasetError {
	return Wrap(ErrCategoryMetadata, CodeCorruptMetadata,
		fmt.Sprintf("metadata at %s is corrupt: %s", location, reason), cause).
		WithDetails(map[string]interface{}{"file": location})
}

func NewColumnNotFound(name string, available []string) *DatasetError {
	return New(ErrCategorySchema, CodeColumnNotFound,
		fmt.Sprintf("column %q not found (available: %s)", name, strings.Join(available, ", "))).
		WithDetails(map[string]interface{}{"column": name})
}

func NewPartitionIOError(file, message string, cause error) *DatasetError {
	return Wrap(ErrCategoryStorage, CodePartitionIO, message, cause).
		WithDetails(map[string]interface{}{"file": file})
}

func NewStorageError(code, file, message string, cause error) *DatasetError {
	return Wrap(ErrCategoryStorage, code, message, cause).
		WithDetails(map[string]interface{}{"file": file})
}

func NewValidationError(code, message string) *DatasetError {
	return New(ErrCategoryValidation, code, message)
}

func NewPlanError(code, message string) *DatasetError {
	return New(ErrCategoryPlan, code, message)
}

func NewInternalError(message string, cause error) *DatasetError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
