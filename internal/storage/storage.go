// Package storage provides object storage abstractions for dataset files.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStorage abstracts object storage operations.
// Implementations include S3 and the local filesystem.
// Object paths are slash separated and relative to the storage root.
type ObjectStorage interface {
	// Upload uploads a file to object storage.
	// localPath is the path to the local file to upload.
	// objectPath is the destination path in object storage.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download downloads a file from object storage.
	// objectPath is the source path in object storage.
	// localPath is the destination path on the local filesystem.
	Download(ctx context.Context, objectPath, localPath string) error

	// Put stores data as a single object. A concurrent reader sees either the
	// previous object or the complete new one.
	Put(ctx context.Context, objectPath string, data []byte) error

	// Get returns the full contents of an object.
	// Returns ErrObjectNotFound if the object does not exist.
	Get(ctx context.Context, objectPath string) ([]byte, error)

	// Delete removes an object from storage. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all object paths under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)

	// Location returns a stable URI identifying objectPath, e.g.
	// "file:///data/ds/_metadata" or "s3://bucket/ds/_metadata".
	Location(objectPath string) string
}

// LocalPather is implemented by storages whose objects are plain local files
// that can be decoded in place without a download.
type LocalPather interface {
	LocalPath(objectPath string) string
}

// MultipartUploadConfig holds configuration for multipart uploads.
type MultipartUploadConfig struct {
	// PartSize is the size of each part in bytes (default: 5MB).
	PartSize int64
	// Concurrency is the number of concurrent part uploads (default: 5).
	Concurrency int
}

// DefaultMultipartConfig returns the default multipart upload configuration.
func DefaultMultipartConfig() MultipartUploadConfig {
	return MultipartUploadConfig{
		PartSize:    5 * 1024 * 1024, // 5MB
		Concurrency: 5,
	}
}

// Join joins object path elements with forward slashes. Leading slashes are dropped.
func Join(elem ...string) string {
	return strings.TrimPrefix(path.Join(elem...), "/")
}

// Base returns the last element of an object path.
func Base(objectPath string) string {
	return path.Base(objectPath)
}
