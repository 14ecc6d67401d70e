package manifest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	dserr "github.com/arkilian/pqdataset/internal/errors"
	"github.com/arkilian/pqdataset/internal/logging"
	"github.com/arkilian/pqdataset/internal/storage"
)

// MetadataFile is the name of the consolidated metadata object in a dataset directory.
const MetadataFile = "_metadata"

// MetadataPath returns the object path of the metadata file under prefix.
func MetadataPath(prefix string) string {
	return storage.Join(prefix, MetadataFile)
}

// Store reads and writes dataset metadata through object storage.
type Store struct {
	storage storage.ObjectStorage
	logger  *slog.Logger
}

// NewStore creates a metadata store. A nil logger discards output.
func NewStore(st storage.ObjectStorage, logger *slog.Logger) *Store {
	return &Store{storage: st, logger: logging.OrDiscard(logger)}
}

// Storage returns the backing object storage.
func (s *Store) Storage() storage.ObjectStorage {
	return s.storage
}

// Write persists rec as the metadata of the dataset under prefix.
// It must be called only after every partition file exists.
func (s *Store) Write(ctx context.Context, prefix string, rec *Record) error {
	objectPath := MetadataPath(prefix)
	location := s.storage.Location(objectPath)

	if err := rec.Validate(); err != nil {
		return dserr.NewInternalError(fmt.Sprintf("refusing to write invalid metadata to %s", location), err)
	}
	data, err := Encode(rec)
	if err != nil {
		return dserr.NewInternalError(fmt.Sprintf("failed to encode metadata for %s", location), err)
	}
	if err := s.storage.Put(ctx, objectPath, data); err != nil {
		return dserr.NewStorageError(dserr.CodeMetadataIO, location, "failed to write metadata", err)
	}

	s.logger.Debug("metadata written",
		"location", location,
		"dataset_id", rec.DatasetID.String(),
		"partitions", rec.NumPartitions(),
		"bytes", len(data))
	return nil
}

// Read loads the metadata of the dataset under prefix in a single object read.
func (s *Store) Read(ctx context.Context, prefix string) (*Record, error) {
	objectPath := MetadataPath(prefix)
	location := s.storage.Location(objectPath)

	data, err := s.storage.Get(ctx, objectPath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, dserr.NewDatasetNotFound(location, err)
		}
		return nil, dserr.NewStorageError(dserr.CodeMetadataIO, location, "failed to read metadata", err)
	}

	rec, err := Decode(data)
	if err != nil {
		return nil, dserr.NewCorruptMetadata(location, err.Error(), err)
	}
	return rec, nil
}

// Delete removes the metadata file. Deleting absent metadata is not an error.
func (s *Store) Delete(ctx context.Context, prefix string) error {
	objectPath := MetadataPath(prefix)
	if err := s.storage.Delete(ctx, objectPath); err != nil {
		return dserr.NewStorageError(dserr.CodeMetadataIO, s.storage.Location(objectPath),
			"failed to delete metadata", err)
	}
	return nil
}

// Exists reports whether the dataset under prefix has metadata.
func (s *Store) Exists(ctx context.Context, prefix string) (bool, error) {
	return s.storage.Exists(ctx, MetadataPath(prefix))
}
