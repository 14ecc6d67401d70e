// Package writer splits an in-memory table into ordered partition files and
// records the dataset metadata once every file is in place.
package writer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	dserr "github.com/arkilian/pqdataset/internal/errors"
	"github.com/arkilian/pqdataset/internal/frame"
	"github.com/arkilian/pqdataset/internal/logging"
	"github.com/arkilian/pqdataset/internal/manifest"
	"github.com/arkilian/pqdataset/internal/partition"
	"github.com/arkilian/pqdataset/internal/storage"
)

// DefaultIndexName is the column name used for an unnamed index.
const DefaultIndexName = "index"

// Writer writes datasets.
type Writer struct {
	storage    storage.ObjectStorage
	store      *manifest.Store
	codec      partition.Codec
	stagingDir string
	logger     *slog.Logger
}

// NewWriter creates a writer. Partition files are encoded under stagingDir
// (the system temp dir when empty) before upload.
func NewWriter(st storage.ObjectStorage, store *manifest.Store, codec partition.Codec, stagingDir string, logger *slog.Logger) *Writer {
	return &Writer{
		storage:    st,
		store:      store,
		codec:      codec,
		stagingDir: stagingDir,
		logger:     logging.OrDiscard(logger),
	}
}

// Write replaces the dataset under prefix with table. With writeIndex the
// table's index becomes the first stored column and the dataset index;
// otherwise it is dropped.
//
// Metadata is written last. If any partition fails the error names the
// file and the directory is left without metadata.
func (w *Writer) Write(ctx context.Context, prefix string, table *frame.Frame, policy ChunkPolicy, writeIndex bool) (*manifest.Record, error) {
	start := time.Now()

	if err := policy.Validate(); err != nil {
		return nil, err
	}
	out, indexName, err := prepare(table, writeIndex)
	if err != nil {
		return nil, err
	}
	ranges, err := policy.Split(out.NumRows())
	if err != nil {
		return nil, err
	}
	schema := out.Schema()
	statsColumns := partition.SortableColumns(out)

	release, err := datasetLocks.acquire(ctx, w.storage.Location(prefix))
	if err != nil {
		return nil, dserr.NewPartitionIOError(w.storage.Location(prefix), "write cancelled", err)
	}
	defer release()

	if err := w.clear(ctx, prefix); err != nil {
		return nil, err
	}

	if w.stagingDir != "" {
		if err := os.MkdirAll(w.stagingDir, 0755); err != nil {
			return nil, fmt.Errorf("writer: failed to create staging directory: %w", err)
		}
	}
	staging, err := os.MkdirTemp(w.stagingDir, "pqds-write-*")
	if err != nil {
		return nil, fmt.Errorf("writer: failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	parts := make([]manifest.PartitionMeta, 0, len(ranges))
	for i, r := range ranges {
		meta, err := w.writeChunk(ctx, prefix, staging, i, out.Slice(r.Lo, r.Hi), statsColumns)
		if err != nil {
			return nil, err
		}
		parts = append(parts, *meta)
	}

	rec := manifest.NewRecord(w.codec.Name(), schema, indexName, parts)
	if err := w.store.Write(ctx, prefix, rec); err != nil {
		return nil, err
	}

	w.logger.Info("dataset written",
		"location", w.storage.Location(prefix),
		"dataset_id", rec.DatasetID.String(),
		"codec", rec.Codec,
		"policy", policy.String(),
		"partitions", len(parts),
		"rows", rec.TotalRows(),
		"index", indexName,
		"duration", time.Since(start))
	return rec, nil
}

func (w *Writer) writeChunk(ctx context.Context, prefix, staging string, seq int, chunk *frame.Frame, statsColumns []string) (*manifest.PartitionMeta, error) {
	name := partition.FileName(seq, w.codec.Extension())
	objectPath := storage.Join(prefix, name)
	location := w.storage.Location(objectPath)
	localPath := filepath.Join(staging, name)

	if err := ctx.Err(); err != nil {
		return nil, dserr.NewPartitionIOError(location, "write cancelled", err)
	}
	info, err := w.codec.Encode(ctx, chunk, localPath, statsColumns)
	if err != nil {
		return nil, dserr.NewPartitionIOError(location, fmt.Sprintf("failed to encode partition %d", seq), err)
	}
	if err := w.storage.Upload(ctx, localPath, objectPath); err != nil {
		return nil, dserr.NewPartitionIOError(location, fmt.Sprintf("failed to upload partition %d", seq), err)
	}
	if err := os.Remove(localPath); err != nil {
		w.logger.Warn("failed to remove staged partition", "path", localPath, "error", err)
	}

	w.logger.Debug("partition written",
		"file", location,
		"partition", seq,
		"rows", info.RowCount,
		"bytes", info.SizeBytes)
	return &manifest.PartitionMeta{
		Object:    name,
		RowCount:  info.RowCount,
		SizeBytes: info.SizeBytes,
		Stats:     info.MinMaxStats,
	}, nil
}

// clear removes existing metadata first, then stale partition files, so
// metadata never points at a missing file.
func (w *Writer) clear(ctx context.Context, prefix string) error {
	if err := w.store.Delete(ctx, prefix); err != nil {
		return err
	}
	objects, err := w.storage.ListObjects(ctx, prefix)
	if err != nil {
		return dserr.NewStorageError(dserr.CodePartitionIO, w.storage.Location(prefix), "failed to list dataset", err)
	}
	removed := 0
	for _, obj := range objects {
		base := storage.Base(obj)
		if storage.Join(prefix, base) != obj || !partition.IsPartitionFile(base) {
			continue
		}
		if err := w.storage.Delete(ctx, obj); err != nil {
			return dserr.NewPartitionIOError(w.storage.Location(obj), "failed to remove stale partition", err)
		}
		removed++
	}
	if removed > 0 {
		w.logger.Debug("removed stale partitions", "location", w.storage.Location(prefix), "count", removed)
	}
	return nil
}

// prepare validates table and moves or drops its index.
func prepare(table *frame.Frame, writeIndex bool) (*frame.Frame, string, error) {
	indexName := ""
	if table != nil && writeIndex && table.Index != nil {
		indexName = table.Index.Name
		if indexName == "" {
			indexName = DefaultIndexName
		}
	}

	v := &partition.TableValidator{IndexName: indexName}
	if err := v.Validate(table); err != nil {
		return nil, "", dserr.Wrap(dserr.ErrCategoryValidation, dserr.CodeInvalidTable, "table cannot be written", err)
	}

	if indexName == "" {
		return table.DropIndex(), "", nil
	}
	out, err := table.IndexAsColumn(DefaultIndexName)
	if err != nil {
		return nil, "", dserr.Wrap(dserr.ErrCategoryValidation, dserr.CodeInvalidTable, "table cannot be written", err)
	}
	return out, indexName, nil
}
