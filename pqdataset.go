// Package pqdataset writes in-memory tables as partitioned columnar datasets
// and plans lazy, column-pruned reads of them.
//
// A dataset is a directory holding one file per partition, named
// part.000000.parquet, part.000001.parquet and so on, plus a single _metadata
// file with the shared schema, the index column and per-partition statistics.
// Planning a read loads only the metadata; partition files are decoded when
// the plan is computed.
package pqdataset

import (
	"context"
	"log/slog"

	"github.com/arkilian/pqdataset/internal/executor"
	"github.com/arkilian/pqdataset/internal/frame"
	"github.com/arkilian/pqdataset/internal/graph"
	"github.com/arkilian/pqdataset/internal/logging"
	"github.com/arkilian/pqdataset/internal/manifest"
	"github.com/arkilian/pqdataset/internal/partition"
	"github.com/arkilian/pqdataset/internal/planner"
	"github.com/arkilian/pqdataset/internal/storage"
	"github.com/arkilian/pqdataset/internal/writer"
)

// DefaultChunkRows is the partition size used when no chunk policy is given.
const DefaultChunkRows = 1_000_000

type (
	Frame       = frame.Frame
	Column      = frame.Column
	Series      = frame.Series
	Plan        = planner.Plan
	Result      = executor.Result
	Record      = manifest.Record
	ChunkPolicy = writer.ChunkPolicy
	Storage     = storage.ObjectStorage
)

// Result shapes.
const (
	ShapeFrame  = planner.ShapeFrame
	ShapeSeries = planner.ShapeSeries
)

var (
	NewFrame  = frame.New
	Int32s    = frame.Int32s
	Int64s    = frame.Int64s
	Float64s  = frame.Float64s
	Strings   = frame.Strings
	Bools     = frame.Bools
	FixedRows = writer.FixedRows
	NumChunks = writer.NumChunks
)

// Keys from every planner in the process are checked against one collision map.
var normalizer = graph.NewNormalizer()

type options struct {
	storage    storage.ObjectStorage
	logger     *slog.Logger
	columns    planner.ColumnSelection
	index      planner.IndexSpec
	policy     writer.ChunkPolicy
	codec      string
	stagingDir string
	exec       executor.Config
}

// Option configures a read or write.
type Option func(*options)

// WithColumns reads the named columns, in order, as a frame.
func WithColumns(names ...string) Option {
	return func(o *options) { o.columns = planner.Columns(names...) }
}

// WithColumn reads a single column as a series.
func WithColumn(name string) Option {
	return func(o *options) { o.columns = planner.Column(name) }
}

// WithIndex uses the named column as the row index.
func WithIndex(name string) Option {
	return func(o *options) { o.index = planner.IndexOn(name) }
}

// WithoutIndex reads with a positional index; the stored index column is an
// ordinary column.
func WithoutIndex() Option {
	return func(o *options) { o.index = planner.NoIndex() }
}

// WithChunkPolicy sets how a written table is split into partitions.
func WithChunkPolicy(p ChunkPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithCodec selects the partition file format by name: parquet or sqlite.
func WithCodec(name string) Option {
	return func(o *options) { o.codec = name }
}

// WithStorage reads and writes through st. The path argument is then an
// object prefix within st rather than a local directory.
func WithStorage(st Storage) Option {
	return func(o *options) { o.storage = st }
}

// WithLogger sets the logger. Nothing is logged by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStagingDir sets where partition files are encoded before upload.
func WithStagingDir(dir string) Option {
	return func(o *options) { o.stagingDir = dir }
}

// WithExecutorConfig sets the parallelism and download cache of Compute.
func WithExecutorConfig(cfg executor.Config) Option {
	return func(o *options) { o.exec = cfg }
}

func buildOptions(opts []Option) *options {
	o := &options{
		policy: writer.FixedRows(DefaultChunkRows),
		codec:  partition.DefaultCodecName,
		exec:   executor.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.OrDiscard(o.logger)
	return o
}

// resolve returns the storage and object prefix for path.
func (o *options) resolve(path string) (storage.ObjectStorage, string, error) {
	if o.storage != nil {
		return o.storage, path, nil
	}
	st, err := storage.NewLocalStorage(path)
	if err != nil {
		return nil, "", err
	}
	return st, "", nil
}

// WriteDataset writes table to the dataset at path, replacing any dataset
// already there. With writeIndex the table index is stored as the first
// column and becomes the dataset index.
func WriteDataset(ctx context.Context, path string, table *Frame, writeIndex bool, opts ...Option) (*Record, error) {
	o := buildOptions(opts)
	codec, err := partition.CodecByName(o.codec)
	if err != nil {
		return nil, err
	}
	st, prefix, err := o.resolve(path)
	if err != nil {
		return nil, err
	}
	store := manifest.NewStore(st, o.logger)
	return writer.NewWriter(st, store, codec, o.stagingDir, o.logger).
		Write(ctx, prefix, table, o.policy, writeIndex)
}

// PlanRead plans a lazy read of the dataset at path. Only the metadata file
// is read.
func PlanRead(ctx context.Context, path string, opts ...Option) (*Plan, error) {
	o := buildOptions(opts)
	st, prefix, err := o.resolve(path)
	if err != nil {
		return nil, err
	}
	store := manifest.NewStore(st, o.logger)
	return planner.NewPlanner(store, normalizer, o.logger).Plan(ctx, prefix, o.columns, o.index)
}

// Compute materializes plan. Options other than WithExecutorConfig and
// WithLogger are ignored.
func Compute(ctx context.Context, plan *Plan, opts ...Option) (*Result, error) {
	o := buildOptions(opts)
	e, err := executor.New(plan.Storage(), o.exec, o.logger)
	if err != nil {
		return nil, err
	}
	defer e.Close()
	return e.Compute(ctx, plan)
}

// ReadDataset plans and computes a read in one call.
func ReadDataset(ctx context.Context, path string, opts ...Option) (*Result, error) {
	plan, err := PlanRead(ctx, path, opts...)
	if err != nil {
		return nil, err
	}
	return Compute(ctx, plan, opts...)
}
