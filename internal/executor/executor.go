// Package executor materializes read plans: it fetches partition files,
// decodes the selected columns and concatenates the results in partition order.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	dserr "github.com/arkilian/pqdataset/internal/errors"
	"github.com/arkilian/pqdataset/internal/frame"
	"github.com/arkilian/pqdataset/internal/graph"
	"github.com/arkilian/pqdataset/internal/logging"
	"github.com/arkilian/pqdataset/internal/partition"
	"github.com/arkilian/pqdataset/internal/planner"
	"github.com/arkilian/pqdataset/internal/storage"
)

// DefaultCacheBytes bounds the download cache when no limit is configured.
const DefaultCacheBytes = 10 * 1024 * 1024 * 1024 // 10 GB

// Config holds executor configuration.
type Config struct {
	// Concurrency is the number of partitions decoded in parallel (default: 8)
	Concurrency int

	// DownloadDir receives partition files fetched from remote storage
	DownloadDir string

	// MaxCacheBytes bounds the downloaded files kept for reuse.
	// Zero disables caching and files are removed after decoding.
	MaxCacheBytes int64
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:   8,
		DownloadDir:   filepath.Join(os.TempDir(), "pqds-partitions"),
		MaxCacheBytes: 1024 * 1024 * 1024, // 1 GB
	}
}

// Result is a computed plan.
type Result struct {
	Shape planner.Shape
	Frame *frame.Frame
}

// Series returns the single column of a series-shaped result.
func (r *Result) Series() (*frame.Series, error) {
	if r.Shape != planner.ShapeSeries || len(r.Frame.Columns) != 1 {
		return nil, dserr.NewValidationError(dserr.CodeInvalidRequest, "result is not a series")
	}
	return r.Frame.Series(r.Frame.Columns[0].Name)
}

// Executor runs read tasks against object storage.
type Executor struct {
	storage     storage.ObjectStorage
	concurrency int
	downloadDir string
	cache       *DownloadCache
	downloads   *downloader
	logger      *slog.Logger
}

// New creates an executor. Storage that exposes local paths is decoded in
// place and nothing is downloaded.
func New(st storage.ObjectStorage, cfg Config, logger *slog.Logger) (*Executor, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = DefaultConfig().DownloadDir
	}

	e := &Executor{
		storage:     st,
		concurrency: cfg.Concurrency,
		downloadDir: cfg.DownloadDir,
		logger:      logging.OrDiscard(logger),
	}
	if _, local := st.(storage.LocalPather); !local {
		if err := os.MkdirAll(cfg.DownloadDir, 0755); err != nil {
			return nil, fmt.Errorf("executor: failed to create download directory: %w", err)
		}
		e.downloads = newDownloader(st, cfg.DownloadDir, cfg.Concurrency)
		if cfg.MaxCacheBytes > 0 {
			e.cache = NewDownloadCache(cfg.MaxCacheBytes)
		}
	}
	return e, nil
}

// Compute executes every task of the plan and concatenates the partitions in order.
func (e *Executor) Compute(ctx context.Context, plan *planner.Plan) (*Result, error) {
	start := time.Now()

	if err := e.prefetch(ctx, plan); err != nil {
		return nil, err
	}
	parts, err := e.Get(ctx, plan.Graph, plan.Keys)
	if err != nil {
		return nil, err
	}
	out, err := frame.Concat(parts...)
	if err != nil {
		return nil, dserr.NewInternalError("failed to concatenate partitions of "+plan.Location, err)
	}

	e.logger.Debug("plan computed",
		"location", plan.Location,
		"name", plan.Name,
		"partitions", len(parts),
		"rows", out.NumRows(),
		"duration", time.Since(start))
	return &Result{Shape: plan.Shape, Frame: out}, nil
}

// ComputePartition executes the task of partition i alone.
func (e *Executor) ComputePartition(ctx context.Context, plan *planner.Plan, i int) (*frame.Frame, error) {
	if i < 0 || i >= plan.NPartitions() {
		return nil, dserr.NewValidationError(dserr.CodeInvalidRequest,
			fmt.Sprintf("partition %d out of range [0, %d)", i, plan.NPartitions()))
	}
	return e.RunTask(ctx, plan.Graph[plan.Keys[i]])
}

// Get computes keys of g, at most Concurrency at a time. Results are
// returned in the order of keys.
func (e *Executor) Get(ctx context.Context, g graph.Graph, keys []graph.Key) ([]*frame.Frame, error) {
	tasks := make([]graph.Task, len(keys))
	for i, k := range keys {
		t, ok := g[k]
		if !ok {
			return nil, dserr.NewPlanError(dserr.CodeKeyNotFound, fmt.Sprintf("key %s is not in the graph", k))
		}
		tasks[i] = t
	}

	out := make([]*frame.Frame, len(keys))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.concurrency)
	for i, t := range tasks {
		eg.Go(func() error {
			f, err := e.RunTask(ctx, t)
			if err != nil {
				return err
			}
			out[i] = f
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// RunTask executes a single task.
func (e *Executor) RunTask(ctx context.Context, task graph.Task) (*frame.Frame, error) {
	switch t := task.(type) {
	case *graph.ReadPartition:
		return e.readPartition(ctx, t)
	default:
		return nil, dserr.NewInternalError(fmt.Sprintf("unsupported task %T", task), nil)
	}
}

func (e *Executor) readPartition(ctx context.Context, t *graph.ReadPartition) (*frame.Frame, error) {
	location := e.storage.Location(t.Object)

	codec, err := partition.CodecByName(t.Codec)
	if err != nil {
		return nil, err
	}
	localPath, release, err := e.fetch(ctx, t)
	if err != nil {
		return nil, dserr.NewPartitionIOError(location, "failed to fetch partition", err)
	}
	defer release()

	f, err := codec.Decode(ctx, localPath, t.DecodeColumns())
	if err != nil {
		var de *dserr.DatasetError
		if errors.As(err, &de) && de.Code == dserr.CodeColumnNotFound {
			return nil, de.WithDetails(map[string]interface{}{"file": location, "column": de.Details["column"]})
		}
		return nil, dserr.NewPartitionIOError(location, fmt.Sprintf("failed to decode partition %d", t.Partition), err)
	}
	if t.Index != "" {
		if f, err = f.SetIndex(t.Index); err != nil {
			return nil, dserr.NewPartitionIOError(location, "failed to set index", err)
		}
	}
	return f, nil
}

// fetch returns a local path for the task's file. The release func removes
// an uncached download.
func (e *Executor) fetch(ctx context.Context, t *graph.ReadPartition) (string, func(), error) {
	noop := func() {}
	if lp, ok := e.storage.(storage.LocalPather); ok {
		return lp.LocalPath(t.Object), noop, nil
	}
	if e.cache != nil {
		if p := e.cache.Get(t.Dataset, t.Object); p != "" {
			return p, noop, nil
		}
	}

	p, _, err := e.downloads.fetch(ctx, fileOf(t))
	if err != nil {
		return "", noop, err
	}
	if e.cache != nil {
		e.cache.Put(t.Dataset, t.Object, p)
		return p, noop, nil
	}
	return p, func() { os.Remove(p) }, nil
}

// prefetch downloads the plan's partitions ahead of decoding, in partition
// order.
func (e *Executor) prefetch(ctx context.Context, plan *planner.Plan) error {
	if _, local := e.storage.(storage.LocalPather); local || e.cache == nil {
		return nil
	}

	var files []partitionFile
	for i := range plan.Keys {
		t := plan.Task(i)
		if e.cache.Get(t.Dataset, t.Object) == "" {
			files = append(files, fileOf(t))
		}
	}
	if len(files) == 0 {
		return nil
	}

	start := time.Now()
	paths, stats, err := e.downloads.fetchAll(ctx, files)
	if err != nil {
		return err
	}
	for i, f := range files {
		e.cache.Put(f.dataset, f.object, paths[i])
	}

	e.logger.Debug("partitions prefetched",
		"location", plan.Location,
		"downloads", stats.downloads,
		"reused", stats.reused,
		"duration", time.Since(start))
	return nil
}

// Close releases cached downloads.
func (e *Executor) Close() error {
	if e.cache != nil {
		e.cache.Clear()
	}
	return nil
}
