package executor

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserr "github.com/arkilian/pqdataset/internal/errors"
	"github.com/arkilian/pqdataset/internal/frame"
	"github.com/arkilian/pqdataset/internal/graph"
	"github.com/arkilian/pqdataset/internal/manifest"
	"github.com/arkilian/pqdataset/internal/partition"
	"github.com/arkilian/pqdataset/internal/planner"
	"github.com/arkilian/pqdataset/internal/storage"
	"github.com/arkilian/pqdataset/internal/writer"
)

// remoteStorage hides LocalPath so the executor has to download.
type remoteStorage struct {
	storage.ObjectStorage
	downloads atomic.Int64
}

func (r *remoteStorage) Download(ctx context.Context, objectPath, localPath string) error {
	r.downloads.Add(1)
	return r.ObjectStorage.Download(ctx, objectPath, localPath)
}

func exampleTable() *frame.Frame {
	return frame.MustNew(
		frame.Int64s("x", 6, 2, 3, 4, 5),
		frame.Float64s("y", 1, 2, 1, 2, 1),
	).MustWithIndex(frame.Int64s("myindex", 10, 20, 30, 40, 50))
}

type fixture struct {
	local *storage.LocalStorage
	store *manifest.Store
	plans *planner.Planner
}

func newFixture(t *testing.T, codec string) *fixture {
	t.Helper()
	st, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	store := manifest.NewStore(st, nil)
	c, err := partition.CodecByName(codec)
	require.NoError(t, err)
	_, err = writer.NewWriter(st, store, c, t.TempDir(), nil).
		Write(context.Background(), "ds", exampleTable(), writer.NumChunks(3), true)
	require.NoError(t, err)
	return &fixture{local: st, store: store, plans: planner.NewPlanner(store, nil, nil)}
}

func (f *fixture) plan(t *testing.T, sel planner.ColumnSelection, spec planner.IndexSpec) *planner.Plan {
	t.Helper()
	p, err := f.plans.Plan(context.Background(), "ds", sel, spec)
	require.NoError(t, err)
	return p
}

func TestCompute_Local(t *testing.T) {
	for _, codec := range partition.CodecNames() {
		t.Run(codec, func(t *testing.T) {
			f := newFixture(t, codec)
			e, err := New(f.local, DefaultConfig(), nil)
			require.NoError(t, err)
			defer e.Close()

			res, err := e.Compute(context.Background(), f.plan(t, planner.AllColumns(), planner.AutoIndex()))
			require.NoError(t, err)
			assert.Equal(t, planner.ShapeFrame, res.Shape)
			assert.True(t, exampleTable().Equal(res.Frame), "got %+v", res.Frame)
		})
	}
}

func TestCompute_Series(t *testing.T) {
	f := newFixture(t, partition.DefaultCodecName)
	e, err := New(f.local, DefaultConfig(), nil)
	require.NoError(t, err)

	res, err := e.Compute(context.Background(), f.plan(t, planner.Column("x"), planner.IndexOn("myindex")))
	require.NoError(t, err)
	s, err := res.Series()
	require.NoError(t, err)
	want, err := exampleTable().Series("x")
	require.NoError(t, err)
	assert.True(t, want.Equal(s))

	frameRes, err := e.Compute(context.Background(), f.plan(t, planner.Columns("x"), planner.AutoIndex()))
	require.NoError(t, err)
	_, err = frameRes.Series()
	assert.Equal(t, dserr.CodeInvalidRequest, dserr.GetCode(err))
}

func TestCompute_NoColumns(t *testing.T) {
	f := newFixture(t, partition.DefaultCodecName)
	e, err := New(f.local, DefaultConfig(), nil)
	require.NoError(t, err)

	res, err := e.Compute(context.Background(), f.plan(t, planner.Columns(), planner.NoIndex()))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Frame.NumColumns())
	assert.Equal(t, 5, res.Frame.NumRows())
	assert.Nil(t, res.Frame.Index)
}

func TestCompute_RemoteCachesDownloads(t *testing.T) {
	f := newFixture(t, partition.DefaultCodecName)
	remote := &remoteStorage{ObjectStorage: f.local}
	cfg := Config{Concurrency: 2, DownloadDir: t.TempDir(), MaxCacheBytes: 1 << 20}
	e, err := New(remote, cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	p := f.plan(t, planner.AllColumns(), planner.AutoIndex())
	res, err := e.Compute(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, exampleTable().Equal(res.Frame))
	assert.Equal(t, int64(3), remote.downloads.Load())
	assert.Equal(t, 3, e.cache.Len())

	// A projection of the same write reuses the downloaded files.
	_, err = e.Compute(context.Background(), f.plan(t, planner.Column("y"), planner.AutoIndex()))
	require.NoError(t, err)
	assert.Equal(t, int64(3), remote.downloads.Load())
}

func TestCompute_RemoteWithoutCacheRemovesDownloads(t *testing.T) {
	f := newFixture(t, partition.DefaultCodecName)
	remote := &remoteStorage{ObjectStorage: f.local}
	dir := t.TempDir()
	e, err := New(remote, Config{Concurrency: 1, DownloadDir: dir}, nil)
	require.NoError(t, err)

	res, err := e.Compute(context.Background(), f.plan(t, planner.AllColumns(), planner.AutoIndex()))
	require.NoError(t, err)
	assert.Equal(t, 5, res.Frame.NumRows())

	var files []string
	require.NoError(t, filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files = append(files, path)
		}
		return err
	}))
	assert.Empty(t, files)
}

func TestCompute_CorruptPartitionNamesFile(t *testing.T) {
	f := newFixture(t, partition.DefaultCodecName)
	object := storage.Join("ds", partition.FileName(1, ".parquet"))
	require.NoError(t, f.local.Put(context.Background(), object, []byte("not parquet")))

	e, err := New(f.local, DefaultConfig(), nil)
	require.NoError(t, err)
	_, err = e.Compute(context.Background(), f.plan(t, planner.AllColumns(), planner.AutoIndex()))
	require.Error(t, err)
	assert.Equal(t, dserr.CodePartitionIO, dserr.GetCode(err))
	assert.Equal(t, f.local.Location(object), dserr.FileOf(err))
}

func TestCompute_RemoteSizeMismatch(t *testing.T) {
	f := newFixture(t, partition.DefaultCodecName)
	object := storage.Join("ds", partition.FileName(1, ".parquet"))
	require.NoError(t, f.local.Put(context.Background(), object, []byte("not parquet")))

	dir := t.TempDir()
	e, err := New(&remoteStorage{ObjectStorage: f.local}, Config{Concurrency: 1, DownloadDir: dir, MaxCacheBytes: 1 << 20}, nil)
	require.NoError(t, err)
	_, err = e.Compute(context.Background(), f.plan(t, planner.AllColumns(), planner.AutoIndex()))
	require.Error(t, err)
	assert.Equal(t, dserr.CodePartitionIO, dserr.GetCode(err))
	assert.Equal(t, f.local.Location(object), dserr.FileOf(err))
	assert.Contains(t, err.Error(), "metadata records")
}

func TestCompute_MissingPartition(t *testing.T) {
	f := newFixture(t, partition.DefaultCodecName)
	object := storage.Join("ds", partition.FileName(2, ".parquet"))
	require.NoError(t, f.local.Delete(context.Background(), object))

	e, err := New(&remoteStorage{ObjectStorage: f.local}, Config{DownloadDir: t.TempDir(), MaxCacheBytes: 1 << 20}, nil)
	require.NoError(t, err)
	_, err = e.Compute(context.Background(), f.plan(t, planner.AllColumns(), planner.AutoIndex()))
	require.Error(t, err)
	assert.Equal(t, dserr.CodePartitionIO, dserr.GetCode(err))
	assert.Equal(t, f.local.Location(object), dserr.FileOf(err))
}

func TestComputePartition(t *testing.T) {
	f := newFixture(t, partition.DefaultCodecName)
	e, err := New(f.local, DefaultConfig(), nil)
	require.NoError(t, err)
	p := f.plan(t, planner.AllColumns(), planner.AutoIndex())

	part, err := e.ComputePartition(context.Background(), p, 1)
	require.NoError(t, err)
	assert.True(t, exampleTable().Slice(2, 4).Equal(part))

	_, err = e.ComputePartition(context.Background(), p, 3)
	assert.Equal(t, dserr.CodeInvalidRequest, dserr.GetCode(err))
}

func TestGet_CulledGraph(t *testing.T) {
	f := newFixture(t, partition.DefaultCodecName)
	e, err := New(f.local, DefaultConfig(), nil)
	require.NoError(t, err)
	p := f.plan(t, planner.Columns("x"), planner.AutoIndex())

	keys := []graph.Key{p.Keys[2], p.Keys[0]}
	g, err := graph.Cull(p.Graph, keys)
	require.NoError(t, err)
	parts, err := e.Get(context.Background(), g, keys)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, []any{int64(5)}, parts[0].Columns[0].Values)
	assert.Equal(t, []any{int64(6), int64(2)}, parts[1].Columns[0].Values)

	_, err = e.Get(context.Background(), g, []graph.Key{p.Keys[1]})
	assert.Equal(t, dserr.CodeKeyNotFound, dserr.GetCode(err))
}
