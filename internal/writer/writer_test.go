package writer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserr "github.com/arkilian/pqdataset/internal/errors"
	"github.com/arkilian/pqdataset/internal/frame"
	"github.com/arkilian/pqdataset/internal/logging"
	"github.com/arkilian/pqdataset/internal/manifest"
	"github.com/arkilian/pqdataset/internal/partition"
	"github.com/arkilian/pqdataset/internal/storage"
)

func exampleTable() *frame.Frame {
	return frame.MustNew(
		frame.Int64s("x", 6, 2, 3, 4, 5),
		frame.Float64s("y", 1, 2, 1, 2, 1),
	).MustWithIndex(frame.Int64s("myindex", 10, 20, 30, 40, 50))
}

// failingCodec fails to encode the partition with the given sequence number.
type failingCodec struct {
	partition.Codec
	failAt int
	calls  int
}

func (c *failingCodec) Encode(ctx context.Context, chunk *frame.Frame, path string, statsColumns []string) (*partition.Info, error) {
	defer func() { c.calls++ }()
	if c.calls == c.failAt {
		return nil, errors.New("disk full")
	}
	return c.Codec.Encode(ctx, chunk, path, statsColumns)
}

type fixture struct {
	dir    string
	st     *storage.LocalStorage
	store  *manifest.Store
	logs   *bytes.Buffer
	logger *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	st, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	logs := &bytes.Buffer{}
	logger := logging.New(logs, slog.LevelDebug, logging.FormatText)
	return &fixture{dir: dir, st: st, store: manifest.NewStore(st, logger), logs: logs, logger: logger}
}

func (f *fixture) writer(t *testing.T, codec partition.Codec) *Writer {
	return NewWriter(f.st, f.store, codec, filepath.Join(t.TempDir(), "staging"), f.logger)
}

func (f *fixture) files(t *testing.T, prefix string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(f.dir, prefix))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestWrite_Layout(t *testing.T) {
	for _, name := range partition.CodecNames() {
		t.Run(name, func(t *testing.T) {
			codec, err := partition.CodecByName(name)
			require.NoError(t, err)
			f := newFixture(t)

			rec, err := f.writer(t, codec).Write(context.Background(), "ds", exampleTable(), NumChunks(3), true)
			require.NoError(t, err)

			ext := codec.Extension()
			assert.Equal(t, []string{
				manifest.MetadataFile,
				partition.FileName(0, ext),
				partition.FileName(1, ext),
				partition.FileName(2, ext),
			}, f.files(t, "ds"))

			assert.Equal(t, name, rec.Codec)
			assert.Equal(t, "myindex", rec.IndexColumn)
			assert.Equal(t, []string{"myindex", "x", "y"}, rec.Schema.Names())
			assert.Equal(t, int64(5), rec.TotalRows())
			require.Len(t, rec.Partitions, 3)
			assert.Equal(t, int64(2), rec.Partitions[0].RowCount)
			assert.Equal(t, int64(1), rec.Partitions[2].RowCount)
			assert.Equal(t, partition.MinMax{Min: int64(30), Max: int64(40)}, rec.Partitions[1].Stats["myindex"])

			read, err := f.store.Read(context.Background(), "ds")
			require.NoError(t, err)
			assert.Equal(t, rec.DatasetID, read.DatasetID)
			assert.Equal(t, rec.Partitions, read.Partitions)
		})
	}
}

func TestWrite_WithoutIndex(t *testing.T) {
	f := newFixture(t)
	rec, err := f.writer(t, partition.NewParquetCodec()).Write(context.Background(), "ds", exampleTable(), FixedRows(500), false)
	require.NoError(t, err)

	assert.Empty(t, rec.IndexColumn)
	assert.Equal(t, []string{"x", "y"}, rec.Schema.Names())
	assert.Len(t, rec.Partitions, 1)
}

func TestWrite_UnnamedIndex(t *testing.T) {
	f := newFixture(t)
	table := frame.MustNew(frame.Strings("s", "a", "b")).MustWithIndex(frame.Int32s("", 1, 2))
	rec, err := f.writer(t, partition.NewParquetCodec()).Write(context.Background(), "ds", table, FixedRows(1), true)
	require.NoError(t, err)
	assert.Equal(t, DefaultIndexName, rec.IndexColumn)
	assert.Equal(t, []string{DefaultIndexName, "s"}, rec.Schema.Names())
}

func TestWrite_EmptyTable(t *testing.T) {
	f := newFixture(t)
	table := frame.MustNew(frame.Int64s("x"), frame.Strings("s"))
	rec, err := f.writer(t, partition.NewParquetCodec()).Write(context.Background(), "ds", table, NumChunks(4), false)
	require.NoError(t, err)
	require.Len(t, rec.Partitions, 1)
	assert.Equal(t, int64(0), rec.Partitions[0].RowCount)
	assert.Empty(t, rec.Partitions[0].Stats)
}

func TestWrite_FailureLeavesNoMetadata(t *testing.T) {
	f := newFixture(t)
	codec := &failingCodec{Codec: partition.NewParquetCodec(), failAt: 1}

	_, err := f.writer(t, codec).Write(context.Background(), "ds", exampleTable(), NumChunks(3), true)
	require.Error(t, err)
	assert.Equal(t, dserr.CodePartitionIO, dserr.GetCode(err))
	assert.Contains(t, dserr.FileOf(err), partition.FileName(1, ".parquet"))

	exists, err := f.store.Exists(context.Background(), "ds")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWrite_Overwrite(t *testing.T) {
	f := newFixture(t)
	w := f.writer(t, partition.NewParquetCodec())
	ctx := context.Background()

	first, err := w.Write(ctx, "ds", exampleTable(), FixedRows(1), true)
	require.NoError(t, err)
	require.Len(t, first.Partitions, 5)

	// Unrelated files survive an overwrite.
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "ds", "notes.txt"), []byte("keep"), 0644))

	second, err := w.Write(ctx, "ds", exampleTable(), NumChunks(2), true)
	require.NoError(t, err)
	require.Len(t, second.Partitions, 2)
	assert.NotEqual(t, first.DatasetID, second.DatasetID)

	assert.Equal(t, []string{
		manifest.MetadataFile,
		"notes.txt",
		partition.FileName(0, ".parquet"),
		partition.FileName(1, ".parquet"),
	}, f.files(t, "ds"))
	assert.Contains(t, f.logs.String(), "removed stale partitions")
}

func TestWrite_OverwriteAfterFailureRemovesPartial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.writer(t, &failingCodec{Codec: partition.NewParquetCodec(), failAt: 2}).
		Write(ctx, "ds", exampleTable(), FixedRows(1), true)
	require.Error(t, err)
	assert.Len(t, f.files(t, "ds"), 2)

	_, err = f.writer(t, partition.NewParquetCodec()).Write(ctx, "ds", exampleTable(), NumChunks(1), true)
	require.NoError(t, err)
	assert.Equal(t, []string{manifest.MetadataFile, partition.FileName(0, ".parquet")}, f.files(t, "ds"))
}

func TestWrite_InvalidInput(t *testing.T) {
	f := newFixture(t)
	w := f.writer(t, partition.NewParquetCodec())
	ctx := context.Background()

	_, err := w.Write(ctx, "ds", exampleTable(), FixedRows(0), true)
	assert.Equal(t, dserr.CodeInvalidChunkPolicy, dserr.GetCode(err))

	_, err = w.Write(ctx, "ds", nil, FixedRows(1), true)
	assert.Equal(t, dserr.CodeInvalidTable, dserr.GetCode(err))

	clash := frame.MustNew(frame.Int64s("myindex", 1, 2)).MustWithIndex(frame.Int64s("myindex", 1, 2))
	_, err = w.Write(ctx, "ds", clash, FixedRows(1), true)
	assert.Equal(t, dserr.CodeInvalidTable, dserr.GetCode(err))

	// Nothing was touched.
	_, statErr := os.Stat(filepath.Join(f.dir, "ds"))
	assert.True(t, os.IsNotExist(statErr))
}
