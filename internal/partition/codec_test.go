package partition

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserr "github.com/arkilian/pqdataset/internal/errors"
	"github.com/arkilian/pqdataset/internal/frame"
)

func allCodecs(t *testing.T) []Codec {
	t.Helper()
	var codecs []Codec
	for _, name := range CodecNames() {
		c, err := CodecByName(name)
		require.NoError(t, err)
		codecs = append(codecs, c)
	}
	return codecs
}

func mixedChunk() *frame.Frame {
	return frame.MustNew(
		frame.Int32s("i32", 3, 1, 2),
		frame.Int64s("i64", 30, 10, 20),
		frame.Float64s("f", 0.25, -1.5, 8),
		frame.Strings("name", "hello", "you", "people"),
		frame.Bools("ok", true, false, true),
	)
}

func TestCodecs_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, codec := range allCodecs(t) {
		t.Run(codec.Name(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName(0, codec.Extension()))
			chunk := mixedChunk()

			info, err := codec.Encode(ctx, chunk, path, SortableColumns(chunk))
			require.NoError(t, err)
			assert.Equal(t, int64(3), info.RowCount)
			assert.Greater(t, info.SizeBytes, int64(0))
			assert.Equal(t, MinMax{Min: int32(1), Max: int32(3)}, info.MinMaxStats["i32"])
			assert.Equal(t, MinMax{Min: "hello", Max: "you"}, info.MinMaxStats["name"])
			assert.NotContains(t, info.MinMaxStats, "ok")

			all, err := codec.Decode(ctx, path, nil)
			require.NoError(t, err)
			assert.True(t, chunk.Equal(all), "decoded frame differs")

			stats, err := codec.Stats(ctx, path)
			require.NoError(t, err)
			assert.Equal(t, info.MinMaxStats, stats)
		})
	}
}

func TestCodecs_NonFiniteFloats(t *testing.T) {
	ctx := context.Background()
	for _, codec := range allCodecs(t) {
		t.Run(codec.Name(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName(0, codec.Extension()))
			chunk := frame.MustNew(
				frame.Int64s("a", 1, 2, 3, 4),
				frame.Float64s("f", 1.5, math.NaN(), math.Inf(1), math.Inf(-1)),
			)

			info, err := codec.Encode(ctx, chunk, path, SortableColumns(chunk))
			require.NoError(t, err)
			assert.Equal(t, MinMax{Min: math.Inf(-1), Max: math.Inf(1)}, info.MinMaxStats["f"])

			got, err := codec.Decode(ctx, path, nil)
			require.NoError(t, err)
			assert.True(t, chunk.Equal(got), "decoded frame differs: %v", got.Columns[1].Values)
			assert.True(t, math.IsNaN(got.Columns[1].Values[1].(float64)))
		})
	}
}

func TestCodecs_ColumnPruning(t *testing.T) {
	ctx := context.Background()
	for _, codec := range allCodecs(t) {
		t.Run(codec.Name(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName(1, codec.Extension()))
			_, err := codec.Encode(ctx, mixedChunk(), path, nil)
			require.NoError(t, err)

			got, err := codec.Decode(ctx, path, []string{"name", "i64"})
			require.NoError(t, err)
			assert.Equal(t, []string{"name", "i64"}, got.Names())
			assert.Equal(t, []any{"hello", "you", "people"}, got.Columns[0].Values)
			assert.Equal(t, []any{int64(30), int64(10), int64(20)}, got.Columns[1].Values)

			none, err := codec.Decode(ctx, path, []string{})
			require.NoError(t, err)
			assert.Equal(t, 0, none.NumColumns())
			assert.Equal(t, 3, none.NumRows())

			_, err = codec.Decode(ctx, path, []string{"missing"})
			assert.ErrorIs(t, err, dserr.ErrColumnNotFound)
		})
	}
}

func TestCodecs_EmptyChunk(t *testing.T) {
	ctx := context.Background()
	for _, codec := range allCodecs(t) {
		t.Run(codec.Name(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName(0, codec.Extension()))
			chunk := frame.MustNew(frame.Int64s("x"), frame.Strings("s"))

			info, err := codec.Encode(ctx, chunk, path, []string{"x"})
			require.NoError(t, err)
			assert.Equal(t, int64(0), info.RowCount)
			assert.Empty(t, info.MinMaxStats)

			got, err := codec.Decode(ctx, path, nil)
			require.NoError(t, err)
			assert.Equal(t, 0, got.NumRows())
			assert.Equal(t, []string{"x", "s"}, got.Names())
		})
	}
}

func TestCodecs_RejectIndexedChunk(t *testing.T) {
	ctx := context.Background()
	chunk := frame.MustNew(frame.Int64s("x", 1)).MustWithIndex(frame.Int64s("i", 1))
	for _, codec := range allCodecs(t) {
		_, err := codec.Encode(ctx, chunk, filepath.Join(t.TempDir(), "p"), nil)
		assert.Error(t, err, codec.Name())
	}
}

func TestCodecs_MissingFile(t *testing.T) {
	ctx := context.Background()
	for _, codec := range allCodecs(t) {
		_, err := codec.Decode(ctx, filepath.Join(t.TempDir(), "absent"+codec.Extension()), nil)
		assert.Error(t, err, codec.Name())
	}
}

func TestSQLiteCodec_OverwritesExistingFile(t *testing.T) {
	ctx := context.Background()
	codec := NewSQLiteCodec()
	path := filepath.Join(t.TempDir(), "p.sqlite")
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0644))

	_, err := codec.Encode(ctx, frame.MustNew(frame.Strings(`we"ird`, "a")), path, nil)
	require.NoError(t, err)

	got, err := codec.Decode(ctx, path, []string{`we"ird`})
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, got.Columns[0].Values)
}

func TestCodecByName_Unknown(t *testing.T) {
	_, err := CodecByName("orc")
	require.Error(t, err)
	assert.Equal(t, dserr.CodeUnknownCodec, dserr.GetCode(err))
}
