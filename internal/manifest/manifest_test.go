package manifest

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserr "github.com/arkilian/pqdataset/internal/errors"
	"github.com/arkilian/pqdataset/internal/partition"
	"github.com/arkilian/pqdataset/internal/storage"
	"github.com/arkilian/pqdataset/pkg/types"
)

func sampleRecord() *Record {
	schema := types.NewSchema(
		types.ColumnDef{Name: "myindex", Type: types.TypeInt64},
		types.ColumnDef{Name: "x", Type: types.TypeInt64},
		types.ColumnDef{Name: "y", Type: types.TypeFloat64},
		types.ColumnDef{Name: "ok", Type: types.TypeBool},
	)
	return NewRecord("parquet", schema, "myindex", []PartitionMeta{
		{
			Object:   partition.FileName(0, ".parquet"),
			RowCount: 2,
			Stats: map[string]partition.MinMax{
				"myindex": {Min: int64(10), Max: int64(20)},
				"x":       {Min: int64(2), Max: int64(6)},
				"y":       {Min: 1.0, Max: 2.0},
			},
		},
		{
			Object:   partition.FileName(1, ".parquet"),
			RowCount: 2,
			Stats: map[string]partition.MinMax{
				"myindex": {Min: int64(30), Max: int64(40)},
			},
		},
		{
			Object:   partition.FileName(2, ".parquet"),
			RowCount: 1,
			Stats: map[string]partition.MinMax{
				// beyond float64 precision
				"myindex": {Min: int64(1<<53 + 1), Max: int64(1<<53 + 1)},
			},
		},
	})
}

func TestEncodeDecode(t *testing.T) {
	rec := sampleRecord()
	data, err := Encode(rec)
	require.NoError(t, err)
	assert.Equal(t, []byte("PQDM"), data[:4])

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, rec.DatasetID, got.DatasetID)
	assert.Equal(t, rec.Schema, got.Schema)
	assert.Equal(t, "myindex", got.IndexColumn)
	assert.Equal(t, int64(5), got.TotalRows())
	assert.Equal(t, rec.Partitions[0].Stats, got.Partitions[0].Stats)
	assert.Equal(t, int64(1<<53+1), got.Partitions[2].Stats["myindex"].Min)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
}

func TestEncodeDecode_InfiniteFloatBounds(t *testing.T) {
	rec := sampleRecord()
	rec.Partitions[0].Stats["y"] = partition.MinMax{Min: math.Inf(-1), Max: math.Inf(1)}
	rec.Partitions[1].Stats["y"] = partition.MinMax{Min: -2.5, Max: math.Inf(1)}

	data, err := Encode(rec)
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, math.Inf(-1), got.Partitions[0].Stats["y"].Min)
	assert.Equal(t, math.Inf(1), got.Partitions[0].Stats["y"].Max)
	assert.Equal(t, -2.5, got.Partitions[1].Stats["y"].Min)
	assert.Equal(t, math.Inf(1), got.Partitions[1].Stats["y"].Max)
}

func TestDecodeValue_RejectsNonInfiniteStrings(t *testing.T) {
	for _, raw := range []string{`"1.5"`, `"NaN"`, `"huge"`} {
		_, err := decodeValue(types.TypeFloat64, []byte(raw))
		assert.Error(t, err, raw)
	}
	v, err := decodeValue(types.TypeFloat64, []byte(`"-Inf"`))
	require.NoError(t, err)
	assert.Equal(t, math.Inf(-1), v)
}

func TestDecode_Corrupt(t *testing.T) {
	good, err := Encode(sampleRecord())
	require.NoError(t, err)

	flip := func(i int) []byte {
		b := append([]byte(nil), good...)
		b[i] ^= 0xff
		return b
	}
	badVersion := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(badVersion[4:8], 99)

	tests := map[string][]byte{
		"empty":        nil,
		"short":        good[:10],
		"magic":        flip(0),
		"version":      badVersion,
		"checksum":     flip(9),
		"payload":      flip(len(good) - 1),
		"truncated":    good[:len(good)-3],
		"not a record": []byte("PQDMxxxxxxxxxxxx"),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(data)
			assert.Error(t, err)
		})
	}
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Record)
	}{
		{"no partitions", func(r *Record) { r.Partitions = nil }},
		{"unknown index column", func(r *Record) { r.IndexColumn = "nope" }},
		{"empty codec", func(r *Record) { r.Codec = "" }},
		{"out of order", func(r *Record) { r.Partitions[0].Object, r.Partitions[1].Object = r.Partitions[1].Object, r.Partitions[0].Object }},
		{"negative rows", func(r *Record) { r.Partitions[1].RowCount = -1 }},
		{"stats unknown column", func(r *Record) {
			r.Partitions[1].Stats["z"] = partition.MinMax{Min: int64(1), Max: int64(2)}
		}},
		{"stats on bool", func(r *Record) {
			r.Partitions[1].Stats["ok"] = partition.MinMax{Min: false, Max: true}
		}},
		{"stats wrong type", func(r *Record) {
			r.Partitions[1].Stats["myindex"] = partition.MinMax{Min: "a", Max: "b"}
		}},
		{"min above max", func(r *Record) {
			r.Partitions[1].Stats["myindex"] = partition.MinMax{Min: int64(50), Max: int64(40)}
		}},
		{"duplicate schema column", func(r *Record) {
			r.Schema.Columns = append(r.Schema.Columns, r.Schema.Columns[1])
		}},
	}

	require.NoError(t, sampleRecord().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := sampleRecord()
			tt.mutate(rec)
			assert.Error(t, rec.Validate())
		})
	}
}

func newStore(t *testing.T) (*Store, *storage.LocalStorage) {
	t.Helper()
	st, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewStore(st, nil), st
}

func TestStore_WriteRead(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	rec := sampleRecord()
	require.NoError(t, store.Write(ctx, "ds", rec))

	ok, err := store.Exists(ctx, "ds")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Read(ctx, "ds")
	require.NoError(t, err)
	assert.Equal(t, rec.DatasetID, got.DatasetID)
	assert.Equal(t, rec.Objects(), got.Objects())
}

func TestStore_ReadMissing(t *testing.T) {
	ctx := context.Background()
	store, st := newStore(t)

	// Partition files without metadata still read as absent.
	require.NoError(t, st.Put(ctx, "ds/part.000000.parquet", []byte("data")))

	_, err := store.Read(ctx, "ds")
	require.Error(t, err)
	assert.ErrorIs(t, err, dserr.ErrDatasetNotFound)
	assert.Contains(t, dserr.FileOf(err), "_metadata")
}

func TestStore_ReadCorrupt(t *testing.T) {
	ctx := context.Background()
	store, st := newStore(t)
	require.NoError(t, st.Put(ctx, MetadataPath("ds"), []byte("definitely not metadata")))

	_, err := store.Read(ctx, "ds")
	assert.ErrorIs(t, err, dserr.ErrCorruptMetadata)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	require.NoError(t, store.Write(ctx, "ds", sampleRecord()))
	require.NoError(t, store.Delete(ctx, "ds"))
	require.NoError(t, store.Delete(ctx, "ds"))

	_, err := store.Read(ctx, "ds")
	assert.ErrorIs(t, err, dserr.ErrDatasetNotFound)
}

func TestStore_WriteRejectsInvalid(t *testing.T) {
	store, _ := newStore(t)
	rec := sampleRecord()
	rec.Partitions = nil
	assert.Error(t, store.Write(context.Background(), "ds", rec))
}
