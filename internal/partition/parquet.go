package partition

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	dserr "github.com/arkilian/pqdataset/internal/errors"
	"github.com/arkilian/pqdataset/internal/frame"
	"github.com/arkilian/pqdataset/pkg/types"
)

// ParquetCodec stores each partition as a single Parquet file written through Arrow.
type ParquetCodec struct {
	mem         memory.Allocator
	compression compress.Compression
}

// NewParquetCodec creates a Parquet codec using Snappy page compression.
func NewParquetCodec() *ParquetCodec {
	return &ParquetCodec{
		mem:         memory.DefaultAllocator,
		compression: compress.Codecs.Snappy,
	}
}

func (c *ParquetCodec) Name() string      { return "parquet" }
func (c *ParquetCodec) Extension() string { return ".parquet" }

// Encode writes chunk as one row group.
func (c *ParquetCodec) Encode(ctx context.Context, chunk *frame.Frame, path string, statsColumns []string) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if chunk.Index != nil {
		return nil, fmt.Errorf("partition: parquet: chunk must not carry an index")
	}
	if len(chunk.Columns) == 0 {
		return nil, fmt.Errorf("partition: parquet: cannot encode a chunk without columns")
	}

	fields := make([]arrow.Field, len(chunk.Columns))
	for i, col := range chunk.Columns {
		dt, err := arrowType(col.Type)
		if err != nil {
			return nil, err
		}
		fields[i] = arrow.Field{Name: col.Name, Type: dt}
	}
	schema := arrow.NewSchema(fields, nil)

	rec, err := c.buildRecord(schema, chunk)
	if err != nil {
		return nil, err
	}
	defer rec.Release()

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("partition: parquet: failed to create %s: %w", path, err)
	}
	defer f.Close()

	props := parquet.NewWriterProperties(parquet.WithCompression(c.compression))
	w, err := pqarrow.NewFileWriter(schema, f, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return nil, fmt.Errorf("partition: parquet: failed to create writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return nil, fmt.Errorf("partition: parquet: failed to write record: %w", err)
	}
	// Close also closes f.
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("partition: parquet: failed to finalize file: %w", err)
	}

	stats, err := ComputeStats(chunk, statsColumns)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("partition: parquet: failed to stat file: %w", err)
	}
	return &Info{
		Path:        path,
		RowCount:    int64(chunk.NumRows()),
		SizeBytes:   fi.Size(),
		MinMaxStats: stats,
	}, nil
}

func (c *ParquetCodec) buildRecord(schema *arrow.Schema, chunk *frame.Frame) (arrow.Record, error) {
	b := array.NewRecordBuilder(c.mem, schema)
	defer b.Release()

	for i, col := range chunk.Columns {
		var err error
		switch fb := b.Field(i).(type) {
		case *array.Int32Builder:
			err = appendAll(col, fb.Append)
		case *array.Int64Builder:
			err = appendAll(col, fb.Append)
		case *array.Float64Builder:
			err = appendAll(col, fb.Append)
		case *array.StringBuilder:
			err = appendAll(col, fb.Append)
		case *array.BooleanBuilder:
			err = appendAll(col, fb.Append)
		default:
			err = fmt.Errorf("partition: parquet: no builder for column %q", col.Name)
		}
		if err != nil {
			return nil, err
		}
	}
	return b.NewRecord(), nil
}

func appendAll[T any](col *frame.Column, add func(T)) error {
	for i, v := range col.Values {
		tv, ok := v.(T)
		if !ok {
			return fmt.Errorf("partition: column %q row %d: unexpected %T", col.Name, i, v)
		}
		add(tv)
	}
	return nil
}

// Decode reads only the requested columns from the file.
func (c *ParquetCodec) Decode(ctx context.Context, path string, columns []string) (*frame.Frame, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("partition: parquet: failed to open %s: %w", path, err)
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, c.mem)
	if err != nil {
		return nil, fmt.Errorf("partition: parquet: failed to create reader: %w", err)
	}
	schema, err := fr.Schema()
	if err != nil {
		return nil, fmt.Errorf("partition: parquet: failed to read schema: %w", err)
	}

	available := make([]string, schema.NumFields())
	for i, fld := range schema.Fields() {
		available[i] = fld.Name
	}
	if columns == nil {
		columns = available
	}
	if len(columns) == 0 {
		return frame.Empty(int(rdr.NumRows())), nil
	}

	indices := make([]int, len(columns))
	for i, name := range columns {
		idx := schema.FieldIndices(name)
		if len(idx) == 0 {
			return nil, dserr.NewColumnNotFound(name, available)
		}
		indices[i] = idx[0]
	}

	if rdr.NumRowGroups() == 0 {
		cols := make([]*frame.Column, len(columns))
		for i, idx := range indices {
			dt, err := dataTypeOf(schema.Field(idx).Type)
			if err != nil {
				return nil, err
			}
			cols[i] = frame.NewColumn(columns[i], dt)
		}
		return frame.New(cols...)
	}

	rowGroups := make([]int, rdr.NumRowGroups())
	for i := range rowGroups {
		rowGroups[i] = i
	}
	tbl, err := fr.ReadRowGroups(ctx, indices, rowGroups)
	if err != nil {
		return nil, fmt.Errorf("partition: parquet: failed to read %s: %w", path, err)
	}
	defer tbl.Release()

	// The table holds the selected fields in file order.
	cols := make([]*frame.Column, len(columns))
	for i, name := range columns {
		idx := tbl.Schema().FieldIndices(name)
		if len(idx) == 0 {
			return nil, dserr.NewColumnNotFound(name, available)
		}
		col, err := columnFromChunked(name, tbl.Column(idx[0]).Data())
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	return frame.New(cols...)
}

// Stats recomputes statistics from the file contents.
func (c *ParquetCodec) Stats(ctx context.Context, path string) (map[string]MinMax, error) {
	return statsOf(ctx, c, path)
}

func columnFromChunked(name string, chunked *arrow.Chunked) (*frame.Column, error) {
	dt, err := dataTypeOf(chunked.DataType())
	if err != nil {
		return nil, fmt.Errorf("partition: column %q: %w", name, err)
	}
	values := make([]any, 0, chunked.Len())
	for _, arr := range chunked.Chunks() {
		switch a := arr.(type) {
		case *array.Int32:
			for j := 0; j < a.Len(); j++ {
				values = append(values, a.Value(j))
			}
		case *array.Int64:
			for j := 0; j < a.Len(); j++ {
				values = append(values, a.Value(j))
			}
		case *array.Float64:
			for j := 0; j < a.Len(); j++ {
				values = append(values, a.Value(j))
			}
		case *array.String:
			for j := 0; j < a.Len(); j++ {
				values = append(values, a.Value(j))
			}
		case *array.LargeString:
			for j := 0; j < a.Len(); j++ {
				values = append(values, a.Value(j))
			}
		case *array.Boolean:
			for j := 0; j < a.Len(); j++ {
				values = append(values, a.Value(j))
			}
		default:
			return nil, fmt.Errorf("partition: column %q: unsupported arrow array %T", name, arr)
		}
	}
	return frame.NewColumn(name, dt, values...), nil
}

func arrowType(t types.DataType) (arrow.DataType, error) {
	switch t {
	case types.TypeInt32:
		return arrow.PrimitiveTypes.Int32, nil
	case types.TypeInt64:
		return arrow.PrimitiveTypes.Int64, nil
	case types.TypeFloat64:
		return arrow.PrimitiveTypes.Float64, nil
	case types.TypeString:
		return arrow.BinaryTypes.String, nil
	case types.TypeBool:
		return arrow.FixedWidthTypes.Boolean, nil
	}
	return nil, fmt.Errorf("partition: unsupported column type %q", t)
}

func dataTypeOf(dt arrow.DataType) (types.DataType, error) {
	switch dt.ID() {
	case arrow.INT32:
		return types.TypeInt32, nil
	case arrow.INT64:
		return types.TypeInt64, nil
	case arrow.FLOAT64:
		return types.TypeFloat64, nil
	case arrow.STRING, arrow.LARGE_STRING:
		return types.TypeString, nil
	case arrow.BOOL:
		return types.TypeBool, nil
	}
	return "", fmt.Errorf("unsupported arrow type %s", dt)
}
