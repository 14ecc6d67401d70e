// Package partition encodes and decodes single partition files and tracks the
// per-column statistics recorded for them.
package partition

import (
	"context"
	"fmt"
	"sort"

	dserr "github.com/arkilian/pqdataset/internal/errors"
	"github.com/arkilian/pqdataset/internal/frame"
)

// DefaultCodecName is the codec used when none is configured.
const DefaultCodecName = "parquet"

// Codec encodes one table chunk to one file and decodes it back.
// Implementations must be safe for concurrent use on distinct files.
type Codec interface {
	// Name is the stable identifier recorded in dataset metadata
	Name() string

	// Extension is the file suffix including the dot, e.g. ".parquet"
	Extension() string

	// Encode writes chunk to path and returns row count, size and min/max
	// statistics for statsColumns. The chunk must not carry an index.
	Encode(ctx context.Context, chunk *frame.Frame, path string, statsColumns []string) (*Info, error)

	// Decode reads the named columns in the given order. A nil slice reads
	// every column; an empty slice reads only the row count.
	Decode(ctx context.Context, path string, columns []string) (*frame.Frame, error)

	// Stats returns min/max statistics for every sortable column in the file.
	Stats(ctx context.Context, path string) (map[string]MinMax, error)
}

// Info contains metadata about an encoded partition file.
type Info struct {
	Path        string
	RowCount    int64
	SizeBytes   int64
	MinMaxStats map[string]MinMax
}

var registry = map[string]func() Codec{
	"parquet": func() Codec { return NewParquetCodec() },
	"sqlite":  func() Codec { return NewSQLiteCodec() },
}

// CodecByName returns a built-in codec by its stable name.
func CodecByName(name string) (Codec, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, dserr.NewValidationError(dserr.CodeUnknownCodec,
			fmt.Sprintf("unknown partition codec %q (available: %v)", name, CodecNames()))
	}
	return ctor(), nil
}

// CodecNames lists the registered codec names in sorted order.
func CodecNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// statsOf decodes every column of a file and computes min/max for the sortable ones.
func statsOf(ctx context.Context, c Codec, path string) (map[string]MinMax, error) {
	f, err := c.Decode(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	return ComputeStats(f, SortableColumns(f))
}

// SortableColumns returns the names of the frame's columns that get min/max statistics.
func SortableColumns(f *frame.Frame) []string {
	var names []string
	for _, c := range f.Columns {
		if c.Type.Sortable() {
			names = append(names, c.Name)
		}
	}
	return names
}
