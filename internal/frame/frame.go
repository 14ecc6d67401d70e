// Package frame provides the in-memory table the writer partitions and the
// executor materializes. It carries an optional named row index next to the
// ordinary columns.
package frame

import (
	"fmt"

	"github.com/arkilian/pqdataset/pkg/types"
)

// Frame is an ordered set of equal-length columns plus an optional index.
// A frame with no index has an implicit positional index.
type Frame struct {
	Index   *Column
	Columns []*Column
	rows    int
}

// New creates a frame without an index. All columns must have equal length.
func New(columns ...*Column) (*Frame, error) {
	rows := 0
	if len(columns) > 0 {
		rows = columns[0].Len()
	}
	f := &Frame{Columns: append([]*Column(nil), columns...), rows: rows}
	if err := f.checkShape(); err != nil {
		return nil, err
	}
	return f, nil
}

// MustNew is New that panics on error. Intended for tests and fixtures.
func MustNew(columns ...*Column) *Frame {
	f, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return f
}

// Empty creates a frame with no columns and the given number of rows.
func Empty(rows int) *Frame {
	return &Frame{rows: rows}
}

// WithIndex returns a copy of f using idx as its row index.
func (f *Frame) WithIndex(idx *Column) (*Frame, error) {
	if idx != nil && (len(f.Columns) > 0 || f.rows > 0) && idx.Len() != f.rows {
		return nil, fmt.Errorf("frame: index %q has %d rows, frame has %d", idx.Name, idx.Len(), f.rows)
	}
	out := &Frame{Index: idx, Columns: f.Columns, rows: f.rows}
	if idx != nil {
		out.rows = idx.Len()
	}
	return out, nil
}

// MustWithIndex is WithIndex that panics on error.
func (f *Frame) MustWithIndex(idx *Column) *Frame {
	out, err := f.WithIndex(idx)
	if err != nil {
		panic(err)
	}
	return out
}

func (f *Frame) checkShape() error {
	for _, c := range f.Columns {
		if c.Len() != f.rows {
			return fmt.Errorf("frame: column %q has %d rows, expected %d", c.Name, c.Len(), f.rows)
		}
	}
	if f.Index != nil && f.Index.Len() != f.rows {
		return fmt.Errorf("frame: index %q has %d rows, expected %d", f.Index.Name, f.Index.Len(), f.rows)
	}
	return nil
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int {
	return f.rows
}

// NumColumns returns the number of non-index columns.
func (f *Frame) NumColumns() int {
	return len(f.Columns)
}

// Names returns the non-index column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name
	}
	return names
}

// Schema returns the schema of the non-index columns.
func (f *Frame) Schema() types.Schema {
	defs := make([]types.ColumnDef, len(f.Columns))
	for i, c := range f.Columns {
		defs[i] = c.Def()
	}
	return types.Schema{Columns: defs}
}

// Column looks up a non-index column by name.
func (f *Frame) Column(name string) (*Column, bool) {
	for _, c := range f.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Validate checks names, types, values and lengths.
func (f *Frame) Validate() error {
	if err := f.checkShape(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(f.Columns))
	for _, c := range f.Columns {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("frame: %w", err)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("frame: duplicate column name %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	if f.Index != nil {
		if err := f.Index.Validate(); err != nil {
			return fmt.Errorf("frame: index: %w", err)
		}
	}
	return nil
}

// Slice returns rows [lo, hi).
func (f *Frame) Slice(lo, hi int) *Frame {
	out := &Frame{Columns: make([]*Column, len(f.Columns)), rows: hi - lo}
	for i, c := range f.Columns {
		out.Columns[i] = c.Slice(lo, hi)
	}
	if f.Index != nil {
		out.Index = f.Index.Slice(lo, hi)
	}
	return out
}

// Select returns the named columns in the given order, keeping the index.
func (f *Frame) Select(names ...string) (*Frame, error) {
	out := &Frame{Index: f.Index, Columns: make([]*Column, 0, len(names)), rows: f.rows}
	for _, name := range names {
		c, ok := f.Column(name)
		if !ok {
			return nil, fmt.Errorf("frame: column %q not found", name)
		}
		out.Columns = append(out.Columns, c)
	}
	return out, nil
}

// SetIndex moves the named column out of the columns and makes it the index.
func (f *Frame) SetIndex(name string) (*Frame, error) {
	out := &Frame{Columns: make([]*Column, 0, len(f.Columns)), rows: f.rows}
	for _, c := range f.Columns {
		if c.Name == name && out.Index == nil {
			out.Index = c
			continue
		}
		out.Columns = append(out.Columns, c)
	}
	if out.Index == nil {
		return nil, fmt.Errorf("frame: column %q not found", name)
	}
	return out, nil
}

// IndexAsColumn returns a frame without an index whose first column holds the
// former index values. The index is named defaultName when it has no name.
func (f *Frame) IndexAsColumn(defaultName string) (*Frame, error) {
	if f.Index == nil {
		return f, nil
	}
	idx := f.Index
	if idx.Name == "" {
		idx = idx.Rename(defaultName)
	}
	if _, clash := f.Column(idx.Name); clash {
		return nil, fmt.Errorf("frame: index name %q collides with a column", idx.Name)
	}
	cols := make([]*Column, 0, len(f.Columns)+1)
	cols = append(cols, idx)
	cols = append(cols, f.Columns...)
	return &Frame{Columns: cols, rows: f.rows}, nil
}

// DropIndex returns the frame with a positional index.
func (f *Frame) DropIndex() *Frame {
	return &Frame{Columns: f.Columns, rows: f.rows}
}

// Series returns the named column as a series sharing the frame's index.
func (f *Frame) Series(name string) (*Series, error) {
	c, ok := f.Column(name)
	if !ok {
		return nil, fmt.Errorf("frame: column %q not found", name)
	}
	return &Series{Index: f.Index, Data: c}, nil
}

// Equal reports whether two frames have equal columns, index and row count.
func (f *Frame) Equal(o *Frame) bool {
	if f == nil || o == nil {
		return f == o
	}
	if f.rows != o.rows || len(f.Columns) != len(o.Columns) || !f.Index.Equal(o.Index) {
		return false
	}
	for i := range f.Columns {
		if !f.Columns[i].Equal(o.Columns[i]) {
			return false
		}
	}
	return true
}

// Concat stacks frames vertically. All frames must share column names, types
// and index definition.
func Concat(frames ...*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return Empty(0), nil
	}
	first := frames[0]
	total := 0
	for i, f := range frames {
		if !f.Schema().Equal(first.Schema()) {
			return nil, fmt.Errorf("frame: concat: frame %d schema differs", i)
		}
		if (f.Index == nil) != (first.Index == nil) ||
			(f.Index != nil && f.Index.Def() != first.Index.Def()) {
			return nil, fmt.Errorf("frame: concat: frame %d index differs", i)
		}
		total += f.rows
	}

	out := &Frame{Columns: make([]*Column, len(first.Columns)), rows: total}
	for ci, c := range first.Columns {
		vals := make([]any, 0, total)
		for _, f := range frames {
			vals = append(vals, f.Columns[ci].Values...)
		}
		out.Columns[ci] = &Column{Name: c.Name, Type: c.Type, Values: vals}
	}
	if first.Index != nil {
		vals := make([]any, 0, total)
		for _, f := range frames {
			vals = append(vals, f.Index.Values...)
		}
		out.Index = &Column{Name: first.Index.Name, Type: first.Index.Type, Values: vals}
	}
	return out, nil
}

// Series is a single column with the index of the frame it came from.
type Series struct {
	Index *Column
	Data  *Column
}

// Name returns the series name.
func (s *Series) Name() string {
	return s.Data.Name
}

// Len returns the number of values.
func (s *Series) Len() int {
	return s.Data.Len()
}

// Equal reports whether two series have equal data and index.
func (s *Series) Equal(o *Series) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.Data.Equal(o.Data) && s.Index.Equal(o.Index)
}
