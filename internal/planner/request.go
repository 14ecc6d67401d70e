package planner

import (
	"fmt"
	"strings"
)

type selectionKind int

const (
	selectAll selectionKind = iota
	selectSingle
	selectList
)

// ColumnSelection is the requested column set of a read. The zero value selects all columns.
//
// Single and List differ only in the shape of the result: Column("x") yields a
// series, Columns("x") a one-column frame. Both read the same data and share keys.
type ColumnSelection struct {
	kind  selectionKind
	names []string
}

// AllColumns selects every schema column as a frame.
func AllColumns() ColumnSelection {
	return ColumnSelection{kind: selectAll}
}

// Column selects one column as a series.
func Column(name string) ColumnSelection {
	return ColumnSelection{kind: selectSingle, names: []string{name}}
}

// Columns selects the named columns, in order, as a frame. Zero names select
// no value columns. Columns(names...) with a slice and with literal arguments
// are the same selection.
func Columns(names ...string) ColumnSelection {
	cp := make([]string, len(names))
	copy(cp, names)
	return ColumnSelection{kind: selectList, names: cp}
}

// IsAll reports whether the selection means every column.
func (s ColumnSelection) IsAll() bool { return s.kind == selectAll }

// IsSingle reports whether the selection is a single series-shaped column.
func (s ColumnSelection) IsSingle() bool { return s.kind == selectSingle }

// Names returns a copy of the selected names; nil for AllColumns.
func (s ColumnSelection) Names() []string {
	if s.kind == selectAll {
		return nil
	}
	cp := make([]string, len(s.names))
	copy(cp, s.names)
	return cp
}

func (s ColumnSelection) String() string {
	switch s.kind {
	case selectSingle:
		return fmt.Sprintf("%q", s.names[0])
	case selectList:
		quoted := make([]string, len(s.names))
		for i, n := range s.names {
			quoted[i] = fmt.Sprintf("%q", n)
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	}
	return "*"
}

type indexKind int

const (
	indexAuto indexKind = iota
	indexOn
	indexNone
)

// IndexSpec selects the row index of a read. The zero value is AutoIndex.
type IndexSpec struct {
	kind indexKind
	name string
}

// AutoIndex uses the index column recorded in the dataset metadata, if any.
func AutoIndex() IndexSpec { return IndexSpec{kind: indexAuto} }

// IndexOn uses the named column as the index.
func IndexOn(name string) IndexSpec { return IndexSpec{kind: indexOn, name: name} }

// NoIndex reads without an index; the recorded index column, if selected,
// comes back as an ordinary column.
func NoIndex() IndexSpec { return IndexSpec{kind: indexNone} }

func (s IndexSpec) String() string {
	switch s.kind {
	case indexOn:
		return fmt.Sprintf("on(%q)", s.name)
	case indexNone:
		return "none"
	}
	return "auto"
}

// Shape is the container of a computed result.
type Shape int

const (
	ShapeFrame Shape = iota
	ShapeSeries
)

func (s Shape) String() string {
	if s == ShapeSeries {
		return "series"
	}
	return "frame"
}
