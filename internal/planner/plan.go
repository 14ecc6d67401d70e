package planner

import (
	"github.com/arkilian/pqdataset/internal/graph"
	"github.com/arkilian/pqdataset/internal/manifest"
	"github.com/arkilian/pqdataset/internal/storage"
	"github.com/arkilian/pqdataset/pkg/types"
)

// Plan is a lazy description of a read. Nothing is decoded until its graph is executed.
type Plan struct {
	// Name is the task family shared by all keys
	Name     string
	Prefix   string
	Location string

	// Columns are the output value columns; the index column is never among them
	Columns []types.ColumnDef
	Index   *types.ColumnDef
	Shape   Shape

	// Divisions has NPartitions()+1 entries, all nil when unknown
	Divisions       []any
	DivisionsSorted bool

	Graph graph.Graph
	// Keys holds one key per partition in partition order
	Keys []graph.Key

	// Record is the metadata the plan was built from
	Record *manifest.Record

	planner *Planner
}

// NPartitions returns the number of output partitions.
func (p *Plan) NPartitions() int {
	return len(p.Keys)
}

// KnownDivisions reports whether divisions carry index values.
func (p *Plan) KnownDivisions() bool {
	return knownDivisions(p.Divisions)
}

// ColumnNames returns the output column names in order.
func (p *Plan) ColumnNames() []string {
	names := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		names[i] = c.Name
	}
	return names
}

// IndexName returns the index column name, or "" when there is no index.
func (p *Plan) IndexName() string {
	if p.Index == nil {
		return ""
	}
	return p.Index.Name
}

// Project narrows the plan to sel, keeping its index. The result has the same
// keys as planning sel directly with that index. Selected names must be
// output columns of p.
func (p *Plan) Project(sel ColumnSelection) (*Plan, error) {
	defs := make([]types.ColumnDef, 0, len(p.Columns)+1)
	spec := NoIndex()
	if p.Index != nil {
		defs = append(defs, *p.Index)
		spec = IndexOn(p.Index.Name)
	}
	defs = append(defs, p.Columns...)
	return p.planner.build(p.Prefix, p.Record, types.NewSchema(defs...), sel, spec)
}

// PartitionsFor returns the partitions whose index range intersects [lo, hi].
// It fails with UNKNOWN_DIVISIONS when the plan has no known divisions.
func (p *Plan) PartitionsFor(lo, hi any) ([]int, error) {
	return overlapping(p.Record, p.Index, p.Divisions, lo, hi)
}

// Task returns the read task of partition i.
func (p *Plan) Task(i int) *graph.ReadPartition {
	return p.Graph[p.Keys[i]].(*graph.ReadPartition)
}

// Storage returns the object storage the plan's files live in.
func (p *Plan) Storage() storage.ObjectStorage {
	return p.planner.store.Storage()
}
