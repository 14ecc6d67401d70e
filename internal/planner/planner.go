// Package planner turns read requests against a dataset directory into lazy
// plans: resolved output columns and index, divisions, and a task graph with
// one content-addressed task per partition. Planning reads only the metadata.
package planner

import (
	"context"
	"log/slog"

	"github.com/arkilian/pqdataset/internal/graph"
	"github.com/arkilian/pqdataset/internal/logging"
	"github.com/arkilian/pqdataset/internal/manifest"
	"github.com/arkilian/pqdataset/internal/storage"
	"github.com/arkilian/pqdataset/pkg/types"
)

// Planner builds read plans.
type Planner struct {
	store      *manifest.Store
	normalizer *graph.Normalizer
	logger     *slog.Logger
}

// NewPlanner creates a planner. A nil normalizer gets a private one; share a
// normalizer across planners to extend collision checking across them.
func NewPlanner(store *manifest.Store, normalizer *graph.Normalizer, logger *slog.Logger) *Planner {
	if normalizer == nil {
		normalizer = graph.NewNormalizer()
	}
	return &Planner{
		store:      store,
		normalizer: normalizer,
		logger:     logging.OrDiscard(logger),
	}
}

// Plan loads the dataset metadata under prefix and plans a read.
func (p *Planner) Plan(ctx context.Context, prefix string, sel ColumnSelection, spec IndexSpec) (*Plan, error) {
	rec, err := p.store.Read(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return p.PlanRecord(prefix, rec, sel, spec)
}

// PlanRecord plans a read against already loaded metadata.
func (p *Planner) PlanRecord(prefix string, rec *manifest.Record, sel ColumnSelection, spec IndexSpec) (*Plan, error) {
	return p.build(prefix, rec, rec.Schema, sel, spec)
}

func (p *Planner) build(prefix string, rec *manifest.Record, schema types.Schema, sel ColumnSelection, spec IndexSpec) (*Plan, error) {
	res, err := resolve(schema, rec.IndexColumn, sel, spec)
	if err != nil {
		return nil, err
	}

	location := p.store.Storage().Location(prefix)
	names := make([]string, len(res.columns))
	for i, c := range res.columns {
		names[i] = c.Name
	}
	indexName := ""
	if res.index != nil {
		indexName = res.index.Name
	}

	canon := p.normalizer.Normalize(names, indexName, res.index != nil)
	name, err := p.normalizer.TaskName(rec.Codec, location, rec.DatasetID.String(), canon)
	if err != nil {
		return nil, err
	}

	keys := graph.Keys(name, rec.NumPartitions())
	g := make(graph.Graph, len(keys))
	for i, k := range keys {
		cols := make([]string, len(names))
		copy(cols, names)
		g[k] = &graph.ReadPartition{
			Location:  location,
			Dataset:   rec.DatasetID.String(),
			Object:    storage.Join(prefix, rec.Partitions[i].Object),
			Size:      rec.Partitions[i].SizeBytes,
			Codec:     rec.Codec,
			Partition: i,
			Columns:   cols,
			Index:     indexName,
		}
	}

	divisions, sorted := buildDivisions(rec, res.index)
	if res.index != nil && knownDivisions(divisions) && !sorted {
		p.logger.Warn("partition statistics are not sorted by index; range pruning may be wrong",
			"location", location,
			"index", indexName)
	}

	plan := &Plan{
		Name:            name,
		Prefix:          prefix,
		Location:        location,
		Columns:         res.columns,
		Index:           res.index,
		Shape:           res.shape,
		Divisions:       divisions,
		DivisionsSorted: sorted,
		Graph:           g,
		Keys:            keys,
		Record:          rec,
		planner:         p,
	}
	p.logger.Debug("read planned",
		"location", location,
		"name", name,
		"columns", names,
		"index", indexName,
		"shape", res.shape.String(),
		"partitions", len(keys))
	return plan, nil
}
