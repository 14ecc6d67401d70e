// Package manifest persists the consolidated dataset metadata: schema,
// ordered partition list, per-partition row counts and min/max statistics.
package manifest

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arkilian/pqdataset/internal/partition"
	"github.com/arkilian/pqdataset/pkg/types"
)

// FormatVersion is the record version written by this package.
const FormatVersion = 1

// Record is the consolidated metadata of one dataset directory.
// A new DatasetID is assigned on every write.
type Record struct {
	Version     int
	DatasetID   uuid.UUID
	Codec       string
	Schema      types.Schema
	IndexColumn string
	Partitions  []PartitionMeta
	CreatedAt   time.Time
}

// PartitionMeta describes one partition file.
type PartitionMeta struct {
	// Object is the file name relative to the dataset prefix
	Object    string
	RowCount  int64
	SizeBytes int64
	// Stats holds min/max for sortable columns; absent when the partition is empty
	Stats map[string]partition.MinMax
}

// NewRecord creates a record with a fresh dataset ID.
func NewRecord(codec string, schema types.Schema, indexColumn string, parts []PartitionMeta) *Record {
	return &Record{
		Version:     FormatVersion,
		DatasetID:   uuid.New(),
		Codec:       codec,
		Schema:      schema,
		IndexColumn: indexColumn,
		Partitions:  parts,
		CreatedAt:   time.Now().UTC(),
	}
}

// NumPartitions returns the number of partitions.
func (r *Record) NumPartitions() int {
	return len(r.Partitions)
}

// TotalRows returns the sum of all partition row counts.
func (r *Record) TotalRows() int64 {
	var n int64
	for _, p := range r.Partitions {
		n += p.RowCount
	}
	return n
}

// Objects returns the partition file names in partition order.
func (r *Record) Objects() []string {
	out := make([]string, len(r.Partitions))
	for i, p := range r.Partitions {
		out[i] = p.Object
	}
	return out
}

// Validate checks the record for internal consistency.
func (r *Record) Validate() error {
	if r.Version != FormatVersion {
		return fmt.Errorf("unsupported format version %d", r.Version)
	}
	if r.Codec == "" {
		return fmt.Errorf("codec is empty")
	}
	if err := r.Schema.Validate(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if r.IndexColumn != "" && !r.Schema.Has(r.IndexColumn) {
		return fmt.Errorf("index column %q is not in the schema", r.IndexColumn)
	}
	if len(r.Partitions) == 0 {
		return fmt.Errorf("dataset has no partitions")
	}

	for i, p := range r.Partitions {
		seq, _, ok := partition.ParseFileName(p.Object)
		if !ok || seq != i {
			return fmt.Errorf("partition %d has object %q out of order", i, p.Object)
		}
		if p.RowCount < 0 {
			return fmt.Errorf("partition %d has negative row count", i)
		}
		for col, mm := range p.Stats {
			def, _, ok := r.Schema.Lookup(col)
			if !ok {
				return fmt.Errorf("partition %d has stats for unknown column %q", i, col)
			}
			if !def.Type.Sortable() {
				return fmt.Errorf("partition %d has stats for unsortable column %q", i, col)
			}
			if !def.Type.Accepts(mm.Min) || !def.Type.Accepts(mm.Max) {
				return fmt.Errorf("partition %d column %q: min/max do not match type %s", i, col, def.Type)
			}
			c, err := types.Compare(mm.Min, mm.Max)
			if err != nil {
				return fmt.Errorf("partition %d column %q: %w", i, col, err)
			}
			if c > 0 {
				return fmt.Errorf("partition %d column %q: min %v > max %v", i, col, mm.Min, mm.Max)
			}
		}
	}
	return nil
}
