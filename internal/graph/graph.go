// Package graph defines lazy task graphs: content-addressed keys, the task
// variants they map to, and the normalizer that derives keys from a read request.
package graph

import (
	"fmt"
	"sort"

	dserr "github.com/arkilian/pqdataset/internal/errors"
)

// Key identifies one task in a graph. Name is the task family shared by every
// partition of one normalized request.
type Key struct {
	Name      string
	Partition int
}

func (k Key) String() string {
	return fmt.Sprintf("(%s, %d)", k.Name, k.Partition)
}

// Less orders keys by name, then partition.
func (k Key) Less(o Key) bool {
	if k.Name != o.Name {
		return k.Name < o.Name
	}
	return k.Partition < o.Partition
}

// SortKeys sorts keys in place.
func SortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

// Task is a unit of work in a graph. The set of variants is closed.
type Task interface {
	// Dependencies returns keys whose results the task consumes.
	Dependencies() []Key
	isTask()
}

// ReadPartition decodes selected columns from one partition file.
type ReadPartition struct {
	// Location identifies the dataset, e.g. "file:///data/ds"
	Location string
	// Dataset is the ID of the write that produced the file
	Dataset string
	// Object is the partition's object path in storage
	Object string
	// Size is the file size recorded in metadata; 0 when unknown
	Size      int64
	Codec     string
	Partition int
	// Columns are the output value columns in order
	Columns []string
	// Index is the column promoted to the row index; empty for none
	Index string
}

func (*ReadPartition) isTask() {}

// Dependencies returns nil; reads are leaves.
func (*ReadPartition) Dependencies() []Key { return nil }

// DecodeColumns returns the columns the codec must decode: the output
// columns followed by the index column.
func (t *ReadPartition) DecodeColumns() []string {
	out := make([]string, 0, len(t.Columns)+1)
	out = append(out, t.Columns...)
	if t.Index != "" {
		out = append(out, t.Index)
	}
	return out
}

// Graph maps keys to tasks. Graphs are not mutated after construction.
type Graph map[Key]Task

// Keys returns the graph's keys in sorted order.
func (g Graph) Keys() []Key {
	keys := make([]Key, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	SortKeys(keys)
	return keys
}

// KeySet returns the keys as a set, for comparing plans.
func (g Graph) KeySet() map[Key]struct{} {
	set := make(map[Key]struct{}, len(g))
	for k := range g {
		set[k] = struct{}{}
	}
	return set
}

// Cull returns the sub-graph needed to compute keys, following dependencies.
func Cull(g Graph, keys []Key) (Graph, error) {
	out := make(Graph, len(keys))
	stack := append([]Key(nil), keys...)
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, done := out[k]; done {
			continue
		}
		t, ok := g[k]
		if !ok {
			return nil, dserr.NewPlanError(dserr.CodeKeyNotFound, fmt.Sprintf("key %s is not in the graph", k))
		}
		out[k] = t
		stack = append(stack, t.Dependencies()...)
	}
	return out, nil
}
