package planner

import (
	"fmt"

	dserr "github.com/arkilian/pqdataset/internal/errors"
	"github.com/arkilian/pqdataset/internal/manifest"
	"github.com/arkilian/pqdataset/pkg/types"
)

// buildDivisions returns the partition boundaries for index: every
// partition's minimum followed by the last partition's maximum. When any
// partition lacks statistics for the index the result is n+1 nils.
// sorted is false when the boundaries are unknown, decrease, or partitions overlap.
func buildDivisions(rec *manifest.Record, index *types.ColumnDef) (divisions []any, sorted bool) {
	n := len(rec.Partitions)
	divisions = make([]any, n+1)
	if index == nil || n == 0 {
		return divisions, false
	}

	maxes := make([]any, n)
	for i, p := range rec.Partitions {
		mm, ok := p.Stats[index.Name]
		if !ok || mm.Min == nil || mm.Max == nil {
			return make([]any, n+1), false
		}
		divisions[i] = mm.Min
		maxes[i] = mm.Max
	}
	divisions[n] = maxes[n-1]

	sorted = true
	for i := 0; i < n; i++ {
		if c, err := types.Compare(divisions[i], divisions[i+1]); err != nil || c > 0 {
			sorted = false
			break
		}
		if i+1 < n {
			// Partition i must end at or before partition i+1 begins.
			if c, err := types.Compare(maxes[i], divisions[i+1]); err != nil || c > 0 {
				sorted = false
				break
			}
		}
	}
	return divisions, sorted
}

// knownDivisions reports whether divisions carry values.
func knownDivisions(divisions []any) bool {
	return len(divisions) > 0 && divisions[0] != nil
}

// overlapping returns partitions that may hold index values in [lo, hi].
// It tests each partition's own min/max, which the divisions summarize, so the
// answer stays exact when partitions share a boundary value or are unsorted.
func overlapping(rec *manifest.Record, index *types.ColumnDef, divisions []any, lo, hi any) ([]int, error) {
	if index == nil || !knownDivisions(divisions) {
		return nil, dserr.NewPlanError(dserr.CodeUnknownDivisions, "divisions are unknown; no range pruning available")
	}
	if !index.Type.Accepts(lo) || !index.Type.Accepts(hi) {
		return nil, dserr.NewValidationError(dserr.CodeInvalidRequest,
			fmt.Sprintf("range bounds %v, %v do not match index type %s", lo, hi, index.Type))
	}

	out := []int{}
	if c, _ := types.Compare(lo, hi); c > 0 {
		return out, nil
	}
	for i, p := range rec.Partitions {
		mm := p.Stats[index.Name]
		if c, _ := types.Compare(mm.Min, hi); c > 0 {
			continue
		}
		if c, _ := types.Compare(lo, mm.Max); c > 0 {
			continue
		}
		out = append(out, i)
	}
	return out, nil
}
