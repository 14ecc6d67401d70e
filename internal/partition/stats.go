package partition

import (
	"fmt"
	"math"

	"github.com/arkilian/pqdataset/internal/frame"
	"github.com/arkilian/pqdataset/pkg/types"
)

// MinMax holds min/max values for a column.
type MinMax struct {
	Min interface{}
	Max interface{}
}

// StatsTracker tracks min/max statistics for selected columns while a chunk is encoded.
type StatsTracker struct {
	rowCount int64
	tracked  map[string]struct{}
	minmax   map[string]*MinMax
}

// NewStatsTracker creates a tracker for the given column names.
func NewStatsTracker(columns []string) *StatsTracker {
	tracked := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		tracked[c] = struct{}{}
	}
	return &StatsTracker{
		tracked: tracked,
		minmax:  make(map[string]*MinMax, len(columns)),
	}
}

// Update folds one value of a tracked column into its statistics.
// Values of untracked columns and NaN are ignored.
func (s *StatsTracker) Update(column string, v any) error {
	if _, ok := s.tracked[column]; !ok {
		return nil
	}
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return nil
	}
	mm, ok := s.minmax[column]
	if !ok {
		s.minmax[column] = &MinMax{Min: v, Max: v}
		return nil
	}
	c, err := types.Compare(v, mm.Min)
	if err != nil {
		return fmt.Errorf("stats: column %q: %w", column, err)
	}
	if c < 0 {
		mm.Min = v
	}
	c, err = types.Compare(v, mm.Max)
	if err != nil {
		return fmt.Errorf("stats: column %q: %w", column, err)
	}
	if c > 0 {
		mm.Max = v
	}
	return nil
}

// UpdateFrame folds every row of f into the statistics.
func (s *StatsTracker) UpdateFrame(f *frame.Frame) error {
	for _, col := range f.Columns {
		if _, ok := s.tracked[col.Name]; !ok {
			continue
		}
		for _, v := range col.Values {
			if err := s.Update(col.Name, v); err != nil {
				return err
			}
		}
	}
	s.rowCount += int64(f.NumRows())
	return nil
}

// GetMinMaxStats returns the computed min/max statistics. Columns without any
// observed value are absent.
func (s *StatsTracker) GetMinMaxStats() map[string]MinMax {
	stats := make(map[string]MinMax, len(s.minmax))
	for name, mm := range s.minmax {
		stats[name] = *mm
	}
	return stats
}

// RowCount returns the number of rows tracked.
func (s *StatsTracker) RowCount() int64 {
	return s.rowCount
}

// ComputeStats returns min/max statistics of the given columns of f.
func ComputeStats(f *frame.Frame, columns []string) (map[string]MinMax, error) {
	tracker := NewStatsTracker(columns)
	if err := tracker.UpdateFrame(f); err != nil {
		return nil, err
	}
	return tracker.GetMinMaxStats(), nil
}
