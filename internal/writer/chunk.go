package writer

import (
	"fmt"

	dserr "github.com/arkilian/pqdataset/internal/errors"
	"github.com/arkilian/pqdataset/internal/partition"
)

// Range is a half-open row range [Lo, Hi).
type Range struct {
	Lo, Hi int
}

// Len returns the number of rows in the range.
func (r Range) Len() int { return r.Hi - r.Lo }

type policyKind int

const (
	fixedRows policyKind = iota + 1
	numChunks
)

// ChunkPolicy decides how a table is split into partitions.
type ChunkPolicy struct {
	kind policyKind
	n    int
}

// FixedRows puts n rows in every chunk; the last one may be shorter.
func FixedRows(n int) ChunkPolicy {
	return ChunkPolicy{kind: fixedRows, n: n}
}

// NumChunks splits a table into at most k chunks of ceil(rows/k) rows.
// Five rows into three chunks gives 2, 2 and 1.
func NumChunks(k int) ChunkPolicy {
	return ChunkPolicy{kind: numChunks, n: k}
}

func (p ChunkPolicy) String() string {
	switch p.kind {
	case fixedRows:
		return fmt.Sprintf("fixed_rows(%d)", p.n)
	case numChunks:
		return fmt.Sprintf("num_chunks(%d)", p.n)
	}
	return "invalid"
}

// Validate checks the policy parameters.
func (p ChunkPolicy) Validate() error {
	if p.kind != fixedRows && p.kind != numChunks {
		return dserr.NewValidationError(dserr.CodeInvalidChunkPolicy, "chunk policy is not set")
	}
	if p.n <= 0 {
		return dserr.NewValidationError(dserr.CodeInvalidChunkPolicy,
			fmt.Sprintf("%s: size must be positive", p))
	}
	return nil
}

// Split returns the ordered row ranges for a table of the given size.
// An empty table yields one empty range so the schema is still written.
// More than partition.MaxPartitions ranges is an error.
func (p ChunkPolicy) Split(rows int) ([]Range, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if rows == 0 {
		return []Range{{0, 0}}, nil
	}

	size := p.n
	if p.kind == numChunks {
		size = (rows + p.n - 1) / p.n
	}
	count := (rows + size - 1) / size
	if count > partition.MaxPartitions {
		return nil, dserr.NewValidationError(dserr.CodeInvalidChunkPolicy,
			fmt.Sprintf("%s: %d rows give %d partitions, limit is %d", p, rows, count, partition.MaxPartitions))
	}
	ranges := make([]Range, 0, count)
	for lo := 0; lo < rows; lo += size {
		ranges = append(ranges, Range{Lo: lo, Hi: min(lo+size, rows)})
	}
	return ranges, nil
}
