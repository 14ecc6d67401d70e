package partition

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileName(t *testing.T) {
	assert.Equal(t, "part.000000.parquet", FileName(0, ".parquet"))
	assert.Equal(t, "part.000042.sqlite", FileName(42, ".sqlite"))
	assert.Equal(t, "part.999999.parquet", FileName(MaxPartitions-1, ".parquet"))
}

func TestFileName_SortsInPartitionOrder(t *testing.T) {
	var names []string
	for _, i := range []int{10, 2, 0, 100, 1} {
		names = append(names, FileName(i, ".parquet"))
	}
	sort.Strings(names)
	for i, want := range []int{0, 1, 2, 10, 100} {
		seq, _, ok := ParseFileName(names[i])
		assert.True(t, ok)
		assert.Equal(t, want, seq)
	}
}

func TestParseFileName(t *testing.T) {
	seq, ext, ok := ParseFileName("part.000007.sqlite")
	assert.True(t, ok)
	assert.Equal(t, 7, seq)
	assert.Equal(t, ".sqlite", ext)

	for _, bad := range []string{"_metadata", "part.x.parquet", "part.1.parquet", "part.1000000.parquet", "other.000001.parquet"} {
		assert.False(t, IsPartitionFile(bad), bad)
	}
}
