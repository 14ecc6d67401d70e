package partition

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	filePrefix = "part."
	seqDigits  = 6
)

// MaxPartitions is the partition count limit of one dataset. Sequence numbers
// have a fixed width of six digits, which keeps names sorted in partition order.
const MaxPartitions = 1_000_000

// FileName returns the file name of partition seq, 0 <= seq < MaxPartitions.
// Names sort lexicographically in partition order.
func FileName(seq int, ext string) string {
	return fmt.Sprintf("%s%0*d%s", filePrefix, seqDigits, seq, ext)
}

// ParseFileName extracts the sequence number and extension from a partition file name.
func ParseFileName(name string) (seq int, ext string, ok bool) {
	if !strings.HasPrefix(name, filePrefix) {
		return 0, "", false
	}
	rest := name[len(filePrefix):]
	dot := strings.IndexByte(rest, '.')
	digits := rest
	if dot >= 0 {
		digits, ext = rest[:dot], rest[dot:]
	}
	if len(digits) != seqDigits {
		return 0, "", false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, "", false
	}
	return n, ext, true
}

// IsPartitionFile reports whether name looks like a partition file.
func IsPartitionFile(name string) bool {
	_, _, ok := ParseFileName(name)
	return ok
}
