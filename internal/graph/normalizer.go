package graph

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/spaolacci/murmur3"

	dserr "github.com/arkilian/pqdataset/internal/errors"
)

// Canonical is the normalized form of a read request: the resolved output
// columns in order and the resolved index decision. The requested result
// shape is deliberately absent.
type Canonical struct {
	Columns  []string
	Index    string
	HasIndex bool
}

// Equal reports whether two canonical forms are identical.
func (c Canonical) Equal(o Canonical) bool {
	return bytes.Equal(c.Bytes(), o.Bytes())
}

// Bytes returns an unambiguous length-prefixed encoding.
func (c Canonical) Bytes() []byte {
	var buf []byte
	buf = binary.AppendUvarint(buf, uint64(len(c.Columns)))
	for _, name := range c.Columns {
		buf = appendString(buf, name)
	}
	if c.HasIndex {
		buf = append(buf, 1)
		buf = appendString(buf, c.Index)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// DefaultTrackedFingerprints bounds how many fingerprints a Normalizer
// remembers for collision checks.
const DefaultTrackedFingerprints = 1 << 16

// checkSeed seeds the second hash stored per fingerprint.
const checkSeed = 0x9e3779b9

// Normalizer derives deterministic task names from normalized requests and
// guards against fingerprint collisions. For each of the most recent
// fingerprints it keeps a second, independently seeded 128-bit hash of the
// hashed bytes; a fingerprint seen again with a different second hash is a
// collision. It is safe for concurrent use.
type Normalizer struct {
	mu    sync.Mutex
	seen  map[string][2]uint64
	order []string // ring of tracked fingerprints, oldest at next
	next  int
	limit int
	hash  func([]byte) (uint64, uint64)
	check func([]byte) (uint64, uint64)
}

// NewNormalizer creates a normalizer using murmur3 128-bit hashing.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		seen:  make(map[string][2]uint64),
		limit: DefaultTrackedFingerprints,
		hash:  murmur3.Sum128,
		check: func(b []byte) (uint64, uint64) { return murmur3.Sum128WithSeed(b, checkSeed) },
	}
}

// Normalize builds the canonical form of a resolved request.
func (n *Normalizer) Normalize(columns []string, index string, hasIndex bool) Canonical {
	cols := make([]string, len(columns))
	copy(cols, columns)
	if !hasIndex {
		index = ""
	}
	return Canonical{Columns: cols, Index: index, HasIndex: hasIndex}
}

// Fingerprint hashes the dataset identity together with the canonical request.
// It fails with a KEY_COLLISION error if different inputs ever map to the
// same fingerprint.
func (n *Normalizer) Fingerprint(location, datasetID string, c Canonical) (string, error) {
	var buf []byte
	buf = appendString(buf, location)
	buf = appendString(buf, datasetID)
	buf = append(buf, c.Bytes()...)

	h1, h2 := n.hash(buf)
	fp := fmt.Sprintf("%016x%016x", h1, h2)
	c1, c2 := n.check(buf)
	sum := [2]uint64{c1, c2}

	n.mu.Lock()
	defer n.mu.Unlock()
	if prev, ok := n.seen[fp]; ok {
		if prev != sum {
			return "", dserr.New(dserr.ErrCategoryInternal, dserr.CodeKeyCollision,
				fmt.Sprintf("fingerprint %s collides for distinct requests", fp))
		}
		return fp, nil
	}
	n.track(fp, sum)
	return fp, nil
}

// track records fp, forgetting the oldest fingerprint once limit is reached.
func (n *Normalizer) track(fp string, sum [2]uint64) {
	if len(n.order) < n.limit {
		n.order = append(n.order, fp)
	} else {
		delete(n.seen, n.order[n.next])
		n.order[n.next] = fp
		n.next = (n.next + 1) % n.limit
	}
	n.seen[fp] = sum
}

// TaskName returns the key family name "read-<codec>-<fingerprint>".
func (n *Normalizer) TaskName(codec, location, datasetID string, c Canonical) (string, error) {
	fp, err := n.Fingerprint(location, datasetID, c)
	if err != nil {
		return "", err
	}
	return "read-" + codec + "-" + fp, nil
}

// Keys returns the keys of partitions 0..n-1 under name.
func Keys(name string, n int) []Key {
	keys := make([]Key, n)
	for i := range keys {
		keys[i] = Key{Name: name, Partition: i}
	}
	return keys
}
