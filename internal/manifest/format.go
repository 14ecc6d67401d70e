package manifest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/arkilian/pqdataset/internal/partition"
	"github.com/arkilian/pqdataset/pkg/types"
)

// File layout: [magic:4][version:4][crc32:4][length:4][payload:length]
// All integers are little endian. The payload is snappy-compressed JSON and
// the checksum covers the compressed payload.
var magic = [4]byte{'P', 'Q', 'D', 'M'}

const headerSize = 16

type wireRecord struct {
	Version     int             `json:"version"`
	DatasetID   uuid.UUID       `json:"dataset_id"`
	Codec       string          `json:"codec"`
	Schema      types.Schema    `json:"schema"`
	IndexColumn string          `json:"index_column,omitempty"`
	Partitions  []wirePartition `json:"partitions"`
	CreatedAt   time.Time       `json:"created_at"`
}

type wirePartition struct {
	Object    string                `json:"object"`
	RowCount  int64                 `json:"row_count"`
	SizeBytes int64                 `json:"size_bytes"`
	Stats     map[string]wireMinMax `json:"stats,omitempty"`
}

// Min and Max stay raw until the column type is known, so int64 values
// survive without a float64 detour. Infinite float bounds are written as the
// strings "+Inf" and "-Inf".
type wireMinMax struct {
	Min json.RawMessage `json:"min"`
	Max json.RawMessage `json:"max"`
}

// Encode serializes a record into the _metadata file format.
func Encode(r *Record) ([]byte, error) {
	w := wireRecord{
		Version:     r.Version,
		DatasetID:   r.DatasetID,
		Codec:       r.Codec,
		Schema:      r.Schema,
		IndexColumn: r.IndexColumn,
		Partitions:  make([]wirePartition, len(r.Partitions)),
		CreatedAt:   r.CreatedAt,
	}
	for i, p := range r.Partitions {
		wp := wirePartition{Object: p.Object, RowCount: p.RowCount, SizeBytes: p.SizeBytes}
		if len(p.Stats) > 0 {
			wp.Stats = make(map[string]wireMinMax, len(p.Stats))
			for col, mm := range p.Stats {
				lo, err := encodeValue(mm.Min)
				if err != nil {
					return nil, fmt.Errorf("manifest: encode min of %q: %w", col, err)
				}
				hi, err := encodeValue(mm.Max)
				if err != nil {
					return nil, fmt.Errorf("manifest: encode max of %q: %w", col, err)
				}
				wp.Stats[col] = wireMinMax{Min: lo, Max: hi}
			}
		}
		w.Partitions[i] = wp
	}

	raw, err := json.Marshal(&w)
	if err != nil {
		return nil, fmt.Errorf("manifest: encode record: %w", err)
	}
	payload := snappy.Encode(nil, raw)

	buf := make([]byte, headerSize, headerSize+len(payload))
	copy(buf[0:4], magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], uint32(r.Version))
	binary.LittleEndian.PutUint32(buf[8:12], crc32.ChecksumIEEE(payload))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(payload)))
	return append(buf, payload...), nil
}

// Decode parses and validates a _metadata file.
func Decode(data []byte) (*Record, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("file too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[0:4], magic[:]) {
		return nil, fmt.Errorf("bad magic %q", data[0:4])
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != FormatVersion {
		return nil, fmt.Errorf("unsupported format version %d", version)
	}
	crc := binary.LittleEndian.Uint32(data[8:12])
	length := binary.LittleEndian.Uint32(data[12:16])
	payload := data[headerSize:]
	if uint32(len(payload)) != length {
		return nil, fmt.Errorf("payload length %d, header says %d", len(payload), length)
	}
	if crc32.ChecksumIEEE(payload) != crc {
		return nil, fmt.Errorf("checksum mismatch")
	}

	raw, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, fmt.Errorf("snappy: %w", err)
	}
	var w wireRecord
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}

	r := &Record{
		Version:     w.Version,
		DatasetID:   w.DatasetID,
		Codec:       w.Codec,
		Schema:      w.Schema,
		IndexColumn: w.IndexColumn,
		Partitions:  make([]PartitionMeta, len(w.Partitions)),
		CreatedAt:   w.CreatedAt,
	}
	for i, wp := range w.Partitions {
		p := PartitionMeta{Object: wp.Object, RowCount: wp.RowCount, SizeBytes: wp.SizeBytes}
		if len(wp.Stats) > 0 {
			p.Stats = make(map[string]partition.MinMax, len(wp.Stats))
			for col, wm := range wp.Stats {
				def, _, ok := w.Schema.Lookup(col)
				if !ok {
					return nil, fmt.Errorf("partition %d has stats for unknown column %q", i, col)
				}
				lo, err := decodeValue(def.Type, wm.Min)
				if err != nil {
					return nil, fmt.Errorf("partition %d min of %q: %w", i, col, err)
				}
				hi, err := decodeValue(def.Type, wm.Max)
				if err != nil {
					return nil, fmt.Errorf("partition %d max of %q: %w", i, col, err)
				}
				p.Stats[col] = partition.MinMax{Min: lo, Max: hi}
			}
		}
		r.Partitions[i] = p
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func encodeValue(v any) (json.RawMessage, error) {
	if f, ok := v.(float64); ok && math.IsInf(f, 0) {
		return json.Marshal(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return json.Marshal(v)
}

func decodeValue(t types.DataType, raw json.RawMessage) (any, error) {
	switch t {
	case types.TypeInt32:
		var v int32
		err := json.Unmarshal(raw, &v)
		return v, err
	case types.TypeInt64:
		var v int64
		err := json.Unmarshal(raw, &v)
		return v, err
	case types.TypeFloat64:
		if len(raw) > 0 && raw[0] == '"' {
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				return nil, err
			}
			v, err := strconv.ParseFloat(text, 64)
			if err != nil || !math.IsInf(v, 0) {
				return nil, fmt.Errorf("invalid float bound %q", text)
			}
			return v, nil
		}
		var v float64
		err := json.Unmarshal(raw, &v)
		return v, err
	case types.TypeString:
		var v string
		err := json.Unmarshal(raw, &v)
		return v, err
	}
	return nil, fmt.Errorf("type %q has no statistics", t)
}
