package aegisvault

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// minMetadataSize is a floor for Options.MaxMetadataSize; any encrypted
// empty map fits.
const minMetadataSize = 256

// encodeMetadata serializes the blob map as
// count || (keyLen || key || valLen || val)*, keys in sorted order
func encodeMetadata(m map[string][]byte) []byte {
	keys := make([]string, 0, len(m))
	size := 4
	for k, v := range m {
		keys = append(keys, k)
		size += 8 + len(k) + len(v)
	}
	sort.Strings(keys)

	buf := make([]byte, 0, size)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(m)))
	for _, k := range keys {
		v := m[k]
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(k)))
		buf = append(buf, k...)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
		buf = append(buf, v...)
	}
	return buf
}

// metadataSize is the encoded length of m without encoding it
func metadataSize(m map[string][]byte) int64 {
	size := int64(4)
	for k, v := range m {
		size += 8 + int64(len(k)) + int64(len(v))
	}
	return size
}

// decodeMetadata parses the output of encodeMetadata
func decodeMetadata(data []byte) (map[string][]byte, error) {
	r := &byteReader{data: data}
	count, err := r.uint32()
	if err != nil {
		return nil, err
	}
	// each entry needs at least 8 bytes of length prefixes
	if uint64(count)*8 > uint64(r.remaining()) {
		return nil, NewFormatError("", fmt.Sprintf("metadata entry count %d exceeds data size", count), nil)
	}

	m := make(map[string][]byte, count)
	for i := uint32(0); i < count; i++ {
		key, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		val, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		m[string(key)] = val
	}
	if r.remaining() != 0 {
		return nil, NewFormatError("", "trailing bytes after metadata map", nil)
	}
	return m, nil
}

// byteReader decodes big-endian fields, reporting truncation as FormatError
type byteReader struct {
	data []byte
	off  int
}

func (r *byteReader) remaining() int {
	return len(r.data) - r.off
}

func (r *byteReader) need(n int) error {
	if n < 0 || r.remaining() < n {
		return NewFormatError("", fmt.Sprintf("truncated data: need %d bytes at offset %d, have %d", n, r.off, r.remaining()), nil)
	}
	return nil
}

func (r *byteReader) uint8() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

func (r *byteReader) uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

func (r *byteReader) uint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v, nil
}

// lenPrefixed reads a 4-byte length followed by that many bytes, copied out
func (r *byteReader) lenPrefixed() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(r.remaining()) {
		return nil, NewFormatError("", fmt.Sprintf("length %d exceeds remaining %d bytes", n, r.remaining()), nil)
	}
	out := make([]byte, n)
	copy(out, r.data[r.off:r.off+int(n)])
	r.off += int(n)
	return out, nil
}
