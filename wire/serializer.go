// Package wire implements a compact self-describing binary serializer for
// nested ordered sequences, maps, primitives, strings and UUIDs, plus the
// event codec built on top of it.
//
// The scheme is deliberately small: every value is prefixed by a one-byte
// marker identifying its kind, so a decoder never needs a schema to walk a
// value it has never seen before. Sequences and maps carry their own
// length so decoding never over-reads.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrMalformed is returned for any input that does not parse as a
// well-formed value under this scheme.
var ErrMalformed = errors.New("wire: malformed value")

// Marker bytes. Kept well under 0x20 so there is room to grow without
// colliding with ASCII payloads that might get embedded for debugging.
const (
	markerNil byte = iota
	markerBool
	markerInt
	markerString
	markerBytes
	markerUUID
	markerArray
	markerMap
)

// Put* family encode a single value onto buf. Get* family decode a single
// value from a *bytes.Reader, advancing it past the value.

// PutNil writes the nil marker.
func PutNil(buf *bytes.Buffer) {
	buf.WriteByte(markerNil)
}

// PutBool writes a boolean.
func PutBool(buf *bytes.Buffer, v bool) {
	buf.WriteByte(markerBool)
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

// PutInt writes a signed integer using a variable-length zig-zag encoding.
func PutInt(buf *bytes.Buffer, v int64) {
	buf.WriteByte(markerInt)
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], v)
	buf.Write(tmp[:n])
}

// PutString writes a UTF-8 string with a varint length prefix.
func PutString(buf *bytes.Buffer, s string) {
	buf.WriteByte(markerString)
	putUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

// PutBytes writes an opaque byte blob with a varint length prefix.
func PutBytes(buf *bytes.Buffer, b []byte) {
	buf.WriteByte(markerBytes)
	putUvarint(buf, uint64(len(b)))
	buf.Write(b)
}

// PutUUID writes a 16-byte UUID.
func PutUUID(buf *bytes.Buffer, id uuid.UUID) {
	buf.WriteByte(markerUUID)
	buf.Write(id[:])
}

// ArrayWriter collects an ordered sequence of values and writes the
// marker+length header once the full element count is known.
type ArrayWriter struct {
	buf  *bytes.Buffer
	body bytes.Buffer
	n    uint64
}

// NewArray starts a new array value.
func NewArray(buf *bytes.Buffer) *ArrayWriter {
	return &ArrayWriter{buf: buf}
}

// Elem returns the buffer elements should be appended to.
func (a *ArrayWriter) Elem() *bytes.Buffer {
	a.n++
	return &a.body
}

// Close finalizes the array into the parent buffer.
func (a *ArrayWriter) Close() {
	a.buf.WriteByte(markerArray)
	putUvarint(a.buf, a.n)
	a.buf.Write(a.body.Bytes())
}

// MapWriter collects an ordered sequence of key/value string pairs.
type MapWriter struct {
	buf  *bytes.Buffer
	body bytes.Buffer
	n    uint64
}

// NewMap starts a new map value.
func NewMap(buf *bytes.Buffer) *MapWriter {
	return &MapWriter{buf: buf}
}

// Put writes one key/value pair. Values are written with the Put* helpers
// above onto the returned buffer.
func (m *MapWriter) Put(key string) *bytes.Buffer {
	m.n++
	putUvarint(&m.body, uint64(len(key)))
	m.body.WriteString(key)
	return &m.body
}

// Close finalizes the map into the parent buffer.
func (m *MapWriter) Close() {
	m.buf.WriteByte(markerMap)
	putUvarint(m.buf, m.n)
	m.buf.Write(m.body.Bytes())
}

func putUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

// Reader decodes a stream of values written by the Put* helpers above.
type Reader struct {
	r *bytes.Reader
}

// NewReader wraps raw bytes for decoding.
func NewReader(b []byte) *Reader {
	return &Reader{r: bytes.NewReader(b)}
}

func (r *Reader) marker() (byte, error) {
	return r.r.ReadByte()
}

func (r *Reader) uvarint() (uint64, error) {
	return binary.ReadUvarint(r.r)
}

func (r *Reader) varint() (int64, error) {
	return binary.ReadVarint(r.r)
}

// Int decodes a signed integer, verifying the marker.
func (r *Reader) Int() (int64, error) {
	m, err := r.marker()
	if err != nil {
		return 0, ErrMalformed
	}
	if m != markerInt {
		return 0, fmt.Errorf("%w: expected int marker, got %d", ErrMalformed, m)
	}
	v, err := r.varint()
	if err != nil {
		return 0, ErrMalformed
	}
	return v, nil
}

// Bool decodes a boolean, verifying the marker.
func (r *Reader) Bool() (bool, error) {
	m, err := r.marker()
	if err != nil {
		return false, ErrMalformed
	}
	if m != markerBool {
		return false, fmt.Errorf("%w: expected bool marker, got %d", ErrMalformed, m)
	}
	b, err := r.r.ReadByte()
	if err != nil {
		return false, ErrMalformed
	}
	return b != 0, nil
}

// String decodes a UTF-8 string, verifying the marker.
func (r *Reader) String() (string, error) {
	m, err := r.marker()
	if err != nil {
		return "", ErrMalformed
	}
	if m != markerString {
		return "", fmt.Errorf("%w: expected string marker, got %d", ErrMalformed, m)
	}
	n, err := r.uvarint()
	if err != nil {
		return "", ErrMalformed
	}
	b := make([]byte, n)
	if _, err := readFull(r.r, b); err != nil {
		return "", ErrMalformed
	}
	return string(b), nil
}

// Bytes decodes an opaque byte blob, verifying the marker.
func (r *Reader) Bytes() ([]byte, error) {
	m, err := r.marker()
	if err != nil {
		return nil, ErrMalformed
	}
	if m != markerBytes {
		return nil, fmt.Errorf("%w: expected bytes marker, got %d", ErrMalformed, m)
	}
	n, err := r.uvarint()
	if err != nil {
		return nil, ErrMalformed
	}
	b := make([]byte, n)
	if _, err := readFull(r.r, b); err != nil {
		return nil, ErrMalformed
	}
	return b, nil
}

// UUID decodes a 16-byte UUID, verifying the marker.
func (r *Reader) UUID() (uuid.UUID, error) {
	var id uuid.UUID
	m, err := r.marker()
	if err != nil {
		return id, ErrMalformed
	}
	if m != markerUUID {
		return id, fmt.Errorf("%w: expected uuid marker, got %d", ErrMalformed, m)
	}
	if _, err := readFull(r.r, id[:]); err != nil {
		return id, ErrMalformed
	}
	return id, nil
}

// IsNil peeks at the next marker and consumes it if it is nil, reporting
// whether it was.
func (r *Reader) IsNil() (bool, error) {
	m, err := r.marker()
	if err != nil {
		return false, ErrMalformed
	}
	if m == markerNil {
		return true, nil
	}
	if err := r.r.UnreadByte(); err != nil {
		return false, ErrMalformed
	}
	return false, nil
}

// ArrayLen decodes an array header and returns its element count.
func (r *Reader) ArrayLen() (uint64, error) {
	m, err := r.marker()
	if err != nil {
		return 0, ErrMalformed
	}
	if m != markerArray {
		return 0, fmt.Errorf("%w: expected array marker, got %d", ErrMalformed, m)
	}
	return r.uvarint()
}

// MapLen decodes a map header and returns its pair count.
func (r *Reader) MapLen() (uint64, error) {
	m, err := r.marker()
	if err != nil {
		return 0, ErrMalformed
	}
	if m != markerMap {
		return 0, fmt.Errorf("%w: expected map marker, got %d", ErrMalformed, m)
	}
	return r.uvarint()
}

// MapKey decodes the next map key (a length-prefixed string, no marker byte
// since map keys are always strings).
func (r *Reader) MapKey() (string, error) {
	n, err := r.uvarint()
	if err != nil {
		return "", ErrMalformed
	}
	b := make([]byte, n)
	if _, err := readFull(r.r, b); err != nil {
		return "", ErrMalformed
	}
	return string(b), nil
}

// StringMap decodes a map value where every value is itself a string
// (used for the node/neighbour payload map).
func (r *Reader) StringMap() (map[string]string, error) {
	n, err := r.MapLen()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, n)
	for i := uint64(0); i < n; i++ {
		k, err := r.MapKey()
		if err != nil {
			return nil, err
		}
		v, err := r.String()
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// PutStringMap writes a string->string map in key order as given by keys,
// to keep encoding deterministic for tests.
func PutStringMap(buf *bytes.Buffer, m map[string]string, keys []string) {
	w := NewMap(buf)
	for _, k := range keys {
		PutString(w.Put(k), m[k])
	}
	w.Close()
}

func readFull(r *bytes.Reader, b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	n := 0
	for n < len(b) {
		m, err := r.Read(b[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Remaining reports how many unread bytes remain. The decoders in this
// package do not call it; trailing bytes after a value are not rejected.
func (r *Reader) Remaining() int {
	return r.r.Len()
}
