// Package pgwire decodes the PostgreSQL binary COPY wire format.
package pgwire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Magic is the fixed 11-byte signature at the start of every COPY BINARY
// stream.
var Magic = [11]byte{'P', 'G', 'C', 'O', 'P', 'Y', '\n', 0xff, '\r', '\n', 0}

var (
	// ErrBadMagic is returned when the stream does not begin with the
	// expected COPY BINARY signature.
	ErrBadMagic = errors.New("pgwire: bad copy binary magic")
	// ErrBadFieldCount is returned when a tuple's field count is less
	// than the end-of-stream sentinel (-1).
	ErrBadFieldCount = errors.New("pgwire: negative field count")
	// ErrShortRead is returned when the stream ends before a length-
	// prefixed value is fully available.
	ErrShortRead = errors.New("pgwire: unexpected end of copy stream")
)

// EndOfStream is the field-count sentinel that terminates a COPY BINARY
// stream.
const EndOfStream = -1

// Null is the field/element length sentinel denoting SQL NULL.
const Null = -1

// Reader is a forward-only cursor over a COPY BINARY byte stream. It
// exposes the low-level framing (tuple field counts, field lengths) and a
// handful of typed decoders for fixed-width PostgreSQL binary
// representations. Reader never rewinds: once start_row or a field has
// been consumed, the bytes are gone.
type Reader struct {
	r   *bufio.Reader
	buf []byte // scratch reused across read_bytes calls
}

// NewReader wraps r, validates the COPY BINARY header (magic, flags,
// header extension) and returns a Reader positioned at the first tuple.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	var magic [11]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShortRead, err)
	}
	if magic != Magic {
		return nil, ErrBadMagic
	}

	var flags int32
	if err := binary.Read(br, binary.BigEndian, &flags); err != nil {
		return nil, fmt.Errorf("%w: reading flags: %v", ErrShortRead, err)
	}

	var extLen int32
	if err := binary.Read(br, binary.BigEndian, &extLen); err != nil {
		return nil, fmt.Errorf("%w: reading header extension length: %v", ErrShortRead, err)
	}
	if extLen < 0 {
		return nil, fmt.Errorf("%w: negative header extension length %d", ErrBadMagic, extLen)
	}
	if extLen > 0 {
		if _, err := io.CopyN(io.Discard, br, int64(extLen)); err != nil {
			return nil, fmt.Errorf("%w: skipping header extension: %v", ErrShortRead, err)
		}
	}

	return &Reader{r: br}, nil
}

// StartRow reads the Int16 field count that begins the next tuple. It
// returns ok=false once the end-of-stream sentinel (-1) has been read;
// the Reader must not be used again afterwards.
func (r *Reader) StartRow() (fieldCount int16, ok bool, err error) {
	var n int16
	if err := binary.Read(r.r, binary.BigEndian, &n); err != nil {
		return 0, false, fmt.Errorf("%w: reading field count: %v", ErrShortRead, err)
	}
	if n == EndOfStream {
		return 0, false, nil
	}
	if n < 0 {
		return 0, false, fmt.Errorf("%w: %d", ErrBadFieldCount, n)
	}
	return n, true, nil
}

// NextFieldLength reads the Int32 length prefix of the next field. A
// return value of Null (-1) means the field is SQL NULL and carries no
// payload bytes.
func (r *Reader) NextFieldLength() (int32, error) {
	var n int32
	if err := binary.Read(r.r, binary.BigEndian, &n); err != nil {
		return 0, fmt.Errorf("%w: reading field length: %v", ErrShortRead, err)
	}
	if n < Null {
		return 0, fmt.Errorf("%w: field length %d", ErrBadFieldCount, n)
	}
	return n, nil
}

// ReadBytes reads exactly n raw payload bytes. The returned slice is only
// valid until the next call into the Reader; callers that need to retain
// it must copy.
func (r *Reader) ReadBytes(n int32) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if cap(r.buf) < int(n) {
		r.buf = make([]byte, n)
	}
	buf := r.buf[:n]
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, fmt.Errorf("%w: reading %d field bytes: %v", ErrShortRead, n, err)
	}
	return buf, nil
}

// Skip discards n field/header bytes without returning them.
func (r *Reader) Skip(n int32) error {
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r.r, int64(n)); err != nil {
		return fmt.Errorf("%w: skipping %d bytes: %v", ErrShortRead, n, err)
	}
	return nil
}

// The following typed helpers decode a fixed-width value from b, a field
// payload that has already been read (e.g. by ReadBytes); they do not
// advance the Reader. Length validation (NULL, size) is the caller's
// responsibility — see ColumnWriter.

func (r *Reader) ReadBool(b []byte) bool { return b[0] != 0 }

func (r *Reader) ReadInt16(b []byte) int16 { return int16(binary.BigEndian.Uint16(b)) }

func (r *Reader) ReadInt32(b []byte) int32 { return int32(binary.BigEndian.Uint32(b)) }

func (r *Reader) ReadInt64(b []byte) int64 { return int64(binary.BigEndian.Uint64(b)) }

func (r *Reader) ReadUint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

func (r *Reader) ReadFloat32(b []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}

func (r *Reader) ReadFloat64(b []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

func (r *Reader) ReadText(b []byte) string { return string(b) }

// ArrayHeader is the fixed portion of an array_recv payload.
type ArrayHeader struct {
	NDim        int32
	HasNulls    bool
	ElementOID  uint32
	Dims        []int32 // length per dimension
	LowerBounds []int32
}

// ReadArrayHeader parses the ndim/has_nulls/element_oid/(dim,lower_bound)*
// prefix of an array payload. b must be the full field payload; the
// returned offset is where element framing begins.
func (r *Reader) ReadArrayHeader(b []byte) (ArrayHeader, int, error) {
	if len(b) < 12 {
		return ArrayHeader{}, 0, fmt.Errorf("%w: array header truncated", ErrShortRead)
	}
	ndim := r.ReadInt32(b[0:4])
	hasNulls := r.ReadInt32(b[4:8]) != 0
	elemOID := r.ReadUint32(b[8:12])
	off := 12
	dims := make([]int32, ndim)
	lower := make([]int32, ndim)
	for i := int32(0); i < ndim; i++ {
		if len(b) < off+8 {
			return ArrayHeader{}, 0, fmt.Errorf("%w: array dimension %d truncated", ErrShortRead, i)
		}
		dims[i] = r.ReadInt32(b[off : off+4])
		lower[i] = r.ReadInt32(b[off+4 : off+8])
		off += 8
	}
	return ArrayHeader{NDim: ndim, HasNulls: hasNulls, ElementOID: elemOID, Dims: dims, LowerBounds: lower}, off, nil
}

// ArrayElement is one (length, bytes|NULL) entry within a flattened array
// payload.
type ArrayElement struct {
	Length int32 // Null (-1) denotes a SQL NULL element
	Bytes  []byte
}

// ArrayElements walks the flattened, row-major element region of an array
// payload starting at off (as returned by ReadArrayHeader) and returns
// every element in order.
func (r *Reader) ArrayElements(b []byte, off int, total int) ([]ArrayElement, error) {
	elems := make([]ArrayElement, 0, total)
	for i := 0; i < total; i++ {
		if len(b) < off+4 {
			return nil, fmt.Errorf("%w: array element %d length truncated", ErrShortRead, i)
		}
		n := r.ReadInt32(b[off : off+4])
		off += 4
		if n == Null {
			elems = append(elems, ArrayElement{Length: Null})
			continue
		}
		if len(b) < off+int(n) {
			return nil, fmt.Errorf("%w: array element %d payload truncated", ErrShortRead, i)
		}
		elems = append(elems, ArrayElement{Length: n, Bytes: b[off : off+int(n)]})
		off += int(n)
	}
	return elems, nil
}

// CompositeField is one (type_oid, length, bytes|NULL) entry within a
// composite (row type) payload.
type CompositeField struct {
	TypeOID uint32
	Length  int32 // Null (-1) denotes a SQL NULL field
	Bytes   []byte
}

// CompositeFields parses a full composite payload: Int32 field count,
// then per field (Int32 type_oid, Int32 length, bytes|-1).
func (r *Reader) CompositeFields(b []byte) ([]CompositeField, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("%w: composite header truncated", ErrShortRead)
	}
	count := r.ReadInt32(b[0:4])
	if count < 0 {
		return nil, fmt.Errorf("%w: composite field count %d", ErrBadFieldCount, count)
	}
	off := 4
	fields := make([]CompositeField, 0, count)
	for i := int32(0); i < count; i++ {
		if len(b) < off+8 {
			return nil, fmt.Errorf("%w: composite field %d header truncated", ErrShortRead, i)
		}
		oid := r.ReadUint32(b[off : off+4])
		n := r.ReadInt32(b[off+4 : off+8])
		off += 8
		if n == Null {
			fields = append(fields, CompositeField{TypeOID: oid, Length: Null})
			continue
		}
		if len(b) < off+int(n) {
			return nil, fmt.Errorf("%w: composite field %d payload truncated", ErrShortRead, i)
		}
		fields = append(fields, CompositeField{TypeOID: oid, Length: n, Bytes: b[off : off+int(n)]})
		off += int(n)
	}
	return fields, nil
}

// RangeFlags are the bit meanings of a range payload's leading flag byte.
const (
	RangeEmpty           = 0x01
	RangeLowerInclusive  = 0x02
	RangeUpperInclusive  = 0x04
	RangeLowerInf        = 0x08
	RangeUpperInf        = 0x10
)

// RangeValue is a decoded range payload.
type RangeValue struct {
	Flags          byte
	Empty          bool
	LowerInf       bool
	UpperInf       bool
	LowerInclusive bool
	UpperInclusive bool
	Lower          []byte // nil when LowerInf or Empty
	Upper          []byte // nil when UpperInf or Empty
}

// ReadRangeValue parses a range payload: 1 flag byte, then (unless infinite or
// empty) an Int32 length + bytes for lower and the same for upper.
func (r *Reader) ReadRangeValue(b []byte) (RangeValue, error) {
	if len(b) < 1 {
		return RangeValue{}, fmt.Errorf("%w: range payload truncated", ErrShortRead)
	}
	flags := b[0]
	rv := RangeValue{
		Flags:          flags,
		Empty:          flags&RangeEmpty != 0,
		LowerInf:       flags&RangeLowerInf != 0,
		UpperInf:       flags&RangeUpperInf != 0,
		LowerInclusive: flags&RangeLowerInclusive != 0,
		UpperInclusive: flags&RangeUpperInclusive != 0,
	}
	off := 1
	if rv.Empty {
		return rv, nil
	}
	if !rv.LowerInf {
		if len(b) < off+4 {
			return RangeValue{}, fmt.Errorf("%w: range lower bound length truncated", ErrShortRead)
		}
		n := r.ReadInt32(b[off : off+4])
		off += 4
		if len(b) < off+int(n) {
			return RangeValue{}, fmt.Errorf("%w: range lower bound payload truncated", ErrShortRead)
		}
		rv.Lower = b[off : off+int(n)]
		off += int(n)
	}
	if !rv.UpperInf {
		if len(b) < off+4 {
			return RangeValue{}, fmt.Errorf("%w: range upper bound length truncated", ErrShortRead)
		}
		n := r.ReadInt32(b[off : off+4])
		off += 4
		if len(b) < off+int(n) {
			return RangeValue{}, fmt.Errorf("%w: range upper bound payload truncated", ErrShortRead)
		}
		rv.Upper = b[off : off+int(n)]
		off += int(n)
	}
	return rv, nil
}
