package columnwriter

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/airframesio/pgparquet/internal/pgwire"
)

func field(b []byte) []byte {
	var buf bytes.Buffer
	if b == nil {
		binary.Write(&buf, binary.BigEndian, int32(pgwire.Null))
		return buf.Bytes()
	}
	binary.Write(&buf, binary.BigEndian, int32(len(b)))
	buf.Write(b)
	return buf.Bytes()
}

func int32Bytes(v int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	return b
}

func newFieldReader(t *testing.T, b []byte) *pgwire.Reader {
	t.Helper()
	var stream bytes.Buffer
	stream.Write(pgwire.Magic[:])
	binary.Write(&stream, binary.BigEndian, int32(0))
	binary.Write(&stream, binary.BigEndian, int32(0))
	binary.Write(&stream, binary.BigEndian, int16(1))
	stream.Write(b)
	binary.Write(&stream, binary.BigEndian, int16(pgwire.EndOfStream))

	r, err := pgwire.NewReader(bytes.NewReader(stream.Bytes()))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if _, ok, err := r.StartRow(); err != nil || !ok {
		t.Fatalf("StartRow: ok=%v err=%v", ok, err)
	}
	return r
}

func TestLeaf_RequiredInt4_RoundTrip(t *testing.T) {
	w := NewLeaf(0, 0, 0, false, decodeInt32)

	r := newFieldReader(t, field(int32Bytes(42)))
	if err := w.ConsumeField(r); err != nil {
		t.Fatalf("ConsumeField: %v", err)
	}

	chunks := w.Flush()
	if len(chunks) != 1 || len(chunks[0].Values) != 1 {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
	v := chunks[0].Values[0]
	if v.Int32() != 42 {
		t.Fatalf("expected 42, got %d", v.Int32())
	}
	if v.DefinitionLevel() != 0 || v.RepetitionLevel() != 0 {
		t.Fatalf("expected levels (0,0), got (%d,%d)", v.RepetitionLevel(), v.DefinitionLevel())
	}
}

func TestLeaf_OptionalInt4_NullUsesMaxDefMinusOne(t *testing.T) {
	w := NewLeaf(0, 1, 0, true, decodeInt32)

	r := newFieldReader(t, field(nil))
	if err := w.ConsumeField(r); err != nil {
		t.Fatalf("ConsumeField: %v", err)
	}

	chunks := w.Flush()
	v := chunks[0].Values[0]
	if !v.IsNull() {
		t.Fatal("expected a null value")
	}
	if v.DefinitionLevel() != 0 {
		t.Fatalf("expected defLevel 0 (maxDef-1), got %d", v.DefinitionLevel())
	}
}

func TestLeaf_RowCountMatchesConsumeCalls(t *testing.T) {
	w := NewLeaf(0, 1, 0, true, decodeInt32)
	for i, val := range []*int32{ptr(1), nil, ptr(3)} {
		var f []byte
		if val == nil {
			f = field(nil)
		} else {
			f = field(int32Bytes(*val))
		}
		r := newFieldReader(t, f)
		if err := w.ConsumeField(r); err != nil {
			t.Fatalf("row %d: ConsumeField: %v", i, err)
		}
	}
	chunks := w.Flush()
	if len(chunks[0].Values) != 3 {
		t.Fatalf("expected 3 buffered values (one per row), got %d", len(chunks[0].Values))
	}
}

func ptr[T any](v T) *T { return &v }

func buildArrayPayload(elems []*int32) []byte {
	var buf bytes.Buffer
	buf.Write(int32Bytes(1)) // ndim
	hasNulls := int32(0)
	for _, e := range elems {
		if e == nil {
			hasNulls = 1
		}
	}
	buf.Write(int32Bytes(hasNulls))
	buf.Write(int32Bytes(23)) // element oid (int4)
	buf.Write(int32Bytes(int32(len(elems))))
	buf.Write(int32Bytes(1)) // lower bound
	for _, e := range elems {
		if e == nil {
			buf.Write(int32Bytes(pgwire.Null))
			continue
		}
		buf.Write(int32Bytes(4))
		buf.Write(int32Bytes(*e))
	}
	return buf.Bytes()
}

func newIntArrayList() *List {
	elem := NewLeaf(0, 3, 1, true, decodeInt32) // base=1, elem optional => def 1+2=3
	return NewList(1, 0, true, elem)
}

func TestList_NonEmptyArray_FirstElementUsesEnclosingRepLevel(t *testing.T) {
	w := newIntArrayList()
	r := newFieldReader(t, field(buildArrayPayload([]*int32{ptr(10), ptr(20), ptr(30)})))
	if err := w.ConsumeField(r); err != nil {
		t.Fatalf("ConsumeField: %v", err)
	}

	chunks := w.Flush()
	values := chunks[0].Values
	if len(values) != 3 {
		t.Fatalf("expected 3 leaf values, got %d", len(values))
	}
	if values[0].RepetitionLevel() != 0 {
		t.Fatalf("expected first element repLevel 0, got %d", values[0].RepetitionLevel())
	}
	for i := 1; i < 3; i++ {
		if values[i].RepetitionLevel() != 1 {
			t.Fatalf("element %d: expected repLevel 1, got %d", i, values[i].RepetitionLevel())
		}
	}
	for i, want := range []int32{10, 20, 30} {
		if values[i].Int32() != want {
			t.Fatalf("element %d: expected %d, got %d", i, want, values[i].Int32())
		}
		if values[i].DefinitionLevel() != 3 {
			t.Fatalf("element %d: expected defLevel 3, got %d", i, values[i].DefinitionLevel())
		}
	}
}

func TestList_NullArray_SingleNullPlaceholder(t *testing.T) {
	w := newIntArrayList()
	r := newFieldReader(t, field(nil))
	if err := w.ConsumeField(r); err != nil {
		t.Fatalf("ConsumeField: %v", err)
	}

	values := w.Flush()[0].Values
	if len(values) != 1 {
		t.Fatalf("expected exactly one placeholder for a null array, got %d", len(values))
	}
	if !values[0].IsNull() {
		t.Fatal("expected a null value")
	}
	if values[0].DefinitionLevel() != 1 {
		t.Fatalf("expected defLevel 1 (list absent), got %d", values[0].DefinitionLevel())
	}
	if values[0].RepetitionLevel() != 0 {
		t.Fatalf("expected repLevel 0, got %d", values[0].RepetitionLevel())
	}
}

func TestList_EmptyArray_DistinctFromNull(t *testing.T) {
	w := newIntArrayList()
	r := newFieldReader(t, field(buildArrayPayload(nil)))
	if err := w.ConsumeField(r); err != nil {
		t.Fatalf("ConsumeField: %v", err)
	}

	values := w.Flush()[0].Values
	if len(values) != 1 {
		t.Fatalf("expected exactly one placeholder for an empty array, got %d", len(values))
	}
	if values[0].DefinitionLevel() != 2 {
		t.Fatalf("expected defLevel 2 (list present, empty), got %d", values[0].DefinitionLevel())
	}
}

func TestList_ElementNull_DistinctFromFullyNull(t *testing.T) {
	w := newIntArrayList()
	r := newFieldReader(t, field(buildArrayPayload([]*int32{nil})))
	if err := w.ConsumeField(r); err != nil {
		t.Fatalf("ConsumeField: %v", err)
	}

	values := w.Flush()[0].Values
	if len(values) != 1 {
		t.Fatalf("expected one value, got %d", len(values))
	}
	if values[0].DefinitionLevel() != 2 {
		t.Fatalf("expected defLevel 2 (present element slot, null value), got %d", values[0].DefinitionLevel())
	}
	if !values[0].IsNull() {
		t.Fatal("expected the element itself to be null")
	}
}

func buildCompositePayload(fields []struct {
	oid uint32
	b   []byte // nil means SQL NULL
}) []byte {
	var buf bytes.Buffer
	buf.Write(int32Bytes(int32(len(fields))))
	for _, f := range fields {
		buf.Write(int32Bytes(int32(f.oid)))
		if f.b == nil {
			buf.Write(int32Bytes(pgwire.Null))
			continue
		}
		buf.Write(int32Bytes(int32(len(f.b))))
		buf.Write(f.b)
	}
	return buf.Bytes()
}

func TestStruct_NullStruct_AllFieldsShareStructDefLevel(t *testing.T) {
	a := NewLeaf(0, 2, 0, true, decodeInt32)
	b := NewLeaf(1, 2, 0, true, decodeText)
	s := NewStruct(0, true, []Writer{a, b})

	r := newFieldReader(t, field(nil))
	if err := s.ConsumeField(r); err != nil {
		t.Fatalf("ConsumeField: %v", err)
	}

	chunks := s.Flush()
	for _, c := range chunks {
		if len(c.Values) != 1 || !c.Values[0].IsNull() {
			t.Fatalf("expected a single null placeholder, got %+v", c.Values)
		}
		if c.Values[0].DefinitionLevel() != 0 {
			t.Fatalf("expected defLevel 0 (struct's own Base), got %d", c.Values[0].DefinitionLevel())
		}
	}
}

func TestStruct_PresentStructWithOneNullField(t *testing.T) {
	a := NewLeaf(0, 2, 0, true, decodeInt32)
	b := NewLeaf(1, 2, 0, true, decodeText)
	s := NewStruct(0, true, []Writer{a, b})

	payload := buildCompositePayload([]struct {
		oid uint32
		b   []byte
	}{
		{oid: 23, b: int32Bytes(7)},
		{oid: 25, b: nil},
	})
	r := newFieldReader(t, field(payload))
	if err := s.ConsumeField(r); err != nil {
		t.Fatalf("ConsumeField: %v", err)
	}

	chunks := s.Flush()
	if chunks[0].Values[0].Int32() != 7 {
		t.Fatalf("expected field a=7, got %d", chunks[0].Values[0].Int32())
	}
	if chunks[0].Values[0].DefinitionLevel() != 2 {
		t.Fatalf("expected field a defLevel 2 (present), got %d", chunks[0].Values[0].DefinitionLevel())
	}
	if !chunks[1].Values[0].IsNull() {
		t.Fatal("expected field b to be null")
	}
	if chunks[1].Values[0].DefinitionLevel() != 1 {
		t.Fatalf("expected field b defLevel 1 (struct present, field absent), got %d", chunks[1].Values[0].DefinitionLevel())
	}
}

func TestColumnIndicesAssignedInFlushOrder(t *testing.T) {
	a := NewLeaf(5, 1, 0, true, decodeInt32)
	b := NewLeaf(6, 1, 0, true, decodeText)
	s := NewStruct(0, false, []Writer{a, b})

	chunks := s.Flush()
	if chunks[0].ColumnIndex != 5 || chunks[1].ColumnIndex != 6 {
		t.Fatalf("unexpected column indices: %d, %d", chunks[0].ColumnIndex, chunks[1].ColumnIndex)
	}
}

func TestReset_ClearsBufferedValues(t *testing.T) {
	w := NewLeaf(0, 0, 0, false, decodeInt32)
	r := newFieldReader(t, field(int32Bytes(1)))
	if err := w.ConsumeField(r); err != nil {
		t.Fatalf("ConsumeField: %v", err)
	}
	w.Reset()
	if len(w.Flush()[0].Values) != 0 {
		t.Fatal("expected Reset to clear buffered values")
	}
}
