// Package columnwriter implements the per-result-column writers that sit
// between the wire reader and the row group flusher: one writer per top
// level result column, each owning scratch buffers of (value, defLevel,
// repLevel) and knowing how to consume one field and later flush typed,
// leveled column chunks.
package columnwriter

import (
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/airframesio/pgparquet/internal/pgwire"
)

// Chunk is one leaf descendant's accumulated column values, ready to be
// handed to the Parquet library.
type Chunk struct {
	ColumnIndex int
	Values      []parquet.Value
}

// Writer is the capability set every column-writer variant implements:
// Leaf, List and Struct (and Range, a fixed-shape Struct).
type Writer interface {
	// ConsumeField advances r past exactly one top-level tuple field and
	// appends one logical row's worth of buffered state.
	ConsumeField(r *pgwire.Reader) error

	// Flush returns one Chunk per leaf descendant. Values are not
	// cleared; call Reset afterwards.
	Flush() []Chunk

	// Reset clears buffered values without releasing their capacity.
	Reset()

	// consume appends a value decoded from b (or a null marker when
	// isNull) at repetition level rep. Definition levels are computed
	// internally from the writer's own cumulative depth. Used by
	// ConsumeField and by enclosing List/Struct writers once they've
	// already extracted b from a composite/array payload.
	consume(b []byte, isNull bool, rep int) error

	// consumeNull forces every leaf descendant to append a placeholder
	// at the exact (rep, def) given by an enclosing writer that has
	// already decided "nothing is present below this point" (a null
	// struct, a null or empty list, a null range).
	consumeNull(rep, def int) error

	maxDef() int
	maxRep() int
}

func consumeTopLevelField(r *pgwire.Reader, consume func(b []byte, isNull bool, rep int) error) error {
	n, err := r.NextFieldLength()
	if err != nil {
		return err
	}
	if n == pgwire.Null {
		return consume(nil, true, 0)
	}
	b, err := r.ReadBytes(n)
	if err != nil {
		return err
	}
	return consume(b, false, 0)
}

// Decoder decodes one field's raw binary payload into a Go value
// suitable for parquet.ValueOf.
type Decoder func(b []byte) (any, error)

// Leaf decodes one scalar field per row.
type Leaf struct {
	ColIndex int
	Def      int // this leaf's own maxDefLevel (cumulative, including itself if optional)
	Rep      int // this leaf's own maxRepLevel (cumulative)
	Optional bool
	Decode   Decoder

	values []parquet.Value
}

func NewLeaf(colIndex, def, rep int, optional bool, decode Decoder) *Leaf {
	return &Leaf{ColIndex: colIndex, Def: def, Rep: rep, Optional: optional, Decode: decode}
}

func (w *Leaf) maxDef() int { return w.Def }
func (w *Leaf) maxRep() int { return w.Rep }

func (w *Leaf) consume(b []byte, isNull bool, rep int) error {
	if isNull {
		w.values = append(w.values, parquet.Value{}.Level(rep, w.Def-1, w.ColIndex))
		return nil
	}
	v, err := w.Decode(b)
	if err != nil {
		return fmt.Errorf("columnwriter: decoding column %d: %w", w.ColIndex, err)
	}
	w.values = append(w.values, parquet.ValueOf(v).Level(rep, w.Def, w.ColIndex))
	return nil
}

func (w *Leaf) consumeNull(rep, def int) error {
	w.values = append(w.values, parquet.Value{}.Level(rep, def, w.ColIndex))
	return nil
}

func (w *Leaf) ConsumeField(r *pgwire.Reader) error {
	return consumeTopLevelField(r, w.consume)
}

func (w *Leaf) Flush() []Chunk {
	return []Chunk{{ColumnIndex: w.ColIndex, Values: w.values}}
}

func (w *Leaf) Reset() { w.values = w.values[:0] }

// Struct decodes a composite (row type) field into an ordered set of
// child writers, one per composite field.
type Struct struct {
	Base     int // defLevel representing "this struct is absent"
	Optional bool
	Fields   []Writer
}

func NewStruct(base int, optional bool, fields []Writer) *Struct {
	return &Struct{Base: base, Optional: optional, Fields: fields}
}

func (w *Struct) presentDef() int {
	if w.Optional {
		return w.Base + 1
	}
	return w.Base
}

func (w *Struct) maxDef() int {
	max := 0
	for _, f := range w.Fields {
		if d := f.maxDef(); d > max {
			max = d
		}
	}
	return max
}

func (w *Struct) maxRep() int {
	max := 0
	for _, f := range w.Fields {
		if r := f.maxRep(); r > max {
			max = r
		}
	}
	return max
}

func (w *Struct) consume(b []byte, isNull bool, rep int) error {
	if isNull {
		return w.consumeNull(rep, w.Base)
	}

	reader := &pgwire.Reader{}
	fields, err := reader.CompositeFields(b)
	if err != nil {
		return err
	}
	if len(fields) != len(w.Fields) {
		return fmt.Errorf("columnwriter: composite has %d fields, schema expects %d", len(fields), len(w.Fields))
	}
	for i, cf := range fields {
		if cf.Length == pgwire.Null {
			if err := w.Fields[i].consumeNull(rep, w.presentDef()); err != nil {
				return err
			}
			continue
		}
		if err := w.Fields[i].consume(cf.Bytes, false, rep); err != nil {
			return err
		}
	}
	return nil
}

func (w *Struct) consumeNull(rep, def int) error {
	for _, f := range w.Fields {
		if err := f.consumeNull(rep, def); err != nil {
			return err
		}
	}
	return nil
}

func (w *Struct) ConsumeField(r *pgwire.Reader) error {
	return consumeTopLevelField(r, w.consume)
}

func (w *Struct) Flush() []Chunk {
	var chunks []Chunk
	for _, f := range w.Fields {
		chunks = append(chunks, f.Flush()...)
	}
	return chunks
}

func (w *Struct) Reset() {
	for _, f := range w.Fields {
		f.Reset()
	}
}

// List decodes an array field. It implements the single-level repetition
// rule of §4.3: first element inherits the enclosing context's
// repetition level ("new row"), subsequent elements use the list's own
// maxRepLevel.
type List struct {
	Base         int // defLevel of everything above this list (the list's own "null" level)
	BaseRep      int // repLevel of everything above this list
	OwnRep       int // BaseRep+1: repLevel used for the 2nd..nth element
	ElemOptional bool
	Elem         Writer
}

func NewList(base, baseRep int, elemOptional bool, elem Writer) *List {
	return &List{Base: base, BaseRep: baseRep, OwnRep: baseRep + 1, ElemOptional: elemOptional, Elem: elem}
}

func (w *List) emptyDef() int   { return w.Base + 1 }
func (w *List) presentDef() int { return w.Elem.maxDef() }

func (w *List) maxDef() int { return w.Elem.maxDef() }
func (w *List) maxRep() int { return w.Elem.maxRep() }

func (w *List) consume(b []byte, isNull bool, rep int) error {
	if isNull {
		return w.consumeNull(rep, w.Base)
	}

	reader := &pgwire.Reader{}
	hdr, off, err := reader.ReadArrayHeader(b)
	if err != nil {
		return err
	}
	total := 1
	for _, d := range hdr.Dims {
		total *= int(d)
	}
	if hdr.NDim == 0 || total == 0 {
		return w.Elem.consumeNull(rep, w.emptyDef())
	}

	elems, err := reader.ArrayElements(b, off, total)
	if err != nil {
		return err
	}
	for i, e := range elems {
		r := rep
		if i > 0 {
			r = w.OwnRep
		}
		if e.Length == pgwire.Null {
			if err := w.Elem.consumeNull(r, w.presentDef()-1); err != nil {
				return err
			}
			continue
		}
		if err := w.Elem.consume(e.Bytes, false, r); err != nil {
			return err
		}
	}
	return nil
}

func (w *List) consumeNull(rep, def int) error {
	return w.Elem.consumeNull(rep, def)
}

func (w *List) ConsumeField(r *pgwire.Reader) error {
	return consumeTopLevelField(r, w.consume)
}

func (w *List) Flush() []Chunk { return w.Elem.Flush() }
func (w *List) Reset()         { w.Elem.Reset() }

// Range decodes a range field into its five-member struct shape
// (lower, upper, lower_inclusive, upper_inclusive, is_empty) per §4.2.
type Range struct {
	Base           int
	Optional       bool
	Lower          Writer
	Upper          Writer
	LowerInclusive *Leaf
	UpperInclusive *Leaf
	IsEmpty        *Leaf
}

func (w *Range) presentDef() int {
	if w.Optional {
		return w.Base + 1
	}
	return w.Base
}

func (w *Range) maxDef() int {
	max := w.Lower.maxDef()
	if d := w.Upper.maxDef(); d > max {
		max = d
	}
	if d := w.LowerInclusive.maxDef(); d > max {
		max = d
	}
	return max
}

func (w *Range) maxRep() int { return 0 }

func (w *Range) consume(b []byte, isNull bool, rep int) error {
	if isNull {
		return w.consumeNull(rep, w.Base)
	}

	reader := &pgwire.Reader{}
	rv, err := reader.ReadRangeValue(b)
	if err != nil {
		return err
	}

	present := w.presentDef()
	if err := w.IsEmpty.consume(boolBytes(rv.Empty), false, rep); err != nil {
		return err
	}
	if err := w.LowerInclusive.consume(boolBytes(rv.LowerInclusive), false, rep); err != nil {
		return err
	}
	if err := w.UpperInclusive.consume(boolBytes(rv.UpperInclusive), false, rep); err != nil {
		return err
	}
	if rv.Lower == nil {
		if err := w.Lower.consumeNull(rep, present); err != nil {
			return err
		}
	} else if err := w.Lower.consume(rv.Lower, false, rep); err != nil {
		return err
	}
	if rv.Upper == nil {
		if err := w.Upper.consumeNull(rep, present); err != nil {
			return err
		}
	} else if err := w.Upper.consume(rv.Upper, false, rep); err != nil {
		return err
	}
	return nil
}

func boolBytes(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

func (w *Range) consumeNull(rep, def int) error {
	if err := w.Lower.consumeNull(rep, def); err != nil {
		return err
	}
	if err := w.Upper.consumeNull(rep, def); err != nil {
		return err
	}
	if err := w.LowerInclusive.consumeNull(rep, def); err != nil {
		return err
	}
	if err := w.UpperInclusive.consumeNull(rep, def); err != nil {
		return err
	}
	return w.IsEmpty.consumeNull(rep, def)
}

func (w *Range) ConsumeField(r *pgwire.Reader) error {
	return consumeTopLevelField(r, w.consume)
}

func (w *Range) Flush() []Chunk {
	var chunks []Chunk
	chunks = append(chunks, w.Lower.Flush()...)
	chunks = append(chunks, w.Upper.Flush()...)
	chunks = append(chunks, w.LowerInclusive.Flush()...)
	chunks = append(chunks, w.UpperInclusive.Flush()...)
	chunks = append(chunks, w.IsEmpty.Flush()...)
	return chunks
}

func (w *Range) Reset() {
	w.Lower.Reset()
	w.Upper.Reset()
	w.LowerInclusive.Reset()
	w.UpperInclusive.Reset()
	w.IsEmpty.Reset()
}
