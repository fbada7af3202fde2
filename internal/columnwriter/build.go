package columnwriter

import (
	"fmt"

	"github.com/airframesio/pgparquet/internal/pgcatalog"
	"github.com/airframesio/pgparquet/internal/pqschema"
)

// Builder constructs the Writer for each result-set column. Its next
// field is a running leaf counter (shared across all of a row's columns) that must
// advance in exactly the same order pqschema.BuildColumn's leaves are
// enumerated, since parquet.Value.Level's columnIndex must match the
// flattened schema's leaf ordering.
type Builder struct {
	next int
}

func NewBuilder() *Builder { return &Builder{} }

// Column builds the writer for one top-level result column.
func (bd *Builder) Column(t *pgcatalog.PgType, nullable bool, s pqschema.Settings) (Writer, error) {
	return bd.build(t, 0, 0, nullable, s)
}

// build mirrors pqschema.buildNode's recursion, tracking cumulative
// definition/repetition levels instead of producing a schema node.
func (bd *Builder) build(t *pgcatalog.PgType, def, rep int, optional bool, s pqschema.Settings) (Writer, error) {
	switch t.Kind {
	case pgcatalog.KindDomain:
		return bd.build(t.Underlying, def, rep, optional, s)

	case pgcatalog.KindArray:
		base := def
		if optional {
			base++
		}
		elemOptional := true // array elements are always individually nullable
		elem, err := bd.build(t.Elem, base+1, rep+1, elemOptional, s)
		if err != nil {
			return nil, err
		}
		return NewList(base, rep, elemOptional, elem), nil

	case pgcatalog.KindComposite:
		base := def
		if optional {
			base++
		}
		fields := make([]Writer, len(t.Fields))
		for i, f := range t.Fields {
			child, err := bd.build(f.Type, base, rep, true, s)
			if err != nil {
				return nil, err
			}
			fields[i] = child
		}
		return NewStruct(def, optional, fields), nil

	case pgcatalog.KindRange:
		base := def
		if optional {
			base++
		}
		lower, err := bd.build(t.RangeElem, base, rep, true, s)
		if err != nil {
			return nil, err
		}
		upper, err := bd.build(t.RangeElem, base, rep, true, s)
		if err != nil {
			return nil, err
		}
		return &Range{
			Base:           def,
			Optional:       optional,
			Lower:          lower,
			Upper:          upper,
			LowerInclusive: bd.newBoolLeaf(base, rep),
			UpperInclusive: bd.newBoolLeaf(base, rep),
			IsEmpty:        bd.newBoolLeaf(base, rep),
		}, nil

	case pgcatalog.KindEnum:
		return bd.leaf(def, rep, optional, enumDecoder(t, s)), nil

	case pgcatalog.KindBase:
		return bd.buildBase(t, def, rep, optional, s)
	}

	return nil, &pqschema.ErrUnsupportedType{OID: t.OID, Name: t.Name}
}

func (bd *Builder) newBoolLeaf(def, rep int) *Leaf {
	return bd.leaf(def, rep, false, decodeBool)
}

func (bd *Builder) leaf(def, rep int, optional bool, decode Decoder) *Leaf {
	d := def
	if optional {
		d++
	}
	col := bd.next
	bd.next++
	return NewLeaf(col, d, rep, optional, decode)
}

// enumDecoder resolves an enum value to its representation per
// s.EnumHandling. Only EnumInt needs t: the wire carries the label text,
// so int handling looks the label up in t.Labels (in enumsortorder,
// matching pqschema's KindEnum/EnumInt mapping to a bare Int32) to get a
// 1-based ordinal.
func enumDecoder(t *pgcatalog.PgType, s pqschema.Settings) Decoder {
	if s.EnumHandling != pqschema.EnumInt {
		return decodeText
	}
	ordinal := make(map[string]int32, len(t.Labels))
	for i, label := range t.Labels {
		ordinal[label] = int32(i + 1)
	}
	return func(b []byte) (any, error) {
		label := string(b)
		v, ok := ordinal[label]
		if !ok {
			return nil, fmt.Errorf("columnwriter: label %q not found in enum %q", label, t.Name)
		}
		return v, nil
	}
}

func (bd *Builder) buildBase(t *pgcatalog.PgType, def, rep int, optional bool, s pqschema.Settings) (Writer, error) {
	switch t.Name {
	case "bool":
		return bd.leaf(def, rep, optional, decodeBool), nil
	case "int2":
		return bd.leaf(def, rep, optional, decodeInt16), nil
	case "int4":
		return bd.leaf(def, rep, optional, decodeInt32), nil
	case "int8", "xid8":
		return bd.leaf(def, rep, optional, decodeInt64), nil
	case "oid":
		return bd.leaf(def, rep, optional, decodeOID), nil
	case "float4":
		return bd.leaf(def, rep, optional, decodeFloat32), nil
	case "float8":
		return bd.leaf(def, rep, optional, decodeFloat64), nil
	case "text", "varchar", "bpchar", "xml":
		return bd.leaf(def, rep, optional, decodeText), nil
	case "bit", "varbit":
		return bd.leaf(def, rep, optional, decodeBit), nil
	case "bytea":
		return bd.leaf(def, rep, optional, decodeBytea), nil
	case "uuid":
		return bd.leaf(def, rep, optional, decodeUUID), nil
	case "date":
		return bd.leaf(def, rep, optional, decodeDate), nil
	case "time", "timetz":
		return bd.leaf(def, rep, optional, decodeTime), nil
	case "timestamp", "timestamptz":
		return bd.leaf(def, rep, optional, decodeTimestamp), nil
	case "interval":
		if s.IntervalHandling == pqschema.IntervalStruct {
			return bd.buildIntervalStruct(def, rep, optional)
		}
		return bd.leaf(def, rep, optional, decodeInterval), nil
	case "numeric":
		return bd.leaf(def, rep, optional, numericDecoder(s)), nil
	case "money":
		return bd.leaf(def, rep, optional, decodeMoney), nil
	case "json":
		return bd.leaf(def, rep, optional, decodeText), nil
	case "jsonb":
		return bd.leaf(def, rep, optional, decodeJSONB), nil
	case "macaddr":
		return bd.leaf(def, rep, optional, macaddrDecoder(s, 6)), nil
	case "macaddr8":
		return bd.leaf(def, rep, optional, macaddrDecoder(s, 8)), nil
	case "inet", "cidr":
		return bd.leaf(def, rep, optional, decodeInetText), nil
	default:
		return nil, &pqschema.ErrUnsupportedType{OID: t.OID, Name: t.Name}
	}
}

func (bd *Builder) buildIntervalStruct(def, rep int, optional bool) (Writer, error) {
	base := def
	if optional {
		base++
	}
	fields := []Writer{
		bd.leaf(base, rep, false, func(b []byte) (any, error) {
			months, _, _, err := decodeIntervalStruct(b)
			return months, err
		}),
		bd.leaf(base, rep, false, func(b []byte) (any, error) {
			_, days, _, err := decodeIntervalStruct(b)
			return days, err
		}),
		bd.leaf(base, rep, false, func(b []byte) (any, error) {
			_, _, micros, err := decodeIntervalStruct(b)
			return micros, err
		}),
	}
	return NewStruct(def, optional, fields), nil
}

func numericDecoder(s pqschema.Settings) Decoder {
	switch s.NumericHandling {
	case pqschema.NumericDouble:
		return decodeNumericFloat64
	case pqschema.NumericFloat32:
		return decodeNumericFloat32
	case pqschema.NumericString:
		return decodeNumericString
	default: // NumericDecimal
		switch {
		case s.DecimalPrecision <= 9:
			return decodeNumericDecimal(4, s.DecimalScale)
		case s.DecimalPrecision <= 18:
			return decodeNumericDecimal(8, s.DecimalScale)
		default:
			return decodeNumericDecimal(0, s.DecimalScale)
		}
	}
}

func macaddrDecoder(s pqschema.Settings, width int) Decoder {
	switch s.MacaddrHandling {
	case pqschema.MacaddrByteArray:
		return decodeMacaddrBytes(width)
	case pqschema.MacaddrInt64:
		return decodeMacaddrInt64
	default:
		if width == 8 {
			return decodeMacaddr8Text
		}
		return decodeMacaddrText
	}
}
