// Package pqschema translates resolved PostgreSQL types into Parquet
// schema nodes, following the authoritative mapping table of the type
// registry design (§4.2): one rule per PostgreSQL type category, applied
// recursively through arrays, composites, ranges and domains.
package pqschema

import (
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/airframesio/pgparquet/internal/pgcatalog"
)

// NumericHandling selects how `numeric` columns are represented.
type NumericHandling string

const (
	NumericDecimal NumericHandling = "decimal"
	NumericDouble  NumericHandling = "double"
	NumericFloat32 NumericHandling = "float32"
	NumericString  NumericHandling = "string"
)

// EnumHandling selects how enum columns are represented.
type EnumHandling string

const (
	EnumText      EnumHandling = "text"
	EnumPlainText EnumHandling = "plain-text"
	EnumInt       EnumHandling = "int"
)

// IntervalHandling selects how interval columns are represented.
type IntervalHandling string

const (
	IntervalNative IntervalHandling = "interval"
	IntervalStruct IntervalHandling = "struct"
)

// MacaddrHandling selects how macaddr/macaddr8 columns are represented.
type MacaddrHandling string

const (
	MacaddrText      MacaddrHandling = "text"
	MacaddrByteArray MacaddrHandling = "byte-array"
	MacaddrInt64     MacaddrHandling = "int64"
)

// JSONHandling selects whether json/jsonb columns carry the JSON logical
// type annotation.
type JSONHandling string

const (
	JSONText          JSONHandling = "text"
	JSONTextMarkedJSON JSONHandling = "text-marked-as-json"
)

// ArrayHandling selects whether array columns also surface their
// dimensions and/or lower bounds alongside the flattened element list.
type ArrayHandling string

const (
	ArrayPlain               ArrayHandling = "plain"
	ArrayDimensions          ArrayHandling = "dimensions"
	ArrayDimensionsLowerBound ArrayHandling = "dimensions+lowerbound"
)

// Settings is the `SchemaSettings` configuration referenced by spec §4.2
// and §6: the set of type-handling choices that make schema resolution a
// pure function of (PgType, nullability, Settings).
type Settings struct {
	NumericHandling   NumericHandling
	DecimalPrecision  int
	DecimalScale      int
	EnumHandling      EnumHandling
	IntervalHandling  IntervalHandling
	MacaddrHandling   MacaddrHandling
	JSONHandling      JSONHandling
	ArrayHandling     ArrayHandling
}

// DefaultSettings mirrors the CLI's documented defaults (spec §6).
func DefaultSettings() Settings {
	return Settings{
		NumericHandling:  NumericDecimal,
		DecimalPrecision: 38,
		DecimalScale:     18,
		EnumHandling:     EnumText,
		IntervalHandling: IntervalNative,
		MacaddrHandling:  MacaddrText,
		JSONHandling:     JSONText,
		ArrayHandling:    ArrayPlain,
	}
}

// ErrUnsupportedType is returned when a PgType has no mapping rule and no
// domain/array/composite/range wrapper can reduce it to one.
type ErrUnsupportedType struct {
	OID  uint32
	Name string
}

func (e *ErrUnsupportedType) Error() string {
	return fmt.Sprintf("pqschema: unsupported type oid=%d name=%q", e.OID, e.Name)
}

// BuildColumn produces the ParquetSchemaNode for one result-set column.
// nullable controls whether the top-level node is Optional; nested
// optionality (list/struct members) is decided by the mapping rules
// themselves.
func BuildColumn(name string, t *pgcatalog.PgType, nullable bool, s Settings) (parquet.Node, error) {
	node, err := buildNode(t, s)
	if err != nil {
		return nil, err
	}
	if nullable {
		node = parquet.Optional(node)
	} else {
		node = parquet.Required(node)
	}
	return node, nil
}

// buildNode builds the node for t without applying the column-level
// optional/required wrapper; recursive calls apply their own optionality
// per the mapping rules (list elements, composite fields, range bounds).
func buildNode(t *pgcatalog.PgType, s Settings) (parquet.Node, error) {
	switch t.Kind {
	case pgcatalog.KindDomain:
		return buildNode(t.Underlying, s)

	case pgcatalog.KindArray:
		elem, err := buildNode(t.Elem, s)
		if err != nil {
			return nil, err
		}
		list := parquet.List(parquet.Optional(elem))
		switch s.ArrayHandling {
		case ArrayPlain, "":
			return list, nil
		case ArrayDimensions:
			fields := parquet.Group{
				"values": list,
				"dims":   parquet.Repeated(parquet.Leaf(parquet.Int32Type)),
			}
			return fields, nil
		case ArrayDimensionsLowerBound:
			fields := parquet.Group{
				"values":       list,
				"dims":         parquet.Repeated(parquet.Leaf(parquet.Int32Type)),
				"lower_bounds": parquet.Repeated(parquet.Leaf(parquet.Int32Type)),
			}
			return fields, nil
		default:
			return nil, fmt.Errorf("pqschema: unknown array_handling %q", s.ArrayHandling)
		}

	case pgcatalog.KindComposite:
		fields := make(parquet.Group, len(t.Fields))
		for _, f := range t.Fields {
			child, err := buildNode(f.Type, s)
			if err != nil {
				return nil, err
			}
			fields[f.Name] = parquet.Optional(child)
		}
		return fields, nil

	case pgcatalog.KindRange:
		bound, err := buildNode(t.RangeElem, s)
		if err != nil {
			return nil, err
		}
		return parquet.Group{
			"lower":           parquet.Optional(bound),
			"upper":           parquet.Optional(bound),
			"lower_inclusive": parquet.Leaf(parquet.BooleanType),
			"upper_inclusive": parquet.Leaf(parquet.BooleanType),
			"is_empty":        parquet.Leaf(parquet.BooleanType),
		}, nil

	case pgcatalog.KindEnum:
		switch s.EnumHandling {
		case EnumInt:
			return parquet.Leaf(parquet.Int32Type), nil
		case EnumPlainText:
			return parquet.String(), nil
		default: // EnumText
			return parquet.Enum(), nil
		}

	case pgcatalog.KindBase:
		return buildBaseNode(t, s)
	}

	return nil, &ErrUnsupportedType{OID: t.OID, Name: t.Name}
}

func buildBaseNode(t *pgcatalog.PgType, s Settings) (parquet.Node, error) {
	switch t.Name {
	case "bool":
		return parquet.Leaf(parquet.BooleanType), nil
	case "int2":
		return parquet.Int(16), nil
	case "int4":
		return parquet.Int(32), nil
	case "int8", "xid8", "oid":
		return parquet.Int(64), nil
	case "float4":
		return parquet.Leaf(parquet.FloatType), nil
	case "float8":
		return parquet.Leaf(parquet.DoubleType), nil
	case "text", "varchar", "bpchar", "xml", "bit", "varbit":
		return parquet.String(), nil
	case "bytea":
		return parquet.Leaf(parquet.ByteArrayType), nil
	case "uuid":
		return parquet.UUID(), nil
	case "date":
		return parquet.Date(), nil
	case "time", "timetz":
		return naiveTime(), nil
	case "timestamp":
		return naiveTimestampNode(), nil
	case "timestamptz":
		return parquet.Timestamp(parquet.Microsecond), nil
	case "interval":
		if s.IntervalHandling == IntervalStruct {
			return parquet.Group{
				"months":       parquet.Leaf(parquet.Int32Type),
				"days":         parquet.Leaf(parquet.Int32Type),
				"microseconds": parquet.Int(64),
			}, nil
		}
		return parquet.Leaf(parquet.FixedLenByteArrayType(12)), nil
	case "numeric":
		return buildNumericNode(s)
	case "money":
		return parquet.Decimal(2, 19, parquet.Int64Type), nil
	case "json", "jsonb":
		if s.JSONHandling == JSONTextMarkedJSON {
			return parquet.JSON(), nil
		}
		return parquet.String(), nil
	case "macaddr", "macaddr8":
		switch s.MacaddrHandling {
		case MacaddrByteArray:
			return parquet.Leaf(parquet.FixedLenByteArrayType(6)), nil
		case MacaddrInt64:
			return parquet.Int(64), nil
		default:
			return parquet.String(), nil
		}
	case "inet", "cidr":
		return parquet.String(), nil
	default:
		return nil, &ErrUnsupportedType{OID: t.OID, Name: t.Name}
	}
}

func buildNumericNode(s Settings) (parquet.Node, error) {
	switch s.NumericHandling {
	case NumericDouble:
		return parquet.Leaf(parquet.DoubleType), nil
	case NumericFloat32:
		return parquet.Leaf(parquet.FloatType), nil
	case NumericString:
		return parquet.String(), nil
	default: // NumericDecimal
		precision := s.DecimalPrecision
		scale := s.DecimalScale
		switch {
		case precision <= 9:
			return parquet.Decimal(scale, precision, parquet.Int32Type), nil
		case precision <= 18:
			return parquet.Decimal(scale, precision, parquet.Int64Type), nil
		default:
			return parquet.Decimal(scale, precision, parquet.ByteArrayType), nil
		}
	}
}

