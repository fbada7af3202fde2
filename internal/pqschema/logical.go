package pqschema

import (
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
)

// naiveTimeType and naiveTimestampType back PostgreSQL's `time`/`timetz`
// and `timestamp` (without time zone) columns. parquet-go's exported
// Time/Timestamp constructors always set IsAdjustedToUTC to true, which
// is correct for `timestamptz` but wrong for the naive variants (spec
// §4.2: "isAdjustedToUTC=false"); these wrap the same physical Int64
// type and override only the logical-type annotation, following the
// embedding pattern parquet-go itself uses for Decimal (type_decimal.go).
type naiveTimeType struct {
	parquet.Type
	unit format.TimeUnit
}

func (t *naiveTimeType) String() string { return "TIME(isAdjustedToUTC=false)" }

func (t *naiveTimeType) LogicalType() *format.LogicalType {
	return &format.LogicalType{Time: &format.TimeType{IsAdjustedToUTC: false, Unit: t.unit}}
}

type naiveTimestampType struct {
	parquet.Type
	unit format.TimeUnit
}

func (t *naiveTimestampType) String() string { return "TIMESTAMP(isAdjustedToUTC=false)" }

func (t *naiveTimestampType) LogicalType() *format.LogicalType {
	return &format.LogicalType{Timestamp: &format.TimestampType{IsAdjustedToUTC: false, Unit: t.unit}}
}

// naiveTime builds INT64 + TIME(MICROS, isAdjustedToUTC=false).
func naiveTime() parquet.Node {
	return parquet.Leaf(&naiveTimeType{Type: parquet.Int64Type, unit: parquet.Microsecond.TimeUnit()})
}

// naiveTimestampNode builds INT64 + TIMESTAMP(MICROS, isAdjustedToUTC=false).
func naiveTimestampNode() parquet.Node {
	return parquet.Leaf(&naiveTimestampType{Type: parquet.Int64Type, unit: parquet.Microsecond.TimeUnit()})
}
