package parquetsink

import (
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/airframesio/pgparquet/internal/columnwriter"
	"github.com/airframesio/pgparquet/internal/errkind"
)

func val(v int32, rep, def int) parquet.Value {
	return parquet.ValueOf(v).Level(rep, def, 0)
}

func TestSplitRows_SingleValuePerRow(t *testing.T) {
	values := []parquet.Value{
		val(1, 0, 0),
		val(2, 0, 0),
		val(3, 0, 0),
	}
	rows := splitRows(values)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if len(row) != 1 {
			t.Fatalf("row %d: expected 1 value, got %d", i, len(row))
		}
	}
}

func TestSplitRows_RepeatedValuesGroupIntoOneRow(t *testing.T) {
	// a 2-element list followed by a 1-element list: the continuation
	// values (rep>0) attach to the preceding row instead of starting a
	// new one.
	values := []parquet.Value{
		val(10, 0, 1),
		val(11, 1, 1),
		val(20, 0, 1),
	}
	rows := splitRows(values)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if len(rows[0]) != 2 {
		t.Fatalf("row 0: expected 2 values (list of 2), got %d", len(rows[0]))
	}
	if len(rows[1]) != 1 {
		t.Fatalf("row 1: expected 1 value (list of 1), got %d", len(rows[1]))
	}
}

func TestTranspose_MismatchedRowCountsIsError(t *testing.T) {
	chunks := []columnwriter.Chunk{
		{ColumnIndex: 0, Values: []parquet.Value{val(1, 0, 0), val(2, 0, 0)}},
		{ColumnIndex: 1, Values: []parquet.Value{val(1, 0, 0)}},
	}
	_, err := transpose(chunks)
	if err == nil {
		t.Fatal("expected an error for mismatched row counts")
	}
}

func TestTranspose_BuildsRowMajorOrder(t *testing.T) {
	chunks := []columnwriter.Chunk{
		{ColumnIndex: 0, Values: []parquet.Value{val(1, 0, 0), val(2, 0, 0)}},
		{ColumnIndex: 1, Values: []parquet.Value{val(10, 0, 0), val(20, 0, 0)}},
	}
	rows, err := transpose(chunks)
	if err != nil {
		t.Fatalf("transpose: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if len(rows[0]) != 2 || rows[0][0].Int32() != 1 || rows[0][1].Int32() != 10 {
		t.Fatalf("row 0 mismatched: %+v", rows[0])
	}
	if len(rows[1]) != 2 || rows[1][0].Int32() != 2 || rows[1][1].Int32() != 20 {
		t.Fatalf("row 1 mismatched: %+v", rows[1])
	}
}

func TestResolveCodec_KnownNames(t *testing.T) {
	for _, name := range []string{"zstd", "gzip", "lz4", "snappy", "brotli", "none"} {
		if _, err := ResolveCodec(name); err != nil {
			t.Errorf("ResolveCodec(%q): unexpected error: %v", name, err)
		}
	}
}

func TestResolveCodec_UnknownNameIsConfigError(t *testing.T) {
	_, err := ResolveCodec("lzo")
	if err == nil {
		t.Fatal("expected an error for an unsupported compression name")
	}
	if errkind.ExitCode(err) != 1 {
		t.Fatalf("expected ConfigError (exit 1), got exit code %d", errkind.ExitCode(err))
	}
}
