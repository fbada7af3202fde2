// Package parquetsink accumulates columnwriter.Writer output into Parquet
// row groups and flushes them to an underlying parquet.Writer. It owns the
// column-major-to-row-major transposition that columnwriter's per-column
// buffering requires before parquet.Writer.WriteRows can accept a batch.
package parquetsink

import (
	"fmt"
	"io"
	"sort"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/airframesio/pgparquet/internal/columnwriter"
	"github.com/airframesio/pgparquet/internal/compressors"
	"github.com/airframesio/pgparquet/internal/errkind"
)

// ResolveCodec maps a CLI compression name onto one of parquet-go's
// built-in column-chunk codecs. Parquet compression is internal to each
// column chunk, not a whole-file wrapper, so the codec is handed to
// parquet.NewWriter directly rather than wrapping the output stream in an
// internal/compressors writer.
func ResolveCodec(name string) (compress.Codec, error) {
	if _, err := compressors.GetCompressor(name); err != nil {
		return nil, &errkind.ConfigError{Err: fmt.Errorf("compression: %w", err)}
	}
	switch name {
	case "zstd":
		return &parquet.Zstd, nil
	case "gzip":
		return &parquet.Gzip, nil
	case "lz4":
		return &parquet.Lz4Raw, nil
	case "snappy":
		return &parquet.Snappy, nil
	case "brotli":
		return &parquet.Brotli, nil
	case "none":
		return &parquet.Uncompressed, nil
	default:
		return nil, &errkind.ConfigError{Err: fmt.Errorf("compression: %q has no parquet column-chunk codec", name)}
	}
}

// Sink owns the Parquet writer and the set of top-level column writers
// feeding it, and flushes one row group at a time.
type Sink struct {
	w         *parquet.Writer
	columns   []columnwriter.Writer
	batchSize int
	buffered  int
}

// New builds a Sink writing to dst under schema, compressed with codec.
// columns must be in the same order as the result-set columns that built
// schema, so that Flush's leaf enumeration lines up with schema's.
func New(dst io.Writer, schema *parquet.Schema, codec compress.Codec, columns []columnwriter.Writer, batchSize int) *Sink {
	w := parquet.NewWriter(dst, schema, parquet.Compression(codec))
	return &Sink{w: w, columns: columns, batchSize: batchSize}
}

// ConsumeRow advances every top-level column writer past one tuple's worth
// of fields. When the buffered row count reaches batchSize it flushes a row
// group automatically.
func (s *Sink) ConsumeRow(consume func(w columnwriter.Writer) error) error {
	for _, c := range s.columns {
		if err := consume(c); err != nil {
			return err
		}
	}
	s.buffered++
	if s.buffered >= s.batchSize {
		return s.FlushBatch()
	}
	return nil
}

// FlushBatch closes out the current row group: every column writer is
// flushed into column-major Chunks, transposed into row-major
// []parquet.Row, written, and the row group is closed with Flush. It is a
// no-op when nothing is buffered.
func (s *Sink) FlushBatch() error {
	if s.buffered == 0 {
		return nil
	}

	var chunks []columnwriter.Chunk
	for _, c := range s.columns {
		chunks = append(chunks, c.Flush()...)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ColumnIndex < chunks[j].ColumnIndex })

	rows, err := transpose(chunks)
	if err != nil {
		return &errkind.ProtocolError{Err: err}
	}

	if _, err := s.w.WriteRows(rows); err != nil {
		return &errkind.IOError{Err: fmt.Errorf("parquetsink: writing rows: %w", err)}
	}
	if err := s.w.Flush(); err != nil {
		return &errkind.IOError{Err: fmt.Errorf("parquetsink: closing row group: %w", err)}
	}

	for _, c := range s.columns {
		c.Reset()
	}
	s.buffered = 0
	return nil
}

// Close flushes any remaining buffered rows as a final row group and closes
// the underlying Parquet writer, writing the file footer.
func (s *Sink) Close() error {
	if err := s.FlushBatch(); err != nil {
		return err
	}
	if err := s.w.Close(); err != nil {
		return &errkind.IOError{Err: fmt.Errorf("parquetsink: closing writer: %w", err)}
	}
	return nil
}

// transpose splits each chunk's values into per-row segments at
// RepetitionLevel()==0 boundaries (the start of each new logical row, per
// the Dremel encoding every leaf already emits) and regroups them row by
// row. Every chunk must produce the same number of segments: a mismatch
// means two sibling column writers disagree about how many rows they saw,
// which is a decoding bug rather than a data condition, and is reported as
// an error instead of silently truncating the batch.
func transpose(chunks []columnwriter.Chunk) ([]parquet.Row, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	segmented := make([][][]parquet.Value, len(chunks))
	rowCount := -1
	for i, chunk := range chunks {
		segs := splitRows(chunk.Values)
		if rowCount == -1 {
			rowCount = len(segs)
		} else if len(segs) != rowCount {
			return nil, fmt.Errorf("parquetsink: column %d produced %d rows, column %d produced %d",
				chunks[0].ColumnIndex, rowCount, chunk.ColumnIndex, len(segs))
		}
		segmented[i] = segs
	}

	rows := make([]parquet.Row, rowCount)
	for r := 0; r < rowCount; r++ {
		var row parquet.Row
		for c := range chunks {
			row = append(row, segmented[c][r]...)
		}
		rows[r] = row
	}
	return rows, nil
}

// splitRows partitions a column chunk's flat value slice at every value
// whose RepetitionLevel is 0, the Dremel marker for "first value of a new
// row" (every leaf, repeated or not, emits exactly one such value per row).
func splitRows(values []parquet.Value) [][]parquet.Value {
	var rows [][]parquet.Value
	for _, v := range values {
		if v.RepetitionLevel() == 0 || len(rows) == 0 {
			rows = append(rows, nil)
		}
		last := len(rows) - 1
		rows[last] = append(rows[last], v)
	}
	return rows
}
