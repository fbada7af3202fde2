package compressors

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"
)

// SnappyCompressor handles Snappy compression, via the S2 codec's
// Snappy-compatible framing (klauspost/compress/s2).
type SnappyCompressor struct{}

// NewSnappyCompressor creates a new Snappy compressor
func NewSnappyCompressor() *SnappyCompressor {
	return &SnappyCompressor{}
}

// Compress compresses data using Snappy framing
func (c *SnappyCompressor) Compress(data []byte, _ int) ([]byte, error) {
	var buffer bytes.Buffer

	writer := s2.NewWriter(&buffer, s2.WriterSnappyCompat())

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to compress data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close snappy writer: %w", err)
	}
	return buffer.Bytes(), nil
}

// NewWriter creates a streaming snappy-framed compression writer
func (c *SnappyCompressor) NewWriter(w io.Writer, _ int) io.WriteCloser {
	return s2.NewWriter(w, s2.WriterSnappyCompat())
}

// NewReader creates a streaming snappy-framed decompression reader
func (c *SnappyCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(s2.NewReader(r)), nil
}

// Extension returns the file extension for Snappy compression
func (c *SnappyCompressor) Extension() string {
	return ".snappy"
}

// DefaultLevel returns the default compression level for Snappy (unused,
// snappy framing has no level knob)
func (c *SnappyCompressor) DefaultLevel() int {
	return 0
}
