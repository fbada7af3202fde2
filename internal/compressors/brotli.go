package compressors

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// BrotliCompressor handles Brotli compression
type BrotliCompressor struct{}

// NewBrotliCompressor creates a new Brotli compressor
func NewBrotliCompressor() *BrotliCompressor {
	return &BrotliCompressor{}
}

func brotliQuality(level int) int {
	if level < 0 || level > 11 {
		return brotli.DefaultCompression
	}
	return level
}

// Compress compresses data using Brotli
func (c *BrotliCompressor) Compress(data []byte, level int) ([]byte, error) {
	var buffer bytes.Buffer
	writer := brotli.NewWriterLevel(&buffer, brotliQuality(level))

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to compress data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close brotli writer: %w", err)
	}
	return buffer.Bytes(), nil
}

// NewWriter creates a streaming brotli compression writer
func (c *BrotliCompressor) NewWriter(w io.Writer, level int) io.WriteCloser {
	return brotli.NewWriterLevel(w, brotliQuality(level))
}

// NewReader creates a streaming brotli decompression reader
func (c *BrotliCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(brotli.NewReader(r)), nil
}

// Extension returns the file extension for Brotli compression
func (c *BrotliCompressor) Extension() string {
	return ".br"
}

// DefaultLevel returns the default compression level for Brotli
func (c *BrotliCompressor) DefaultLevel() int {
	return brotli.DefaultCompression
}
