package compressors

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// ZstdCompressor handles Zstandard compression
type ZstdCompressor struct {
	workers int
}

// NewZstdCompressor creates a new Zstandard compressor
func NewZstdCompressor() *ZstdCompressor {
	return &ZstdCompressor{
		workers: 4, // Default worker count
	}
}

// WithWorkers sets the number of workers for compression
func (c *ZstdCompressor) WithWorkers(workers int) *ZstdCompressor {
	c.workers = workers
	return c
}

func zstdEncoderLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 0:
		return zstd.SpeedFastest
	case level <= 3:
		return zstd.SpeedDefault
	case level <= 7:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

// Compress compresses data using Zstandard
func (c *ZstdCompressor) Compress(data []byte, level int) ([]byte, error) {
	var buffer bytes.Buffer

	encoder, err := zstd.NewWriter(&buffer,
		zstd.WithEncoderLevel(zstdEncoderLevel(level)),
		zstd.WithEncoderConcurrency(c.workers))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer encoder.Close()

	if _, err := encoder.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress data: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zstd encoder: %w", err)
	}

	return buffer.Bytes(), nil
}

// NewWriter creates a streaming zstd compression writer
func (c *ZstdCompressor) NewWriter(w io.Writer, level int) io.WriteCloser {
	encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstdEncoderLevel(level)))
	if err != nil {
		// Only invalid encoder options cause NewWriter to fail; none are
		// reachable from zstdEncoderLevel's fixed output set.
		encoder, _ = zstd.NewWriter(w)
	}
	return encoder
}

// zstdReadCloser adapts *zstd.Decoder's Close (no error) to io.ReadCloser.
type zstdReadCloser struct {
	*zstd.Decoder
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// NewReader creates a streaming zstd decompression reader
func (c *ZstdCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	d, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return zstdReadCloser{d}, nil
}

// Extension returns the file extension for Zstandard compression
func (c *ZstdCompressor) Extension() string {
	return ".zst"
}

// DefaultLevel returns the default compression level for Zstandard
func (c *ZstdCompressor) DefaultLevel() int {
	return 3 // SpeedDefault
}
