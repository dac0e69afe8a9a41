package backup

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression selects the container written by Export. Decode accepts both.
type Compression string

const (
	CompressionZstd Compression = "zstd"
	CompressionGzip Compression = "gzip"
)

// maxDecodedSize bounds how much a single artifact may inflate to.
const maxDecodedSize = 1 << 30

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	gzipMagic = []byte{0x1f, 0x8b}
)

func (c Compression) Validate() error {
	switch c {
	case CompressionZstd, CompressionGzip:
		return nil
	default:
		return fmt.Errorf("unsupported compression %q, must be %q or %q", c, CompressionZstd, CompressionGzip)
	}
}

func compress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	case CompressionGzip:
		var buf bytes.Buffer
		w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("failed to gzip artifact: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to finish gzip stream: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, c.Validate()
	}
}

// decompress detects the container from its magic bytes.
func decompress(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decode zstd artifact: %w", err)
		}
		return out, nil
	case bytes.HasPrefix(data, gzipMagic):
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip artifact: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(io.LimitReader(r, maxDecodedSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to decode gzip artifact: %w", err)
		}
		if len(out) > maxDecodedSize {
			return nil, fmt.Errorf("artifact inflates beyond %d bytes", maxDecodedSize)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unrecognized artifact container")
	}
}
