package anvil

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Compression types stored as the first byte of a region sector payload.
const (
	CompressionGzip byte = 1
	CompressionZlib byte = 2
	CompressionNone byte = 3
)

// ErrUnknownCompression is returned for payloads with an unsupported type byte.
var ErrUnknownCompression = errors.New("unknown compression type")

// Compress frames raw as a sector payload: one type byte followed by the
// compressed data.
func Compress(typ byte, raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(typ)

	var w io.WriteCloser
	switch typ {
	case CompressionGzip:
		w = gzip.NewWriter(&buf)
	case CompressionZlib:
		w = zlib.NewWriter(&buf)
	case CompressionNone:
		buf.Write(raw)
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, typ)
	}

	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("compress chunk: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close compressor: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty sector payload")
	}

	body := bytes.NewReader(payload[1:])
	var r io.ReadCloser
	var err error

	switch payload[0] {
	case CompressionGzip:
		r, err = gzip.NewReader(body)
	case CompressionZlib:
		r, err = zlib.NewReader(body)
	case CompressionNone:
		return payload[1:], nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, payload[0])
	}
	if err != nil {
		return nil, fmt.Errorf("open decompressor: %w", err)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompress chunk: %w", err)
	}
	return raw, nil
}
