package persistence

import (
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how the engine payload is stored.
type Compression uint8

const (
	// CompressionNone stores the payload as is.
	CompressionNone Compression = 0
	// CompressionZSTD favors ratio.
	CompressionZSTD Compression = 1
	// CompressionLZ4 favors speed.
	CompressionLZ4 Compression = 2
)

// lz4 cannot expand input by more than this factor.
const lz4MaxRatio = 255

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZSTD:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

func (c Compression) valid() bool {
	return c <= CompressionLZ4
}

// ParseCompression parses "none", "zstd" or "lz4". The empty string means none.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZSTD, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return CompressionNone, fmt.Errorf("persistence: unknown compression %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Compression) MarshalText() ([]byte, error) {
	if !c.valid() {
		return nil, fmt.Errorf("persistence: unknown compression %d", uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Compression) UnmarshalText(text []byte) error {
	v, err := ParseCompression(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

var zstdEncoderPool sync.Pool

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

// compress returns the stored form of payload and the compression actually
// used. Payloads that do not shrink are stored uncompressed.
func compress(payload []byte, c Compression) ([]byte, Compression, error) {
	if c == CompressionNone || len(payload) == 0 {
		return payload, CompressionNone, nil
	}

	var out []byte
	switch c {
	case CompressionZSTD:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, CompressionNone, err
		}
		out = enc.EncodeAll(payload, nil)
		zstdEncoderPool.Put(enc)
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(payload)))
		n, err := lz4.CompressBlock(payload, buf, nil)
		if err != nil {
			return nil, CompressionNone, err
		}
		out = buf[:n]
	default:
		return nil, CompressionNone, fmt.Errorf("persistence: unknown compression %d", uint8(c))
	}

	if len(out) == 0 || len(out) >= len(payload) {
		return payload, CompressionNone, nil
	}
	return out, c, nil
}

// decompress restores a payload of exactly payloadLen bytes.
func decompress(stored []byte, c Compression, payloadLen uint64) ([]byte, error) {
	switch c {
	case CompressionNone:
		if uint64(len(stored)) != payloadLen {
			return nil, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorrupt, len(stored), payloadLen)
		}
		return stored, nil

	case CompressionZSTD:
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(payloadLen+1),
		)
		if err != nil {
			return nil, err
		}
		defer dec.Close()

		out, err := dec.DecodeAll(stored, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrCorrupt, err)
		}
		if uint64(len(out)) != payloadLen {
			return nil, fmt.Errorf("%w: decompressed %d bytes, header says %d", ErrCorrupt, len(out), payloadLen)
		}
		return out, nil

	case CompressionLZ4:
		if payloadLen > uint64(len(stored))*lz4MaxRatio {
			return nil, fmt.Errorf("%w: implausible lz4 payload length %d", ErrCorrupt, payloadLen)
		}
		out := make([]byte, payloadLen)
		n, err := lz4.UncompressBlock(stored, out)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %w", ErrCorrupt, err)
		}
		if uint64(n) != payloadLen {
			return nil, fmt.Errorf("%w: decompressed %d bytes, header says %d", ErrCorrupt, n, payloadLen)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, c)
	}
}
