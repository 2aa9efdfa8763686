package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/annex/engine"
)

const (
	// MagicNumber identifies annex index files (ASCII: "ANX1").
	MagicNumber = 0x414E5831
	// Version is the current container format version.
	Version = 1
	// HeaderSize is the size of the fixed file header in bytes.
	HeaderSize = 32
)

var (
	// ErrCorrupt is wrapped by every error caused by unreadable file content.
	// It also matches engine.ErrInvalidFormat.
	ErrCorrupt = fmt.Errorf("persistence: corrupt index file: %w", engine.ErrInvalidFormat)

	ErrInvalidMagic   = fmt.Errorf("%w: invalid magic number", ErrCorrupt)
	ErrInvalidVersion = fmt.Errorf("%w: unsupported version", ErrCorrupt)
	ErrTruncated      = fmt.Errorf("%w: truncated", ErrCorrupt)

	// ErrWrongRoot is returned by LoadIDMap when the stored root is not an id map.
	ErrWrongRoot = fmt.Errorf("%w: root is not an id map", ErrCorrupt)

	// ErrManagerClosed is returned when operations are attempted on a closed manager.
	ErrManagerClosed = errors.New("persistence: manager is closed")
)

// FileHeader is the 32-byte little-endian header at the start of every index file.
//
//	off  size  field
//	0    4     Magic
//	4    2     Version
//	6    1     Compression
//	7    1     Flags (reserved, zero)
//	8    8     PayloadLen (uncompressed engine blob)
//	16   8     StoredLen (bytes following the header)
//	24   4     Checksum (CRC32 of the uncompressed payload)
//	28   4     reserved
type FileHeader struct {
	Magic       uint32
	Version     uint16
	Compression Compression
	Flags       uint8
	PayloadLen  uint64
	StoredLen   uint64
	Checksum    uint32
}

// MarshalBinary encodes the header.
func (h *FileHeader) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:], h.Version)
	buf[6] = byte(h.Compression)
	buf[7] = h.Flags
	binary.LittleEndian.PutUint64(buf[8:], h.PayloadLen)
	binary.LittleEndian.PutUint64(buf[16:], h.StoredLen)
	binary.LittleEndian.PutUint32(buf[24:], h.Checksum)
	return buf, nil
}

// UnmarshalBinary decodes and validates a header.
func (h *FileHeader) UnmarshalBinary(buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("%w: %d header bytes", ErrTruncated, len(buf))
	}

	h.Magic = binary.LittleEndian.Uint32(buf[0:])
	h.Version = binary.LittleEndian.Uint16(buf[4:])
	h.Compression = Compression(buf[6])
	h.Flags = buf[7]
	h.PayloadLen = binary.LittleEndian.Uint64(buf[8:])
	h.StoredLen = binary.LittleEndian.Uint64(buf[16:])
	h.Checksum = binary.LittleEndian.Uint32(buf[24:])

	if h.Magic != MagicNumber {
		return fmt.Errorf("%w: 0x%08x", ErrInvalidMagic, h.Magic)
	}
	if h.Version != Version {
		return fmt.Errorf("%w: %d", ErrInvalidVersion, h.Version)
	}
	if !h.Compression.valid() {
		return fmt.Errorf("%w: unknown compression %d", ErrCorrupt, h.Compression)
	}
	return nil
}
