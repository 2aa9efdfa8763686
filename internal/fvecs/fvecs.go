// Package fvecs reads and writes the .fvecs and .ivecs vector files used by
// the TEXMEX ANN benchmarks.
//
// Every record is a little-endian int32 dimension followed by that many
// little-endian float32 (.fvecs) or int32 (.ivecs) components.
package fvecs

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// MaxDimension bounds the per-record dimension accepted by the readers.
const MaxDimension = 1 << 16

var (
	// ErrMixedDimensions is returned when records disagree on their dimension.
	ErrMixedDimensions = errors.New("fvecs: records have different dimensions")
	// ErrBadRecord is returned for a non-positive or oversized dimension, or a truncated record.
	ErrBadRecord = errors.New("fvecs: malformed record")
)

// Read decodes up to limit records (all when limit <= 0) and returns them
// row-major with their shared dimension.
func Read(r io.Reader, limit int) ([]float32, int, error) {
	var out []float32
	d, err := readRecords(r, limit, func(rec []byte) {
		for i := 0; i < len(rec); i += 4 {
			out = append(out, math.Float32frombits(binary.LittleEndian.Uint32(rec[i:])))
		}
	})
	if err != nil {
		return nil, 0, err
	}
	return out, d, nil
}

// ReadInts decodes .ivecs records, widening components to int64.
func ReadInts(r io.Reader, limit int) ([]int64, int, error) {
	var out []int64
	d, err := readRecords(r, limit, func(rec []byte) {
		for i := 0; i < len(rec); i += 4 {
			out = append(out, int64(int32(binary.LittleEndian.Uint32(rec[i:]))))
		}
	})
	if err != nil {
		return nil, 0, err
	}
	return out, d, nil
}

func readRecords(r io.Reader, limit int, fn func(rec []byte)) (int, error) {
	br := bufio.NewReader(r)
	var (
		hdr [4]byte
		rec []byte
		d   int
	)

	for n := 0; limit <= 0 || n < limit; n++ {
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, fmt.Errorf("%w: record %d header: %w", ErrBadRecord, n, err)
		}

		rd := int(int32(binary.LittleEndian.Uint32(hdr[:])))
		if rd <= 0 || rd > MaxDimension {
			return 0, fmt.Errorf("%w: record %d has dimension %d", ErrBadRecord, n, rd)
		}
		if d == 0 {
			d = rd
			rec = make([]byte, 4*d)
		} else if rd != d {
			return 0, fmt.Errorf("%w: record %d has %d, want %d", ErrMixedDimensions, n, rd, d)
		}

		if _, err := io.ReadFull(br, rec); err != nil {
			return 0, fmt.Errorf("%w: record %d body: %w", ErrBadRecord, n, err)
		}
		fn(rec)
	}

	return d, nil
}

// Write encodes the row-major vectors as .fvecs records of dimension d.
func Write(w io.Writer, d int, vectors []float32) error {
	if d <= 0 || len(vectors)%d != 0 {
		return fmt.Errorf("%w: %d values do not split into rows of %d", ErrBadRecord, len(vectors), d)
	}

	bw := bufio.NewWriter(w)
	buf := make([]byte, 4+4*d)
	binary.LittleEndian.PutUint32(buf, uint32(d))
	for off := 0; off < len(vectors); off += d {
		for i, v := range vectors[off : off+d] {
			binary.LittleEndian.PutUint32(buf[4+4*i:], math.Float32bits(v))
		}
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadFile reads a .fvecs file.
func ReadFile(path string, limit int) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return Read(f, limit)
}

// ReadIntsFile reads a .ivecs file.
func ReadIntsFile(path string, limit int) ([]int64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return ReadInts(f, limit)
}

// WriteFile writes a .fvecs file.
func WriteFile(path string, d int, vectors []float32) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Write(f, d, vectors)
}
