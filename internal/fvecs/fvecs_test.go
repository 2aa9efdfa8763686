package fvecs

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	vecs := []float32{1, 2, 3, -4, 0.5, 1e-7}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, 3, vecs))
	assert.Equal(t, 2*(4+12), buf.Len())

	got, d, err := Read(bytes.NewReader(buf.Bytes()), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, d)
	assert.Equal(t, vecs, got)

	got, d, err = Read(bytes.NewReader(buf.Bytes()), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, d)
	assert.Equal(t, vecs[:3], got)
}

func TestReadEmpty(t *testing.T) {
	got, d, err := Read(bytes.NewReader(nil), 0)
	require.NoError(t, err)
	assert.Zero(t, d)
	assert.Empty(t, got)
}

func TestReadInts(t *testing.T) {
	var buf bytes.Buffer
	for _, rec := range [][]int32{{7, -1}, {3, 9}} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, int32(len(rec))))
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, rec))
	}

	got, d, err := ReadInts(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, d)
	assert.Equal(t, []int64{7, -1, 3, 9}, got)
}

func TestMalformed(t *testing.T) {
	le := func(vals ...int32) []byte {
		var buf bytes.Buffer
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, vals))
		return buf.Bytes()
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short header", []byte{1, 0}, ErrBadRecord},
		{"zero dimension", le(0), ErrBadRecord},
		{"negative dimension", le(-2), ErrBadRecord},
		{"huge dimension", le(MaxDimension + 1), ErrBadRecord},
		{"truncated body", le(4, 1, 2), ErrBadRecord},
		{"mixed dimensions", le(1, 5, 2, 6, 7), ErrMixedDimensions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Read(bytes.NewReader(tt.data), 0)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWriteRejectsRaggedInput(t *testing.T) {
	require.ErrorIs(t, Write(&bytes.Buffer{}, 3, []float32{1, 2}), ErrBadRecord)
	require.ErrorIs(t, Write(&bytes.Buffer{}, 0, nil), ErrBadRecord)
}

func TestFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "base.fvecs")
	require.NoError(t, WriteFile(path, 2, []float32{1, 2, 3, 4}))

	got, d, err := ReadFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, d)
	assert.Equal(t, []float32{1, 2, 3, 4}, got)

	_, _, err = ReadFile(filepath.Join(t.TempDir(), "missing.fvecs"), 0)
	require.Error(t, err)
}
