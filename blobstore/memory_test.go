package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Open(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.Stat(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	writeBlob(t, store, "a/one", []byte("hello"))
	require.NoError(t, store.Put(ctx, "b/two", []byte("world")))

	names, err := store.List(ctx, "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/one"}, names)

	info, err := store.Stat(ctx, "b/two")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)

	blob, err := store.Open(ctx, "a/one")
	require.NoError(t, err)
	defer blob.Close()

	data, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	buf := make([]byte, 10)
	n, err := blob.ReadAt(ctx, buf, 3)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, store.Delete(ctx, "a/one"))
	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"b/two"}, names)
}

func TestMemoryStore_AbortKeepsPrevious(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	writeBlob(t, store, "x", []byte("keep"))

	w, err := store.Create(ctx, "x")
	require.NoError(t, err)
	_, err = w.Write([]byte("discard"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	_, err = w.Write([]byte("late"))
	assert.Error(t, err)

	blob, err := store.Open(ctx, "x")
	require.NoError(t, err)
	data, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
}
