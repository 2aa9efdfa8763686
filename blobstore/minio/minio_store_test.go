package minio

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/annex/blobstore"
)

func newTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()

	endpoint := os.Getenv("ANNEX_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("ANNEX_MINIO_ENDPOINT not set")
	}

	client, err := New(endpoint, "minioadmin", "minioadmin", false)
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	bucket := "annex-test"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	return NewStore(client, bucket, "test-prefix/"), ctx
}

func TestStore_Integration(t *testing.T) {
	store, ctx := newTestStore(t)

	data := []byte("hello minio world")

	wb, err := store.Create(ctx, "test.anx")
	require.NoError(t, err)
	_, err = wb.Write(data)
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	info, err := store.Stat(ctx, "test.anx")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), info.Size)

	blob, err := store.Open(ctx, "test.anx")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, len(data))
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, buf)

	rc, err := blob.ReadRange(ctx, 6, 5)
	require.NoError(t, err)
	part, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "minio", string(part))

	all, err := blobstore.ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, data, all)
	require.NoError(t, blob.Close())

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "test.anx")

	require.NoError(t, store.Delete(ctx, "test.anx"))
	require.NoError(t, store.Delete(ctx, "test.anx"))

	_, err = store.Open(ctx, "test.anx")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestStore_AbortLeavesNothing(t *testing.T) {
	store, ctx := newTestStore(t)

	wb, err := store.Create(ctx, "aborted.anx")
	require.NoError(t, err)
	_, err = wb.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, wb.Abort())

	_, err = store.Stat(ctx, "aborted.anx")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
