// Package blobstore abstracts where serialized indexes live.
//
// A BlobStore hands out read handles (Blob) and atomic writers
// (WritableBlob). A writer's content becomes visible under its name only
// after Close succeeds; Abort leaves any previous content in place.
//
// # Implementations
//
//   - LocalStore: local files, memory-mapped for reading and guarded by
//     advisory file locks
//   - MemoryStore: in-process maps, for tests and ephemeral indexes
//   - s3.Store: Amazon S3 with ranged reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible servers
//
// Blobs that can expose their bytes directly implement Mappable;
// ReadAll uses it to avoid a copy.
package blobstore
