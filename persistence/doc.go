// Package persistence stores index trees in a blobstore.BlobStore.
//
// Every file starts with a 32-byte FileHeader (magic "ANX1", version,
// compression, lengths and a CRC32 of the uncompressed payload) followed by
// the engine blob, optionally compressed with zstd or lz4. Any structural
// problem found while loading is reported as an error matching ErrCorrupt.
package persistence
