// Package minio stores annex index files in MinIO or any other
// S3-compatible server through the MinIO client.
//
//	client, err := minio.New("localhost:9000", "minioadmin", "minioadmin", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := minio.NewStore(client, "indexes", "prod/")
//
// Reads are ranged GETs. Writes stream through a single PutObject call of
// unknown length, so the object only becomes visible when the writer is closed.
package minio
