// Package s3 stores index blobs in Amazon S3 or an S3-compatible service.
//
//	store, err := s3.New(ctx, "my-bucket", s3.Config{Region: "us-east-1", Prefix: "indexes/"})
//	if err != nil { ... }
//
//	idx, err := annex.OpenOrCreate(ctx, cfg, annex.WithStore(store))
//
// Reads use ranged GETs. Writes stream through the multipart uploader and
// become visible only when the upload completes.
package s3
