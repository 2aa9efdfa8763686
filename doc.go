// Package annex manages the lifecycle of approximate nearest neighbor
// indexes: building them from a description, training, id-mapped
// insertion, search, and persistence.
//
// # Quick Start
//
//	cfg := annex.Config{
//	    Dimension:   128,
//	    Description: "IVF100,Flat",
//	    Metric:      annex.MetricL2,
//	    Path:        "./items.anx",
//	}
//
//	idx, err := annex.OpenOrCreate(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer idx.Close()
//
//	if !idx.IsTrained() {
//	    _ = idx.Train(samples)
//	}
//	_ = idx.AddWithIDs(ids, vectors)
//	ids, distances, _ := idx.Search(10, 1, query)
//	_ = idx.Write(ctx)
//
// # Descriptions
//
// A description is a comma-separated recipe: "Flat", "HNSW32", "SQ8",
// "PQ16", "PQ16x4", "IVF100,Flat", "IVF100,PQ8" and any of those behind a
// "PCA<d>" pre-transform such as "PCA32,IVF100,PQ8". Flat and HNSW are
// usable immediately; every other family needs Train first.
//
// # Results
//
// The engine fills a fixed buffer of k slots per query and marks empty slots
// with -1. Search removes the empty slots after the last hit; SearchBatch
// returns one slice of Neighbor per query. The id -1 is therefore reserved
// and rejected on insert.
//
// # Storage
//
// Indexes are stored as single files through a blobstore.BlobStore: local
// files by default, or S3 and MinIO through WithStore.
package annex
