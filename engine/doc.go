// Package engine implements the approximate nearest neighbor index families
// behind annex.
//
// Every family satisfies the Index contract: a fixed dimension and metric, a
// trained flag, dense row positions assigned in insertion order, and a search
// that fills caller-owned k*n buffers. Rows that cannot be filled carry the
// label -1 and the metric's worst score.
//
// # Families
//
//	Flat                exact brute force
//	HNSW<M>             hierarchical navigable small world graph over flat storage
//	IVF<nlist>,Flat     inverted lists of raw vectors
//	IVF<nlist>,PQ<m>    inverted lists of residual product-quantized codes
//	PQ<m>               product-quantized codes, exhaustive ADC scan
//	SQ8                 8-bit scalar-quantized codes
//	PCA<d>,...          PCA pre-transform wrapping any of the above
//
// Indexes are built from a description string with New and may be wrapped in
// an IDMap to carry caller-assigned int64 identifiers:
//
//	idx, err := engine.New(128, "IVF100,PQ8", distance.MetricL2)
//	if err != nil {
//	    return err
//	}
//	m := engine.NewIDMap(idx)
//	_ = m.Train(n, training)
//	_ = m.AddWithIDs(n, vectors, ids)
//
// Flat and HNSW are trained at construction. IVF, PQ, SQ and PCA need Train
// before vectors can be added.
//
// WriteIndex and ReadIndex serialize any index tree into a tagged binary
// stream. Each node starts with a four byte type tag.
package engine
