// Package quantization provides the vector codecs used by compressed index families.
//
//   - Product Quantization (PQ): splits vectors into M subvectors and stores one
//     centroid index per subvector (M bytes per vector for 8-bit codebooks)
//   - Scalar Quantization (SQ8): maps every dimension to 8 bits using
//     per-dimension min/max bounds (4x compression)
//
// # Product Quantization
//
//	pq, _ := quantization.NewProductQuantizer(128, 8, 8)
//	_ = pq.Train(training, 1234)
//	code := make([]byte, pq.CodeSize())
//	pq.Encode(vector, code)
//
// Distances against codes use asymmetric distance computation (ADC): a
// per-query lookup table of M*K partial scores is built once and each code
// is scored with M table lookups.
//
// # Scalar Quantization (SQ8)
//
//	sq := quantization.NewScalarQuantizer(128)
//	_ = sq.Train(training)
//	code := make([]byte, 128)
//	sq.Encode(vector, code)
//	d := sq.L2Distance(query, code)
package quantization
