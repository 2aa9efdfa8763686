// Package distance provides the vector comparison kernels and the metric
// identifiers shared by the engine and the public API.
//
// # Supported Metrics
//
//   - MetricInnerProduct: larger is more similar, results sort descending
//   - MetricL2: squared Euclidean distance, results sort ascending
//
// Metric values follow the FAISS numbering so persisted indexes and config
// files stay interchangeable with it.
//
// # Usage
//
//	d := distance.SquaredL2(a, b)
//	s := distance.Dot(a, b)
package distance
