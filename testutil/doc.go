// Package testutil provides helpers for tests and benchmarks.
//
// Vectors are produced as flat row-major slices, the layout every index in
// this module consumes:
//
//	rng := testutil.NewRNG(seed)
//	x := rng.UniformVectors(1000, 64) // len(x) == 1000*64
//
// Ground truth and recall:
//
//	truth := testutil.ExactTopK(query, x, 64, k, distance.MetricL2)
//	recall := testutil.ComputeRecall(truth, approx)
package testutil
