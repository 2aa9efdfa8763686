package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/annex/distance"
	"github.com/hupe1980/annex/testutil"
)

func mustSearch(t *testing.T, idx Index, n int, x []float32, k int) ([]float32, []int64) {
	t.Helper()

	distances := make([]float32, n*k)
	labels := make([]int64, n*k)
	require.NoError(t, idx.Search(n, x, k, distances, labels))

	return distances, labels
}

// meanRecall compares the index against brute force over data for nq queries.
func meanRecall(t *testing.T, idx Index, data, queries []float32, d, k int, metric distance.Metric) float64 {
	t.Helper()

	nq := len(queries) / d
	distances, labels := mustSearch(t, idx, nq, queries, k)

	var total float64
	for q := 0; q < nq; q++ {
		truth := testutil.ExactTopK(queries[q*d:(q+1)*d], data, d, k, metric)
		got := testutil.Results(labels[q*k:(q+1)*k], distances[q*k:(q+1)*k])
		total += testutil.ComputeRecall(truth, got)
	}

	return total / float64(nq)
}

func assertOrdered(t *testing.T, metric distance.Metric, distances []float32, labels []int64) {
	t.Helper()

	for i := 1; i < len(labels); i++ {
		if labels[i] < 0 {
			continue
		}
		require.GreaterOrEqual(t, labels[i-1], int64(0), "filled slot after an empty one at %d", i)
		require.False(t, metric.Less(distances[i], distances[i-1]), "slot %d out of order", i)
	}
}
