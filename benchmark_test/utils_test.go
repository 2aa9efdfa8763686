package annex_bench_test

import (
	"fmt"
	"testing"

	"github.com/hupe1980/annex"
	"github.com/hupe1980/annex/testutil"
)

func formatDim(d int) string { return fmt.Sprintf("dim=%d", d) }

func formatCount(n int) string { return fmt.Sprintf("n=%d", n) }

func sequentialIDs(start, n int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(start + i)
	}
	return ids
}

// buildIndex returns a trained index holding n clustered vectors.
func buildIndex(b *testing.B, desc string, dim, n int, search annex.SearchParams) (*annex.Index, []float32) {
	b.Helper()

	idx, err := annex.New(annex.Config{Dimension: dim, Description: desc, Metric: annex.MetricL2, Search: search})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = idx.Close() })

	data := testutil.NewRNG(1).ClusteredVectors(n, dim, 32, 0.1)
	if !idx.IsTrained() {
		if err := idx.Train(data); err != nil {
			b.Fatal(err)
		}
	}
	if err := idx.AddWithIDs(sequentialIDs(0, n), data); err != nil {
		b.Fatal(err)
	}
	return idx, data
}
