package engine

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/annex/distance"
	"github.com/hupe1980/annex/internal/queue"
)

// forEachQuery runs fn for queries 0..n-1. Batches fan out over GOMAXPROCS
// workers; each query owns a disjoint row of the result buffers.
func forEachQuery(n int, fn func(q int) error) error {
	if n == 1 {
		return fn(0)
	}

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for q := 0; q < n; q++ {
		g.Go(func() error { return fn(q) })
	}

	return g.Wait()
}

func newTopK(k int, metric distance.Metric) *queue.TopK {
	return queue.NewTopK(k, metric == distance.MetricInnerProduct)
}

// writeRow drains tk into one k-wide result row and pads the rest with sentinels.
func writeRow(tk *queue.TopK, metric distance.Metric, k int, distances []float32, labels []int64) {
	items := tk.Drain()
	for i, it := range items {
		distances[i] = it.Distance
		labels[i] = it.ID
	}
	fillEmpty(metric, distances[len(items):k], labels[len(items):k])
}

func fillEmpty(metric distance.Metric, distances []float32, labels []int64) {
	worst := metric.Worst()
	for i := range labels {
		labels[i] = NoLabel
		distances[i] = worst
	}
}
