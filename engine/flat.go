package engine

import (
	"github.com/hupe1980/annex/distance"
)

var _ Index = (*Flat)(nil)

// Flat stores raw vectors and answers queries by exhaustive scan.
// It is always trained.
type Flat struct {
	d       int
	metric  distance.Metric
	score   distance.Func
	vectors []float32 // ntotal * d
}

// NewFlat creates an empty exact index.
func NewFlat(d int, metric distance.Metric) (*Flat, error) {
	if err := validateShape(d, metric); err != nil {
		return nil, err
	}

	score, _ := distance.Provider(metric)

	return &Flat{d: d, metric: metric, score: score}, nil
}

func (f *Flat) Dimension() int          { return f.d }
func (f *Flat) Metric() distance.Metric { return f.metric }
func (f *Flat) IsTrained() bool         { return true }
func (f *Flat) NTotal() int64           { return int64(len(f.vectors) / f.d) }

// Train is a no-op.
func (f *Flat) Train(n int, x []float32) error {
	return checkVectors(f.d, n, x)
}

// Add appends n vectors.
func (f *Flat) Add(n int, x []float32) error {
	if err := checkVectors(f.d, n, x); err != nil {
		return err
	}
	f.vectors = append(f.vectors, x[:n*f.d]...)
	return nil
}

// Vector returns the stored vector at row i. The slice is shared.
func (f *Flat) Vector(i int64) []float32 {
	return f.vectors[int(i)*f.d : int(i+1)*f.d]
}

// Search scans all rows for each query.
func (f *Flat) Search(n int, x []float32, k int, distances []float32, labels []int64) error {
	if err := checkSearch(f.d, n, x, k, distances, labels); err != nil {
		return err
	}

	ntotal := f.NTotal()

	return forEachQuery(n, func(q int) error {
		query := x[q*f.d : (q+1)*f.d]
		tk := newTopK(k, f.metric)
		for i := int64(0); i < ntotal; i++ {
			tk.Push(i, f.score(query, f.Vector(i)))
		}
		writeRow(tk, f.metric, k, distances[q*k:(q+1)*k], labels[q*k:(q+1)*k])
		return nil
	})
}

// Reset removes all vectors.
func (f *Flat) Reset() {
	f.vectors = nil
}
