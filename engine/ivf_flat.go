package engine

import (
	"github.com/hupe1980/annex/distance"
)

var _ Index = (*IVFFlat)(nil)

// IVFFlat partitions raw vectors into inverted lists around trained centroids.
type IVFFlat struct {
	ivfCore
	score distance.Func
	lists [][]float32 // raw vectors per list, aligned with listIDs
}

// NewIVFFlat creates an untrained IVF index with nlist lists.
func NewIVFFlat(d, nlist int, metric distance.Metric) (*IVFFlat, error) {
	core, err := newIVFCore(d, nlist, metric)
	if err != nil {
		return nil, err
	}
	score, _ := distance.Provider(metric)

	return &IVFFlat{
		ivfCore: core,
		score:   score,
		lists:   make([][]float32, nlist),
	}, nil
}

// Train fits the coarse quantizer.
func (f *IVFFlat) Train(n int, x []float32) error {
	return f.trainCoarse(n, x)
}

// Add assigns each vector to its closest list.
func (f *IVFFlat) Add(n int, x []float32) error {
	if err := checkVectors(f.d, n, x); err != nil {
		return err
	}
	if !f.IsTrained() {
		return ErrNotTrained
	}

	for i := 0; i < n; i++ {
		vec := x[i*f.d : (i+1)*f.d]
		list := f.assign(vec)
		f.listIDs[list] = append(f.listIDs[list], f.ntotal)
		f.lists[list] = append(f.lists[list], vec...)
		f.ntotal++
	}

	return nil
}

// Search scans the nprobe closest lists of each query.
func (f *IVFFlat) Search(n int, x []float32, k int, distances []float32, labels []int64) error {
	if err := checkSearch(f.d, n, x, k, distances, labels); err != nil {
		return err
	}
	if !f.IsTrained() {
		return ErrNotTrained
	}

	return forEachQuery(n, func(q int) error {
		query := x[q*f.d : (q+1)*f.d]
		tk := newTopK(k, f.metric)
		for _, list := range f.probe(query) {
			vecs := f.lists[list]
			for j, id := range f.listIDs[list] {
				tk.Push(id, f.score(query, vecs[j*f.d:(j+1)*f.d]))
			}
		}
		writeRow(tk, f.metric, k, distances[q*k:(q+1)*k], labels[q*k:(q+1)*k])
		return nil
	})
}

// Reset empties the lists but keeps the centroids.
func (f *IVFFlat) Reset() {
	f.resetLists()
	f.lists = make([][]float32, f.nlist)
}
