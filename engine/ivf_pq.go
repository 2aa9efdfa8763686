package engine

import (
	"fmt"

	"github.com/hupe1980/annex/distance"
	"github.com/hupe1980/annex/internal/quantization"
)

var _ Index = (*IVFPQ)(nil)

// IVFPQ stores product-quantized residuals (vector minus list centroid) in inverted lists.
type IVFPQ struct {
	ivfCore
	pq    *quantization.ProductQuantizer
	codes [][]byte // codes per list, aligned with listIDs
}

// NewIVFPQ creates an untrained IVF index with m subquantizers of nbits each.
func NewIVFPQ(d, nlist, m, nbits int, metric distance.Metric) (*IVFPQ, error) {
	core, err := newIVFCore(d, nlist, metric)
	if err != nil {
		return nil, err
	}
	pq, err := quantization.NewProductQuantizer(d, m, nbits)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadDescription, err)
	}

	return &IVFPQ{
		ivfCore: core,
		pq:      pq,
		codes:   make([][]byte, nlist),
	}, nil
}

// IsTrained reports whether both the coarse quantizer and the codebooks are trained.
func (f *IVFPQ) IsTrained() bool {
	return f.ivfCore.IsTrained() && f.pq.IsTrained()
}

// Train fits the coarse quantizer, then the codebooks on the training residuals.
func (f *IVFPQ) Train(n int, x []float32) error {
	if n < f.pq.NumCentroids() {
		return fmt.Errorf("%w: PQ needs at least %d training vectors, got %d", ErrTrainingFailed, f.pq.NumCentroids(), n)
	}

	prev := f.centroids
	if err := f.trainCoarse(n, x); err != nil {
		return err
	}

	residuals := make([]float32, n*f.d)
	for i := 0; i < n; i++ {
		f.residual(x[i*f.d:(i+1)*f.d], f.assign(x[i*f.d:(i+1)*f.d]), residuals[i*f.d:(i+1)*f.d])
	}

	if err := f.pq.Train(residuals, ivfSeed); err != nil {
		f.centroids = prev
		return fmt.Errorf("%w: %w", ErrTrainingFailed, err)
	}

	return nil
}

func (f *IVFPQ) residual(vec []float32, list int, out []float32) {
	c := f.centroid(list)
	for j := range out {
		out[j] = vec[j] - c[j]
	}
}

// Add encodes each vector's residual into its closest list.
func (f *IVFPQ) Add(n int, x []float32) error {
	if err := checkVectors(f.d, n, x); err != nil {
		return err
	}
	if !f.IsTrained() {
		return ErrNotTrained
	}

	res := make([]float32, f.d)
	code := make([]byte, f.pq.CodeSize())
	for i := 0; i < n; i++ {
		vec := x[i*f.d : (i+1)*f.d]
		list := f.assign(vec)
		f.residual(vec, list, res)
		f.pq.Encode(res, code)
		f.listIDs[list] = append(f.listIDs[list], f.ntotal)
		f.codes[list] = append(f.codes[list], code...)
		f.ntotal++
	}

	return nil
}

// Search scores the codes of the nprobe closest lists with per-list ADC tables.
func (f *IVFPQ) Search(n int, x []float32, k int, distances []float32, labels []int64) error {
	if err := checkSearch(f.d, n, x, k, distances, labels); err != nil {
		return err
	}
	if !f.IsTrained() {
		return ErrNotTrained
	}

	cs := f.pq.CodeSize()

	return forEachQuery(n, func(q int) error {
		query := x[q*f.d : (q+1)*f.d]
		tk := newTopK(k, f.metric)
		table := make([]float32, f.pq.NumSubvectors()*f.pq.NumCentroids())
		res := make([]float32, f.d)

		if f.metric == distance.MetricInnerProduct {
			// <q, c + r> = <q, c> + <q, r>; the table does not depend on the list.
			f.pq.ComputeDistanceTable(query, f.metric, table)
		}

		for _, list := range f.probe(query) {
			var base float32
			if f.metric == distance.MetricInnerProduct {
				base = distance.Dot(query, f.centroid(list))
			} else {
				f.residual(query, list, res)
				f.pq.ComputeDistanceTable(res, f.metric, table)
			}

			codes := f.codes[list]
			for j, id := range f.listIDs[list] {
				tk.Push(id, base+f.pq.AdcDistance(table, codes[j*cs:(j+1)*cs]))
			}
		}

		writeRow(tk, f.metric, k, distances[q*k:(q+1)*k], labels[q*k:(q+1)*k])
		return nil
	})
}

// Reset empties the lists but keeps the trained quantizers.
func (f *IVFPQ) Reset() {
	f.resetLists()
	f.codes = make([][]byte, f.nlist)
}
