package engine

import (
	"fmt"

	"github.com/hupe1980/annex/distance"
	"github.com/hupe1980/annex/internal/quantization"
)

const pqSeed = 1234

var _ Index = (*PQ)(nil)

// PQ stores product-quantized codes and scans them exhaustively with ADC.
type PQ struct {
	d      int
	metric distance.Metric
	pq     *quantization.ProductQuantizer
	codes  []byte // ntotal * CodeSize
}

// NewPQ creates an untrained product-quantized index.
func NewPQ(d, m, nbits int, metric distance.Metric) (*PQ, error) {
	if err := validateShape(d, metric); err != nil {
		return nil, err
	}
	pq, err := quantization.NewProductQuantizer(d, m, nbits)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadDescription, err)
	}
	return &PQ{d: d, metric: metric, pq: pq}, nil
}

func (p *PQ) Dimension() int          { return p.d }
func (p *PQ) Metric() distance.Metric { return p.metric }
func (p *PQ) IsTrained() bool         { return p.pq.IsTrained() }
func (p *PQ) NTotal() int64           { return int64(len(p.codes) / p.pq.CodeSize()) }

// Train learns the codebooks.
func (p *PQ) Train(n int, x []float32) error {
	if err := checkVectors(p.d, n, x); err != nil {
		return err
	}
	if len(p.codes) > 0 {
		return fmt.Errorf("%w: cannot retrain a PQ index holding %d vectors", ErrTrainingFailed, p.NTotal())
	}
	if err := p.pq.Train(x[:n*p.d], pqSeed); err != nil {
		return fmt.Errorf("%w: %w", ErrTrainingFailed, err)
	}
	return nil
}

// Add encodes and appends n vectors.
func (p *PQ) Add(n int, x []float32) error {
	if err := checkVectors(p.d, n, x); err != nil {
		return err
	}
	if !p.IsTrained() {
		return ErrNotTrained
	}

	cs := p.pq.CodeSize()
	start := len(p.codes)
	p.codes = append(p.codes, make([]byte, n*cs)...)
	for i := 0; i < n; i++ {
		p.pq.Encode(x[i*p.d:(i+1)*p.d], p.codes[start+i*cs:start+(i+1)*cs])
	}

	return nil
}

// Search scores every code against a per-query ADC table.
func (p *PQ) Search(n int, x []float32, k int, distances []float32, labels []int64) error {
	if err := checkSearch(p.d, n, x, k, distances, labels); err != nil {
		return err
	}
	if !p.IsTrained() {
		return ErrNotTrained
	}

	cs := p.pq.CodeSize()
	ntotal := p.NTotal()

	return forEachQuery(n, func(q int) error {
		table := make([]float32, p.pq.NumSubvectors()*p.pq.NumCentroids())
		p.pq.ComputeDistanceTable(x[q*p.d:(q+1)*p.d], p.metric, table)

		tk := newTopK(k, p.metric)
		for i := int64(0); i < ntotal; i++ {
			tk.Push(i, p.pq.AdcDistance(table, p.codes[i*int64(cs):(i+1)*int64(cs)]))
		}
		writeRow(tk, p.metric, k, distances[q*k:(q+1)*k], labels[q*k:(q+1)*k])
		return nil
	})
}

// Reset removes all codes but keeps the codebooks.
func (p *PQ) Reset() {
	p.codes = nil
}
