package engine

import (
	"fmt"

	"github.com/hupe1980/annex/distance"
	"github.com/hupe1980/annex/internal/quantization"
)

var _ Index = (*SQ)(nil)

// SQ stores 8-bit scalar-quantized vectors.
type SQ struct {
	d      int
	metric distance.Metric
	sq     *quantization.ScalarQuantizer
	codes  []byte // ntotal * d
}

// NewSQ creates an untrained SQ8 index.
func NewSQ(d int, metric distance.Metric) (*SQ, error) {
	if err := validateShape(d, metric); err != nil {
		return nil, err
	}
	return &SQ{d: d, metric: metric, sq: quantization.NewScalarQuantizer(d)}, nil
}

func (s *SQ) Dimension() int          { return s.d }
func (s *SQ) Metric() distance.Metric { return s.metric }
func (s *SQ) IsTrained() bool         { return s.sq.IsTrained() }
func (s *SQ) NTotal() int64           { return int64(len(s.codes) / s.d) }

// Train learns the per-dimension bounds.
func (s *SQ) Train(n int, x []float32) error {
	if err := checkVectors(s.d, n, x); err != nil {
		return err
	}
	if len(s.codes) > 0 {
		return fmt.Errorf("%w: cannot retrain an SQ index holding %d vectors", ErrTrainingFailed, s.NTotal())
	}
	if err := s.sq.Train(x[:n*s.d]); err != nil {
		return fmt.Errorf("%w: %w", ErrTrainingFailed, err)
	}
	return nil
}

// Add encodes and appends n vectors.
func (s *SQ) Add(n int, x []float32) error {
	if err := checkVectors(s.d, n, x); err != nil {
		return err
	}
	if !s.IsTrained() {
		return ErrNotTrained
	}

	start := len(s.codes)
	s.codes = append(s.codes, make([]byte, n*s.d)...)
	for i := 0; i < n; i++ {
		s.sq.Encode(x[i*s.d:(i+1)*s.d], s.codes[start+i*s.d:start+(i+1)*s.d])
	}

	return nil
}

// Search scans all codes without decoding them.
func (s *SQ) Search(n int, x []float32, k int, distances []float32, labels []int64) error {
	if err := checkSearch(s.d, n, x, k, distances, labels); err != nil {
		return err
	}
	if !s.IsTrained() {
		return ErrNotTrained
	}

	ntotal := s.NTotal()
	score := s.sq.L2Distance
	if s.metric == distance.MetricInnerProduct {
		score = s.sq.DotProduct
	}

	return forEachQuery(n, func(q int) error {
		query := x[q*s.d : (q+1)*s.d]
		tk := newTopK(k, s.metric)
		for i := int64(0); i < ntotal; i++ {
			tk.Push(i, score(query, s.codes[i*int64(s.d):(i+1)*int64(s.d)]))
		}
		writeRow(tk, s.metric, k, distances[q*k:(q+1)*k], labels[q*k:(q+1)*k])
		return nil
	})
}

// Reset removes all codes but keeps the bounds.
func (s *SQ) Reset() {
	s.codes = nil
}
