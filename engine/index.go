package engine

import (
	"errors"
	"fmt"

	"github.com/hupe1980/annex/distance"
)

var (
	// ErrBadDescription is returned by New for unsupported or malformed descriptions.
	ErrBadDescription = errors.New("engine: unsupported index description")
	// ErrInvalidDimension is returned for non-positive or inconsistent dimensions.
	ErrInvalidDimension = errors.New("engine: invalid dimension")
	// ErrUnsupportedMetric is returned for metrics other than L2 and inner product.
	ErrUnsupportedMetric = errors.New("engine: unsupported metric")
	// ErrNotTrained is returned when vectors are added to an untrained index.
	ErrNotTrained = errors.New("engine: index not trained")
	// ErrTrainingFailed wraps failures of the training algorithms.
	ErrTrainingFailed = errors.New("engine: training failed")
	// ErrInvalidArgument is returned for inconsistent counts and buffer sizes.
	ErrInvalidArgument = errors.New("engine: invalid argument")
	// ErrIDsRequired is returned by IDMap.Add; use AddWithIDs instead.
	ErrIDsRequired = errors.New("engine: add does not work on an id map, use AddWithIDs")
	// ErrUnknownParameter is returned by SetParameter for unsupported names.
	ErrUnknownParameter = errors.New("engine: unknown parameter")
	// ErrInvalidFormat is returned by ReadIndex for malformed streams.
	ErrInvalidFormat = errors.New("engine: invalid index format")
)

// NoLabel marks an unfilled result slot.
const NoLabel int64 = -1

// Index is the capability contract of every index family.
//
// Labels reported by Search are dense row positions in insertion order,
// except for IDMap which reports the ids supplied to AddWithIDs.
type Index interface {
	// Dimension returns the vector dimensionality.
	Dimension() int
	// Metric returns the similarity metric.
	Metric() distance.Metric
	// IsTrained reports whether vectors can be added.
	IsTrained() bool
	// NTotal returns the number of stored vectors.
	NTotal() int64
	// Train fits the index to n vectors of x. A trained index that holds no
	// vectors is refit; once vectors are stored Train fails with
	// ErrTrainingFailed. A failed call keeps the previous fit.
	Train(n int, x []float32) error
	// Add appends n vectors of x.
	Add(n int, x []float32) error
	// Search finds the k best rows for each of the n queries in x and writes
	// them best first into distances and labels, both of length n*k.
	Search(n int, x []float32, k int, distances []float32, labels []int64) error
	// Reset removes all stored vectors but keeps training state.
	Reset()
}

// ParameterSetter is implemented by indexes with tunable search parameters.
type ParameterSetter interface {
	SetParameter(name string, value int) error
}

// SetParameter applies a named search parameter to idx.
// Supported names are "nprobe" (IVF) and "efSearch" / "efConstruction" (HNSW).
func SetParameter(idx Index, name string, value int) error {
	ps, ok := idx.(ParameterSetter)
	if !ok {
		return fmt.Errorf("%w: %q on %s", ErrUnknownParameter, name, Family(idx))
	}
	return ps.SetParameter(name, value)
}

// Family returns a short name of the index family, e.g. "IVFPQ".
func Family(idx Index) string {
	switch v := idx.(type) {
	case *IDMap:
		return "IDMap," + Family(v.inner)
	case *PreTransform:
		return fmt.Sprintf("PCA%d,", v.pca.DOut()) + Family(v.inner)
	case *Flat:
		return "Flat"
	case *HNSW:
		return fmt.Sprintf("HNSW%d", v.m)
	case *IVFFlat:
		return fmt.Sprintf("IVF%d,Flat", v.nlist)
	case *IVFPQ:
		return fmt.Sprintf("IVF%d,PQ%dx%d", v.nlist, v.pq.NumSubvectors(), v.pq.NBits())
	case *PQ:
		return fmt.Sprintf("PQ%dx%d", v.pq.NumSubvectors(), v.pq.NBits())
	case *SQ:
		return "SQ8"
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%T", idx)
	}
}

func checkVectors(d, n int, x []float32) error {
	if n < 0 {
		return fmt.Errorf("%w: negative vector count %d", ErrInvalidArgument, n)
	}
	if len(x) < n*d {
		return fmt.Errorf("%w: need %d floats for %d vectors of dimension %d, got %d", ErrInvalidArgument, n*d, n, d, len(x))
	}
	return nil
}

func checkSearch(d, n int, x []float32, k int, distances []float32, labels []int64) error {
	if k <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", ErrInvalidArgument, k)
	}
	if err := checkVectors(d, n, x); err != nil {
		return err
	}
	if len(distances) < n*k || len(labels) < n*k {
		return fmt.Errorf("%w: result buffers must hold %d entries", ErrInvalidArgument, n*k)
	}
	return nil
}

func validateShape(d int, metric distance.Metric) error {
	if d <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDimension, d)
	}
	if !metric.Valid() {
		return fmt.Errorf("%w: %v", ErrUnsupportedMetric, metric)
	}
	return nil
}
