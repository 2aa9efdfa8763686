package engine

import (
	"fmt"

	"github.com/hupe1980/annex/distance"
	"github.com/hupe1980/annex/internal/transform"
)

var (
	_ Index           = (*PreTransform)(nil)
	_ ParameterSetter = (*PreTransform)(nil)
)

// PreTransform projects vectors with PCA before handing them to the inner index.
type PreTransform struct {
	pca   *transform.PCA
	inner Index
}

// NewPreTransform wraps inner, whose dimension must equal dOut, behind a dIn -> dOut PCA.
func NewPreTransform(dIn int, inner Index) (*PreTransform, error) {
	pca, err := transform.NewPCA(dIn, inner.Dimension())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadDescription, err)
	}
	return &PreTransform{pca: pca, inner: inner}, nil
}

// Inner returns the wrapped index.
func (p *PreTransform) Inner() Index { return p.inner }

func (p *PreTransform) Dimension() int          { return p.pca.DIn() }
func (p *PreTransform) Metric() distance.Metric { return p.inner.Metric() }
func (p *PreTransform) NTotal() int64           { return p.inner.NTotal() }

// IsTrained reports whether both the PCA and the inner index are trained.
func (p *PreTransform) IsTrained() bool {
	return p.pca.IsTrained() && p.inner.IsTrained()
}

// Train fits a PCA on x and trains the inner index on the projected vectors.
// A failed call keeps the previous projection.
func (p *PreTransform) Train(n int, x []float32) error {
	if err := checkVectors(p.pca.DIn(), n, x); err != nil {
		return err
	}
	if p.inner.NTotal() > 0 {
		return fmt.Errorf("%w: cannot retrain a pre-transformed index holding %d vectors", ErrTrainingFailed, p.inner.NTotal())
	}

	// The new projection is installed only once the inner index accepted it.
	pca, err := transform.NewPCA(p.pca.DIn(), p.pca.DOut())
	if err != nil {
		return err
	}
	if err := pca.Train(n, x); err != nil {
		return fmt.Errorf("%w: %w", ErrTrainingFailed, err)
	}

	projected, err := pca.Apply(n, x)
	if err != nil {
		return err
	}

	if err := p.inner.Train(n, projected); err != nil {
		return err
	}
	p.pca = pca
	return nil
}

// Add projects and appends n vectors.
func (p *PreTransform) Add(n int, x []float32) error {
	if err := checkVectors(p.pca.DIn(), n, x); err != nil {
		return err
	}
	if !p.IsTrained() {
		return ErrNotTrained
	}

	projected, err := p.pca.Apply(n, x)
	if err != nil {
		return err
	}

	return p.inner.Add(n, projected)
}

// Search projects the queries and searches the inner index.
func (p *PreTransform) Search(n int, x []float32, k int, distances []float32, labels []int64) error {
	if err := checkSearch(p.pca.DIn(), n, x, k, distances, labels); err != nil {
		return err
	}
	if !p.pca.IsTrained() {
		return ErrNotTrained
	}

	projected, err := p.pca.Apply(n, x)
	if err != nil {
		return err
	}

	return p.inner.Search(n, projected, k, distances, labels)
}

// SetParameter forwards to the inner index.
func (p *PreTransform) SetParameter(name string, value int) error {
	return SetParameter(p.inner, name, value)
}

// Reset empties the inner index.
func (p *PreTransform) Reset() {
	p.inner.Reset()
}
