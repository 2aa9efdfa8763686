package transform

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

const (
	powerIterations = 200
	convergenceTol  = 1e-9
)

// ErrNotTrained is returned when applying an untrained transform.
var ErrNotTrained = errors.New("transform: PCA matrix not trained")

// PCA reduces vectors from DIn to DOut dimensions by projecting onto the
// leading principal components of the training data.
type PCA struct {
	dIn     int
	dOut    int
	mean    []float32 // dIn
	proj    []float32 // dOut * dIn, row-major
	trained bool
}

// NewPCA creates an untrained PCA matrix.
func NewPCA(dIn, dOut int) (*PCA, error) {
	if dIn <= 0 || dOut <= 0 || dOut > dIn {
		return nil, fmt.Errorf("transform: invalid PCA shape %d -> %d", dIn, dOut)
	}
	return &PCA{dIn: dIn, dOut: dOut}, nil
}

// DIn returns the input dimension.
func (p *PCA) DIn() int { return p.dIn }

// DOut returns the output dimension.
func (p *PCA) DOut() int { return p.dOut }

// IsTrained reports whether the projection has been learned.
func (p *PCA) IsTrained() bool { return p.trained }

// Mean returns the learned mean. The slice is shared.
func (p *PCA) Mean() []float32 { return p.mean }

// Projection returns the row-major DOut x DIn matrix. The slice is shared.
func (p *PCA) Projection() []float32 { return p.proj }

// SetState installs a previously learned mean and projection.
func (p *PCA) SetState(mean, proj []float32) error {
	if len(mean) != p.dIn || len(proj) != p.dOut*p.dIn {
		return fmt.Errorf("transform: PCA state has wrong shape")
	}
	p.mean = append([]float32(nil), mean...)
	p.proj = append([]float32(nil), proj...)
	p.trained = true
	return nil
}

// Train learns the mean and leading eigenvectors of the covariance of n vectors.
func (p *PCA) Train(n int, x []float32) error {
	if n <= 0 || len(x) < n*p.dIn {
		return fmt.Errorf("transform: PCA needs at least one training vector")
	}

	d := p.dIn

	mean := make([]float64, d)
	for i := 0; i < n; i++ {
		for j, v := range x[i*d : (i+1)*d] {
			mean[j] += float64(v)
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}

	cov := make([]float64, d*d)
	centered := make([]float64, d)
	for i := 0; i < n; i++ {
		for j, v := range x[i*d : (i+1)*d] {
			centered[j] = float64(v) - mean[j]
		}
		for a := 0; a < d; a++ {
			ca := centered[a]
			if ca == 0 {
				continue
			}
			row := cov[a*d : (a+1)*d]
			for b := a; b < d; b++ {
				row[b] += ca * centered[b]
			}
		}
	}
	for a := 0; a < d; a++ {
		for b := a; b < d; b++ {
			v := cov[a*d+b] / float64(n)
			cov[a*d+b] = v
			cov[b*d+a] = v
		}
	}

	vecs := topEigenvectors(cov, d, p.dOut)

	p.mean = make([]float32, d)
	for j, v := range mean {
		p.mean[j] = float32(v)
	}
	p.proj = make([]float32, p.dOut*d)
	for k, v := range vecs {
		for j, c := range v {
			p.proj[k*d+j] = float32(c)
		}
	}
	p.trained = true

	return nil
}

// Apply projects n vectors and returns the n*DOut result.
func (p *PCA) Apply(n int, x []float32) ([]float32, error) {
	if !p.trained {
		return nil, ErrNotTrained
	}

	out := make([]float32, n*p.dOut)
	centered := make([]float32, p.dIn)
	for i := 0; i < n; i++ {
		for j, v := range x[i*p.dIn : (i+1)*p.dIn] {
			centered[j] = v - p.mean[j]
		}
		for k := 0; k < p.dOut; k++ {
			row := p.proj[k*p.dIn : (k+1)*p.dIn]
			var s float32
			for j, c := range centered {
				s += row[j] * c
			}
			out[i*p.dOut+k] = s
		}
	}

	return out, nil
}

// topEigenvectors returns the k leading unit eigenvectors of the symmetric
// d x d matrix m using power iteration with Gram-Schmidt deflation.
func topEigenvectors(m []float64, d, k int) [][]float64 {
	rng := rand.New(rand.NewSource(1234)) //nolint:gosec // deterministic init
	vecs := make([][]float64, 0, k)
	w := make([]float64, d)

	for len(vecs) < k {
		v := make([]float64, d)
		for j := range v {
			v[j] = rng.NormFloat64()
		}
		if !orthonormalize(v, vecs) {
			v = basisComplement(d, vecs)
		}

		for iter := 0; iter < powerIterations; iter++ {
			for a := 0; a < d; a++ {
				var s float64
				row := m[a*d : (a+1)*d]
				for b, vb := range v {
					s += row[b] * vb
				}
				w[a] = s
			}
			if !orthonormalize(w, vecs) {
				// v spans the null space of the deflated matrix.
				break
			}

			var delta float64
			for j := range v {
				diff := w[j] - v[j]
				delta += diff * diff
			}
			copy(v, w)
			if delta < convergenceTol {
				break
			}
		}

		vecs = append(vecs, v)
	}

	return vecs
}

// orthonormalize removes the components of v along basis and normalizes it.
// It reports false when nothing is left.
func orthonormalize(v []float64, basis [][]float64) bool {
	for _, b := range basis {
		var dot float64
		for j := range v {
			dot += v[j] * b[j]
		}
		for j := range v {
			v[j] -= dot * b[j]
		}
	}

	var norm float64
	for _, c := range v {
		norm += c * c
	}
	norm = math.Sqrt(norm)
	if norm < 1e-12 {
		return false
	}
	for j := range v {
		v[j] /= norm
	}
	return true
}

func basisComplement(d int, basis [][]float64) []float64 {
	for j := 0; j < d; j++ {
		v := make([]float64, d)
		v[j] = 1
		if orthonormalize(v, basis) {
			return v
		}
	}
	// Unreachable while len(basis) < d.
	return make([]float64, d)
}
