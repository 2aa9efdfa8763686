package transform

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPCA_Validation(t *testing.T) {
	_, err := NewPCA(4, 8)
	assert.Error(t, err)
	_, err = NewPCA(0, 0)
	assert.Error(t, err)
}

func TestPCA_RecoversDominantAxis(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	// Variance lives almost entirely on axis 2.
	const n = 400
	x := make([]float32, n*3)
	for i := 0; i < n; i++ {
		x[i*3] = float32(rng.NormFloat64() * 0.01)
		x[i*3+1] = float32(rng.NormFloat64() * 0.01)
		x[i*3+2] = float32(rng.NormFloat64()*10 + 3)
	}

	p, err := NewPCA(3, 1)
	require.NoError(t, err)

	_, err = p.Apply(1, x[:3])
	require.ErrorIs(t, err, ErrNotTrained)

	require.NoError(t, p.Train(n, x))
	require.True(t, p.IsTrained())

	assert.InDelta(t, 1.0, math.Abs(float64(p.Projection()[2])), 1e-3)
	assert.InDelta(t, 3.0, p.Mean()[2], 1.5)

	out, err := p.Apply(2, []float32{0, 0, 3, 0, 0, 13})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.InDelta(t, 10.0, math.Abs(float64(out[1]-out[0])), 0.05)
}

func TestPCA_RowsAreOrthonormal(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	const n, d, k = 200, 8, 4
	x := make([]float32, n*d)
	for i := range x {
		x[i] = rng.Float32()
	}

	p, err := NewPCA(d, k)
	require.NoError(t, err)
	require.NoError(t, p.Train(n, x))

	proj := p.Projection()
	for a := 0; a < k; a++ {
		for b := 0; b < k; b++ {
			var dot float64
			for j := 0; j < d; j++ {
				dot += float64(proj[a*d+j]) * float64(proj[b*d+j])
			}
			if a == b {
				assert.InDelta(t, 1.0, dot, 1e-4)
			} else {
				assert.InDelta(t, 0.0, dot, 1e-4)
			}
		}
	}
}

func TestPCA_DegenerateData(t *testing.T) {
	// All vectors identical: zero covariance still yields an orthonormal basis.
	x := []float32{1, 2, 3, 1, 2, 3}
	p, err := NewPCA(3, 2)
	require.NoError(t, err)
	require.NoError(t, p.Train(2, x))

	out, err := p.Apply(1, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0}, out)
}
