package quantization

import (
	"math/rand"
	"testing"

	"github.com/hupe1980/annex/distance"
	"github.com/hupe1980/annex/internal/kmeans"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomVectors(n, dim int, seed int64) []float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float32, n*dim)
	for i := range out {
		out[i] = rng.Float32()
	}
	return out
}

func TestNewProductQuantizer_Validation(t *testing.T) {
	_, err := NewProductQuantizer(10, 3, 8)
	require.ErrorIs(t, err, ErrInvalidParameters)

	_, err = NewProductQuantizer(16, 4, 9)
	require.ErrorIs(t, err, ErrInvalidParameters)

	_, err = NewProductQuantizer(0, 1, 8)
	require.ErrorIs(t, err, ErrInvalidParameters)

	pq, err := NewProductQuantizer(16, 4, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, pq.CodeSize())
	assert.Equal(t, 16, pq.NumCentroids())
	assert.False(t, pq.IsTrained())
}

func TestProductQuantizer_TooFewTrainingVectors(t *testing.T) {
	pq, err := NewProductQuantizer(8, 2, 8)
	require.NoError(t, err)

	err = pq.Train(randomVectors(100, 8, 1), 1)
	require.ErrorIs(t, err, kmeans.ErrTooFewPoints)
	assert.False(t, pq.IsTrained())
}

func TestProductQuantizer_EncodeDecode(t *testing.T) {
	const dim = 8
	pq, err := NewProductQuantizer(dim, 4, 4)
	require.NoError(t, err)

	data := randomVectors(500, dim, 7)
	require.NoError(t, pq.Train(data, 7))
	assert.True(t, pq.IsTrained())

	code := make([]byte, pq.CodeSize())
	out := make([]float32, dim)

	var total float32
	for i := 0; i < 50; i++ {
		vec := data[i*dim : (i+1)*dim]
		pq.Encode(vec, code)
		pq.Decode(code, out)
		total += distance.SquaredL2(vec, out)
	}

	// Reconstruction must beat the expected distance between two random points.
	assert.Less(t, total/50, float32(dim)/6)
}

func TestProductQuantizer_AdcMatchesDecode(t *testing.T) {
	const dim = 8
	pq, err := NewProductQuantizer(dim, 2, 4)
	require.NoError(t, err)
	require.NoError(t, pq.Train(randomVectors(300, dim, 3), 3))

	query := randomVectors(1, dim, 11)
	vec := randomVectors(1, dim, 12)

	code := make([]byte, pq.CodeSize())
	pq.Encode(vec, code)
	decoded := make([]float32, dim)
	pq.Decode(code, decoded)

	table := make([]float32, pq.NumSubvectors()*pq.NumCentroids())

	pq.ComputeDistanceTable(query, distance.MetricL2, table)
	assert.InDelta(t, distance.SquaredL2(query, decoded), pq.AdcDistance(table, code), 1e-4)

	pq.ComputeDistanceTable(query, distance.MetricInnerProduct, table)
	assert.InDelta(t, distance.Dot(query, decoded), pq.AdcDistance(table, code), 1e-4)
}

func TestProductQuantizer_SetCentroids(t *testing.T) {
	pq, err := NewProductQuantizer(4, 2, 1)
	require.NoError(t, err)

	require.Error(t, pq.SetCentroids([]float32{1}))
	require.NoError(t, pq.SetCentroids(make([]float32, 2*2*2)))
	assert.True(t, pq.IsTrained())
}
