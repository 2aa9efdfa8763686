package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/annex/distance"
	"github.com/hupe1980/annex/testutil"
)

func TestHNSWRecallL2(t *testing.T) {
	const d, n = 32, 1000

	rng := testutil.NewRNG(7)
	data := rng.UniformVectors(n, d)
	queries := rng.UniformVectors(20, d)

	h, err := NewHNSW(d, 16, distance.MetricL2)
	require.NoError(t, err)
	require.NoError(t, h.SetParameter("efConstruction", 100))
	require.NoError(t, h.Add(n, data))
	require.NoError(t, h.SetParameter("efSearch", 200))

	assert.Equal(t, int64(n), h.NTotal())
	assert.GreaterOrEqual(t, meanRecall(t, h, data, queries, d, 10, distance.MetricL2), 0.9)
}

func TestHNSWInnerProductWithFullBeam(t *testing.T) {
	const d, n = 16, 300

	rng := testutil.NewRNG(11)
	data := rng.GaussianVectors(n, d)
	queries := rng.GaussianVectors(10, d)

	h, err := NewHNSW(d, 8, distance.MetricInnerProduct)
	require.NoError(t, err)
	require.NoError(t, h.Add(n, data))
	require.NoError(t, h.SetParameter("efSearch", n))

	assert.GreaterOrEqual(t, meanRecall(t, h, data, queries, d, 5, distance.MetricInnerProduct), 0.9)

	distances, labels := mustSearch(t, h, 1, queries[:d], 5)
	assertOrdered(t, distance.MetricInnerProduct, distances, labels)
	assert.InDelta(t, distance.Dot(queries[:d], data[labels[0]*d:(labels[0]+1)*d]), distances[0], 1e-4)
}

func TestHNSWSearchBeyondCount(t *testing.T) {
	h, err := NewHNSW(2, 4, distance.MetricL2)
	require.NoError(t, err)

	_, labels := mustSearch(t, h, 1, []float32{0, 0}, 3)
	assert.Equal(t, []int64{-1, -1, -1}, labels)

	require.NoError(t, h.Add(3, line))

	distances, labels := mustSearch(t, h, 1, []float32{0, 0}, 5)
	assert.Equal(t, []int64{0, 2, 1, -1, -1}, labels)
	assert.Equal(t, float32(9), distances[2])
}

func TestHNSWLevelZeroDegree(t *testing.T) {
	const d, n, m = 8, 200, 4

	h, err := NewHNSW(d, m, distance.MetricInnerProduct)
	require.NoError(t, err)
	require.NoError(t, h.Add(n, testutil.NewRNG(5).GaussianVectors(n, d)))

	// Inner product keeps the closest candidates, so a new node fills its level 0 list.
	assert.Len(t, h.links[n-1][0], 2*m)

	for node := range h.links {
		assert.LessOrEqual(t, len(h.links[node][0]), 2*m)
		for l := 1; l < len(h.links[node]); l++ {
			assert.LessOrEqual(t, len(h.links[node][l]), m)
		}
	}
}

func TestHNSWParameters(t *testing.T) {
	h, err := NewHNSW(4, 8, distance.MetricL2)
	require.NoError(t, err)
	assert.True(t, h.IsTrained())
	assert.Equal(t, DefaultEfSearch, h.EfSearch())

	require.NoError(t, SetParameter(h, "efSearch", 64))
	assert.Equal(t, 64, h.EfSearch())

	assert.ErrorIs(t, h.SetParameter("nprobe", 4), ErrUnknownParameter)
	assert.ErrorIs(t, h.SetParameter("efSearch", 0), ErrInvalidArgument)

	_, err = NewHNSW(4, 1, distance.MetricL2)
	assert.ErrorIs(t, err, ErrBadDescription)
}

func TestHNSWReset(t *testing.T) {
	h, err := NewHNSW(2, 4, distance.MetricL2)
	require.NoError(t, err)
	require.NoError(t, h.Add(3, line))

	h.Reset()
	assert.Equal(t, int64(0), h.NTotal())

	require.NoError(t, h.Add(1, []float32{5, 5}))
	_, labels := mustSearch(t, h, 1, []float32{0, 0}, 2)
	assert.Equal(t, []int64{0, -1}, labels)
}
