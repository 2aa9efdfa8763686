package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/annex/distance"
	"github.com/hupe1980/annex/internal/kmeans"
	"github.com/hupe1980/annex/testutil"
)

func TestPQTrainingGate(t *testing.T) {
	const d = 16

	p, err := NewPQ(d, 4, 4, distance.MetricL2)
	require.NoError(t, err)
	assert.False(t, p.IsTrained())

	x := testutil.NewRNG(1).UniformVectors(10, d)
	assert.ErrorIs(t, p.Add(10, x), ErrNotTrained)

	err = p.Train(10, x)
	assert.ErrorIs(t, err, ErrTrainingFailed)
	assert.ErrorIs(t, err, kmeans.ErrTooFewPoints)
}

func TestPQSearch(t *testing.T) {
	const d, n = 16, 800

	rng := testutil.NewRNG(21)
	data := rng.UniformVectors(n, d)
	queries := rng.UniformVectors(20, d)

	p, err := NewPQ(d, 8, 4, distance.MetricL2)
	require.NoError(t, err)
	require.NoError(t, p.Train(n, data))
	require.NoError(t, p.Add(n, data))
	assert.Equal(t, int64(n), p.NTotal())

	assert.GreaterOrEqual(t, meanRecall(t, p, data, queries, d, 10, distance.MetricL2), 0.25)

	assert.ErrorIs(t, p.Train(n, data), ErrTrainingFailed)

	p.Reset()
	assert.True(t, p.IsTrained())
	assert.Equal(t, int64(0), p.NTotal())
}

func TestSQSearch(t *testing.T) {
	const d, n = 16, 1000

	rng := testutil.NewRNG(23)
	data := rng.UniformVectors(n, d)
	queries := rng.UniformVectors(20, d)

	for _, metric := range []distance.Metric{distance.MetricL2, distance.MetricInnerProduct} {
		t.Run(metric.String(), func(t *testing.T) {
			s, err := NewSQ(d, metric)
			require.NoError(t, err)
			assert.ErrorIs(t, s.Add(n, data), ErrNotTrained)

			require.NoError(t, s.Train(n, data))
			require.NoError(t, s.Add(n, data))

			assert.GreaterOrEqual(t, meanRecall(t, s, data, queries, d, 10, metric), 0.8)

			distances, labels := mustSearch(t, s, 1, queries[:d], 10)
			assertOrdered(t, metric, distances, labels)
		})
	}
}
