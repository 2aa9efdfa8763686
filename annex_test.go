package annex

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/annex/distance"
	"github.com/hupe1980/annex/engine"
	"github.com/hupe1980/annex/testutil"
)

func newFlat(t *testing.T, d int, opts ...Option) *Index {
	t.Helper()

	ix, err := New(Config{Dimension: d, Description: "Flat", Metric: MetricL2}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func TestFlatScenario(t *testing.T) {
	const d = 128

	ix := newFlat(t, d)
	assert.True(t, ix.IsTrained())

	vectors := testutil.NewRNG(42).UniformVectors(200, d)
	ids := make([]int64, 200)
	for i := range ids {
		ids[i] = int64(i * 9)
	}
	require.NoError(t, ix.AddWithIDs(ids, vectors))

	assert.Equal(t, int64(200), ix.Count())
	assert.Equal(t, int64(1791), ix.MaxID())

	gotIDs, gotDist, err := ix.Search(2000, 1, vectors[:d])
	require.NoError(t, err)
	assert.Len(t, gotIDs, 200)
	assert.Len(t, gotDist, 200)
	assert.NotContains(t, gotIDs, engine.NoLabel)
	assert.Equal(t, int64(0), gotIDs[0])
	assert.InDelta(t, 0, gotDist[0], 1e-6)
}

func TestFreshIndex(t *testing.T) {
	tests := []struct {
		description string
		trained     bool
	}{
		{"Flat", true},
		{"HNSW16", true},
		{"HNSW", true},
		{"IVF4,Flat", false},
		{"IVF4,PQ4", false},
		{"PQ4x4", false},
		{"SQ8", false},
		{"PCA8,Flat", false},
		{"IDMap,Flat", true},
	}

	for _, tt := range tests {
		for _, metric := range []Metric{MetricL2, MetricInnerProduct} {
			t.Run(tt.description+"/"+metric.String(), func(t *testing.T) {
				ix, err := New(Config{Dimension: 16, Description: tt.description, Metric: metric})
				require.NoError(t, err)
				defer ix.Close()

				assert.Equal(t, 16, ix.Dimension())
				assert.Equal(t, int64(0), ix.Count())
				assert.Equal(t, int64(0), ix.MaxID())
				assert.Equal(t, tt.trained, ix.IsTrained())
			})
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		cause error
	}{
		{"zero dimension", Config{Dimension: 0, Description: "Flat", Metric: MetricL2}, nil},
		{"empty description", Config{Dimension: 8, Metric: MetricL2}, nil},
		{"bad metric", Config{Dimension: 8, Description: "Flat", Metric: Metric(7)}, nil},
		{"unknown family", Config{Dimension: 8, Description: "LSH", Metric: MetricL2}, engine.ErrBadDescription},
		{"pq does not divide", Config{Dimension: 10, Description: "PQ3", Metric: MetricL2}, engine.ErrBadDescription},
		{"pca grows", Config{Dimension: 8, Description: "PCA16,Flat", Metric: MetricL2}, engine.ErrBadDescription},
		{"nprobe on flat", Config{Dimension: 8, Description: "Flat", Metric: MetricL2, Search: SearchParams{NProbe: 4}}, engine.ErrUnknownParameter},
		{"negative ef", Config{Dimension: 8, Description: "HNSW", Metric: MetricL2, Search: SearchParams{EfSearch: -1}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			var ce *ConfigurationError
			require.ErrorAs(t, err, &ce)
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
		})
	}
}

func TestSearchParamsAreApplied(t *testing.T) {
	ix, err := New(Config{Dimension: 8, Description: "IVF8,Flat", Metric: MetricL2, Search: SearchParams{NProbe: 8}})
	require.NoError(t, err)
	defer ix.Close()

	data := testutil.NewRNG(3).ClusteredVectors(400, 8, 8, 0.05)
	require.NoError(t, ix.Train(data))
	ids := make([]int64, 400)
	for i := range ids {
		ids[i] = int64(i)
	}
	require.NoError(t, ix.AddWithIDs(ids, data))

	gotIDs, _, err := ix.Search(5, 1, data[80:88])
	require.NoError(t, err)

	want := testutil.ExactTopK(data[80:88], data, 8, 5, distance.MetricL2)
	assert.Equal(t, want[0].ID, gotIDs[0])
	assert.Len(t, gotIDs, 5)
}

func TestSetSearchParams(t *testing.T) {
	ix, err := New(Config{Dimension: 8, Description: "HNSW8", Metric: MetricL2})
	require.NoError(t, err)

	require.NoError(t, ix.SetSearchParams(SearchParams{EfSearch: 64}))
	assert.Equal(t, 64, ix.Config().Search.EfSearch)

	var ce *ConfigurationError
	require.ErrorAs(t, ix.SetSearchParams(SearchParams{NProbe: 4}), &ce)
	require.ErrorAs(t, ix.SetSearchParams(SearchParams{EfSearch: -1}), &ce)
	assert.Equal(t, 64, ix.Config().Search.EfSearch)

	require.NoError(t, ix.Close())
	require.ErrorIs(t, ix.SetSearchParams(SearchParams{EfSearch: 8}), ErrClosed)
}

func TestTrainingGate(t *testing.T) {
	const d = 8
	ix, err := New(Config{Dimension: d, Description: "IVF4,Flat", Metric: MetricL2})
	require.NoError(t, err)
	defer ix.Close()

	rng := testutil.NewRNG(7)
	vec := rng.UniformVectors(1, d)

	var nt *NotTrainedError
	require.ErrorAs(t, ix.AddWithID(1, vec), &nt)
	assert.ErrorIs(t, nt, engine.ErrNotTrained)
	assert.Equal(t, int64(0), ix.Count())

	var te *TrainingError
	require.ErrorAs(t, ix.Train(nil), &te)
	require.ErrorAs(t, ix.Train(make([]float32, d+1)), &te)
	var dm *DimensionMismatchError
	assert.ErrorAs(t, te, &dm)

	require.ErrorAs(t, ix.Train(rng.UniformVectors(2, d)), &te)
	assert.Equal(t, 2, te.Samples)
	assert.ErrorIs(t, te, engine.ErrTrainingFailed)
	assert.False(t, ix.IsTrained())

	require.NoError(t, ix.Train(rng.UniformVectors(100, d)))
	assert.True(t, ix.IsTrained())

	// An empty index refits.
	require.NoError(t, ix.Train(rng.UniformVectors(100, d)))
	assert.True(t, ix.IsTrained())

	require.NoError(t, ix.AddWithID(1, vec))
	assert.Equal(t, int64(1), ix.Count())

	require.ErrorAs(t, ix.Train(rng.UniformVectors(100, d)), &te)
	assert.ErrorIs(t, te, engine.ErrTrainingFailed)
	assert.True(t, ix.IsTrained())
	assert.Equal(t, int64(1), ix.Count())
}

func TestAddWithIDsValidation(t *testing.T) {
	const d = 4
	ix := newFlat(t, d)
	require.NoError(t, ix.AddWithIDs([]int64{10}, make([]float32, d)))

	var dm *DimensionMismatchError
	require.ErrorAs(t, ix.AddWithIDs([]int64{1}, make([]float32, d+1)), &dm)
	assert.Equal(t, d+1, dm.Actual)

	require.ErrorAs(t, ix.AddWithIDs([]int64{1, 2, 3}, make([]float32, 2*d)), &dm)
	assert.Equal(t, 2, dm.Expected)
	assert.Equal(t, 3, dm.Actual)

	assert.ErrorIs(t, ix.AddWithIDs([]int64{4, -1}, make([]float32, 2*d)), ErrReservedID)

	assert.Equal(t, int64(1), ix.Count())
	assert.Equal(t, int64(10), ix.MaxID())

	require.NoError(t, ix.AddWithIDs(nil, nil))
	assert.Equal(t, int64(1), ix.Count())
}

func TestMaxIDIsLastAppended(t *testing.T) {
	ix := newFlat(t, 2)

	require.NoError(t, ix.AddWithIDs([]int64{5, 100, 7}, []float32{0, 0, 1, 1, 2, 2}))
	assert.Equal(t, int64(3), ix.Count())
	assert.Equal(t, int64(7), ix.MaxID())

	require.NoError(t, ix.AddWithID(3, []float32{4, 4}))
	assert.Equal(t, int64(4), ix.Count())
	assert.Equal(t, int64(3), ix.MaxID())

	assert.True(t, ix.Contains(100))
	assert.True(t, ix.Contains(3))
	assert.False(t, ix.Contains(4))
}

func TestDuplicateIDsAreAcceptedAndLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ix := newFlat(t, 2, WithLogger(logger))

	require.NoError(t, ix.AddWithIDs([]int64{1, 2}, []float32{0, 0, 1, 1}))
	assert.Empty(t, buf.String())

	require.NoError(t, ix.AddWithIDs([]int64{2, 2}, []float32{2, 2, 3, 3}))
	assert.Contains(t, buf.String(), "duplicate ids")
	assert.Contains(t, buf.String(), `"duplicates":2`)

	stats, err := ix.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Count)
	assert.Equal(t, uint64(2), stats.DistinctIDs)
	assert.Equal(t, int64(2), stats.Duplicates)
	assert.Equal(t, int64(2), stats.MaxID)
	assert.Equal(t, "Flat", stats.Family)
	assert.Equal(t, "L2", stats.Metric)
}

func TestSearchValidation(t *testing.T) {
	ix := newFlat(t, 4)
	require.NoError(t, ix.AddWithID(1, []float32{1, 2, 3, 4}))

	_, _, err := ix.Search(0, 1, make([]float32, 4))
	assert.ErrorIs(t, err, ErrInvalidK)

	_, _, err = ix.Search(1, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidNumQueries)

	var dm *DimensionMismatchError
	_, _, err = ix.Search(1, 2, make([]float32, 4))
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 8, dm.Expected)

	_, err = ix.SearchBatch(1, make([]float32, 3))
	assert.ErrorAs(t, err, &dm)

	_, err = ix.SearchBatch(1, nil)
	assert.ErrorIs(t, err, ErrInvalidNumQueries)
}

func TestSearchInnerProductOrder(t *testing.T) {
	ix, err := New(Config{Dimension: 2, Description: "Flat", Metric: MetricInnerProduct})
	require.NoError(t, err)
	defer ix.Close()

	require.NoError(t, ix.AddWithIDs([]int64{10, 20, 30}, []float32{1, 0, 3, 0, 2, 0}))

	ids, distances, err := ix.Search(5, 1, []float32{1, 0})
	require.NoError(t, err)
	assert.Equal(t, []int64{20, 30, 10}, ids)
	assert.Equal(t, []float32{3, 2, 1}, distances)
}

func TestSearchBatchSplitsRows(t *testing.T) {
	ix := newFlat(t, 1)
	require.NoError(t, ix.AddWithIDs([]int64{100, 200}, []float32{0, 10}))

	rows, err := ix.SearchBatch(3, []float32{1, 9})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []Neighbor{{ID: 100, Distance: 1}, {ID: 200, Distance: 81}}, rows[0])
	assert.Equal(t, []Neighbor{{ID: 200, Distance: 1}, {ID: 100, Distance: 81}}, rows[1])

	ids, _, err := ix.Search(3, 2, []float32{1, 9})
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200, -1, 200, 100}, ids)
}

// countingIndex is a trained engine that records search calls.
type countingIndex struct {
	d        int
	rows     int64
	searches int
}

func (c *countingIndex) Dimension() int             { return c.d }
func (c *countingIndex) Metric() distance.Metric    { return distance.MetricL2 }
func (c *countingIndex) IsTrained() bool            { return true }
func (c *countingIndex) NTotal() int64              { return c.rows }
func (c *countingIndex) Train(int, []float32) error { return nil }
func (c *countingIndex) Reset()                     { c.rows = 0 }

func (c *countingIndex) Add(n int, _ []float32) error {
	c.rows += int64(n)
	return nil
}

func (c *countingIndex) Search(n int, _ []float32, k int, distances []float32, labels []int64) error {
	c.searches++
	for i := range labels[:n*k] {
		labels[i] = engine.NoLabel
		distances[i] = 0
	}
	for q := 0; q < n && c.rows > 0; q++ {
		labels[q*k] = 0
	}
	return nil
}

func TestEmptySearchSkipsEngine(t *testing.T) {
	fake := &countingIndex{d: 4}
	cfg := Config{Dimension: 4, Description: "Flat", Metric: MetricL2}
	o := applyOptions(nil)
	ix := newIndex(cfg, engine.NewIDMap(fake), newManager(cfg, o), o)
	defer ix.Close()

	ids, distances, err := ix.Search(10, 2, make([]float32, 8))
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, distances)
	assert.NotNil(t, ids)

	rows, err := ix.SearchBatch(10, make([]float32, 8))
	require.NoError(t, err)
	assert.Equal(t, [][]Neighbor{{}, {}}, rows)
	assert.Equal(t, 0, fake.searches)

	require.NoError(t, ix.AddWithID(42, make([]float32, 4)))
	ids, _, err = ix.Search(3, 1, make([]float32, 4))
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, ids)
	assert.Equal(t, 1, fake.searches)
}

func TestClose(t *testing.T) {
	ix, err := New(Config{Dimension: 2, Description: "Flat", Metric: MetricL2})
	require.NoError(t, err)
	require.NoError(t, ix.AddWithID(1, []float32{1, 1}))

	require.NoError(t, ix.Close())
	require.NoError(t, ix.Close())

	assert.ErrorIs(t, ix.Train([]float32{1, 1}), ErrClosed)
	assert.ErrorIs(t, ix.AddWithID(2, []float32{1, 1}), ErrClosed)
	_, _, err = ix.Search(1, 1, []float32{1, 1})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = ix.SearchBatch(1, []float32{1, 1})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = ix.Stats()
	assert.ErrorIs(t, err, ErrClosed)

	assert.False(t, ix.IsTrained())
	assert.Equal(t, int64(0), ix.Count())
	assert.Equal(t, int64(0), ix.MaxID())
	assert.Equal(t, 0, ix.Dimension())
	assert.False(t, ix.Contains(1))
}

func TestMetricsCollector(t *testing.T) {
	mc := &BasicMetricsCollector{}
	ix := newFlat(t, 2, WithMetricsCollector(mc))

	require.NoError(t, ix.AddWithIDs([]int64{1, 2}, []float32{0, 0, 1, 1}))
	_, _, err := ix.Search(1, 2, []float32{0, 0, 1, 1})
	require.NoError(t, err)
	_, _, err = ix.Search(0, 1, []float32{0, 0})
	require.Error(t, err)
	require.Error(t, ix.Train([]float32{1}))

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.AddCount)
	assert.Equal(t, int64(2), stats.AddVectors)
	assert.Equal(t, int64(2), stats.SearchCount)
	assert.Equal(t, int64(1), stats.SearchErrors)
	assert.Equal(t, int64(2), stats.SearchQueries)
	assert.Equal(t, int64(1), stats.TrainErrors)
}

func TestTranslateError(t *testing.T) {
	assert.Nil(t, translateError("x", nil))

	var ce *ConfigurationError
	assert.ErrorAs(t, translateError("create", engine.ErrInvalidDimension), &ce)

	var nt *NotTrainedError
	assert.ErrorAs(t, translateError("search", engine.ErrNotTrained), &nt)
	assert.Equal(t, "search", nt.Op)

	other := errors.New("boom")
	assert.Same(t, other, translateError("add", other))
}
