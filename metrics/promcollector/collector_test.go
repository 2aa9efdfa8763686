package promcollector

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/annex"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.RecordTrain(100, time.Millisecond, nil)
	c.RecordAdd(10, time.Millisecond, nil)
	c.RecordAdd(5, time.Millisecond, errors.New("boom"))
	c.RecordSearch(3, 4, time.Millisecond, nil)
	c.RecordWrite(2048, time.Millisecond, nil)
	c.RecordOpen(true, time.Millisecond, nil)
	c.RecordOpen(false, time.Millisecond, errors.New("corrupt"))

	assert.Equal(t, 100.0, testutil.ToFloat64(c.vectors.WithLabelValues("train")))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.vectors.WithLabelValues("add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("add", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("add", "error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.queries))
	assert.Equal(t, 2048.0, testutil.ToFloat64(c.written))
	assert.Equal(t, 2048.0, testutil.ToFloat64(c.lastWrite))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("create", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("load", "error")))

	// one series per op and status pair
	assert.Equal(t, 7, testutil.CollectAndCount(c.latency))
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	require.Error(t, err)

	var are prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &are)

	_, err = New(reg, WithNamespace("other"))
	require.NoError(t, err)
}

func TestConstLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg, WithConstLabels(prometheus.Labels{"index": "docs"}), WithBuckets([]float64{0.001, 0.01}))
	require.NoError(t, err)

	c.RecordSearch(1, 1, time.Microsecond, nil)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			found := false
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "index" && lp.GetValue() == "docs" {
					found = true
				}
			}
			assert.True(t, found, mf.GetName())
		}
	}
}

func TestCollectorWithIndex(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	cfg := annex.Config{
		Dimension:   2,
		Description: "Flat",
		Metric:      annex.MetricL2,
		Path:        filepath.Join(t.TempDir(), "flat.annex"),
	}
	idx, err := annex.New(cfg, annex.WithMetricsCollector(c))
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.AddWithIDs([]int64{1, 2, 3}, []float32{0, 0, 1, 1, 2, 2}))

	_, _, err = idx.Search(2, 2, []float32{0, 0, 2, 2})
	require.NoError(t, err)

	_, _, err = idx.Search(0, 1, []float32{0, 0})
	require.Error(t, err)

	require.NoError(t, idx.Write(context.Background()))

	assert.Equal(t, 3.0, testutil.ToFloat64(c.vectors.WithLabelValues("add")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.queries))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("search", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("search", "error")))
	assert.Positive(t, testutil.ToFloat64(c.written))
}
