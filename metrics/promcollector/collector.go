package promcollector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/annex"
)

// DefaultNamespace prefixes every metric name unless overridden with WithNamespace.
const DefaultNamespace = "annex"

var _ annex.MetricsCollector = (*Collector)(nil)

// Collector implements annex.MetricsCollector with Prometheus counters and histograms.
type Collector struct {
	latency   *prometheus.HistogramVec
	ops       *prometheus.CounterVec
	vectors   *prometheus.CounterVec
	queries   prometheus.Counter
	written   prometheus.Counter
	lastWrite prometheus.Gauge
}

type options struct {
	namespace string
	buckets   []float64
	labels    prometheus.Labels
}

// Option configures a Collector.
type Option func(*options)

// WithNamespace sets the metric name prefix.
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithBuckets sets the latency histogram buckets in seconds.
func WithBuckets(buckets []float64) Option {
	return func(o *options) { o.buckets = buckets }
}

// WithConstLabels attaches constant labels, e.g. the index path, to every metric.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(o *options) { o.labels = labels }
}

// New creates a Collector and registers its metrics with reg.
// A nil reg falls back to prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, opts ...Option) (*Collector, error) {
	o := options{
		namespace: DefaultNamespace,
		buckets:   prometheus.DefBuckets,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   o.namespace,
			Name:        "operation_latency_seconds",
			Help:        "Latency of index operations",
			Buckets:     o.buckets,
			ConstLabels: o.labels,
		}, []string{"op", "status"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "operations_total",
			Help:        "Index operations by outcome",
			ConstLabels: o.labels,
		}, []string{"op", "status"}),
		vectors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "vectors_total",
			Help:        "Vectors accepted by train and add",
			ConstLabels: o.labels,
		}, []string{"op"}),
		queries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "search_queries_total",
			Help:        "Query vectors searched",
			ConstLabels: o.labels,
		}),
		written: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "written_bytes_total",
			Help:        "Bytes written to storage",
			ConstLabels: o.labels,
		}),
		lastWrite: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   o.namespace,
			Name:        "last_write_bytes",
			Help:        "Size of the most recent successful write",
			ConstLabels: o.labels,
		}),
	}

	for _, m := range []prometheus.Collector{c.latency, c.ops, c.vectors, c.queries, c.written, c.lastWrite} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// RecordTrain implements annex.MetricsCollector.
func (c *Collector) RecordTrain(samples int, d time.Duration, err error) {
	c.observe("train", d, err)
	if err == nil {
		c.vectors.WithLabelValues("train").Add(float64(samples))
	}
}

// RecordAdd implements annex.MetricsCollector.
func (c *Collector) RecordAdd(count int, d time.Duration, err error) {
	c.observe("add", d, err)
	if err == nil {
		c.vectors.WithLabelValues("add").Add(float64(count))
	}
}

// RecordSearch implements annex.MetricsCollector.
func (c *Collector) RecordSearch(_, numQueries int, d time.Duration, err error) {
	c.observe("search", d, err)
	if err == nil {
		c.queries.Add(float64(numQueries))
	}
}

// RecordWrite implements annex.MetricsCollector.
func (c *Collector) RecordWrite(bytes int64, d time.Duration, err error) {
	c.observe("write", d, err)
	if err == nil {
		c.written.Add(float64(bytes))
		c.lastWrite.Set(float64(bytes))
	}
}

// RecordOpen implements annex.MetricsCollector.
func (c *Collector) RecordOpen(created bool, d time.Duration, err error) {
	op := "load"
	if created {
		op = "create"
	}
	c.observe(op, d, err)
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.latency.WithLabelValues(op, status).Observe(d.Seconds())
	c.ops.WithLabelValues(op, status).Inc()
}
