package annex

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives one call per facade operation.
// Implement this interface to integrate with monitoring systems;
// metrics/promcollector provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordTrain is called after each training call.
	RecordTrain(samples int, duration time.Duration, err error)

	// RecordAdd is called after each insert with the number of vectors offered.
	RecordAdd(count int, duration time.Duration, err error)

	// RecordSearch is called after each search.
	RecordSearch(k, numQueries int, duration time.Duration, err error)

	// RecordWrite is called after each write with the number of bytes stored.
	RecordWrite(bytes int64, duration time.Duration, err error)

	// RecordOpen is called when OpenOrCreate or Read finishes.
	// created reports whether a new index was built instead of loaded.
	RecordOpen(created bool, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordTrain(int, time.Duration, error)       {}
func (NoopMetricsCollector) RecordAdd(int, time.Duration, error)         {}
func (NoopMetricsCollector) RecordSearch(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordWrite(int64, time.Duration, error)     {}
func (NoopMetricsCollector) RecordOpen(bool, time.Duration, error)       {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	TrainCount       atomic.Int64
	TrainErrors      atomic.Int64
	TrainSamples     atomic.Int64
	AddCount         atomic.Int64
	AddErrors        atomic.Int64
	AddVectors       atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchQueries    atomic.Int64
	SearchTotalNanos atomic.Int64
	WriteCount       atomic.Int64
	WriteErrors      atomic.Int64
	WriteBytes       atomic.Int64
	OpenCount        atomic.Int64
	OpenCreated      atomic.Int64
	OpenErrors       atomic.Int64
}

var _ MetricsCollector = (*BasicMetricsCollector)(nil)

// RecordTrain implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTrain(samples int, _ time.Duration, err error) {
	b.TrainCount.Add(1)
	if err != nil {
		b.TrainErrors.Add(1)
		return
	}
	b.TrainSamples.Add(int64(samples))
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(count int, _ time.Duration, err error) {
	b.AddCount.Add(1)
	if err != nil {
		b.AddErrors.Add(1)
		return
	}
	b.AddVectors.Add(int64(count))
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_, numQueries int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
		return
	}
	b.SearchQueries.Add(int64(numQueries))
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(bytes int64, _ time.Duration, err error) {
	b.WriteCount.Add(1)
	if err != nil {
		b.WriteErrors.Add(1)
		return
	}
	b.WriteBytes.Add(bytes)
}

// RecordOpen implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOpen(created bool, _ time.Duration, err error) {
	b.OpenCount.Add(1)
	switch {
	case err != nil:
		b.OpenErrors.Add(1)
	case created:
		b.OpenCreated.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		TrainCount:     b.TrainCount.Load(),
		TrainErrors:    b.TrainErrors.Load(),
		TrainSamples:   b.TrainSamples.Load(),
		AddCount:       b.AddCount.Load(),
		AddErrors:      b.AddErrors.Load(),
		AddVectors:     b.AddVectors.Load(),
		SearchCount:    b.SearchCount.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchQueries:  b.SearchQueries.Load(),
		SearchAvgNanos: b.avgSearchNanos(),
		WriteCount:     b.WriteCount.Load(),
		WriteErrors:    b.WriteErrors.Load(),
		WriteBytes:     b.WriteBytes.Load(),
		OpenCount:      b.OpenCount.Load(),
		OpenCreated:    b.OpenCreated.Load(),
		OpenErrors:     b.OpenErrors.Load(),
	}
}

func (b *BasicMetricsCollector) avgSearchNanos() int64 {
	count := b.SearchCount.Load()
	if count == 0 {
		return 0
	}
	return b.SearchTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	TrainCount     int64
	TrainErrors    int64
	TrainSamples   int64
	AddCount       int64
	AddErrors      int64
	AddVectors     int64
	SearchCount    int64
	SearchErrors   int64
	SearchQueries  int64
	SearchAvgNanos int64
	WriteCount     int64
	WriteErrors    int64
	WriteBytes     int64
	OpenCount      int64
	OpenCreated    int64
	OpenErrors     int64
}
