package leann

import (
	"sync/atomic"
	"time"
)

// MetricsCollector reports operational metrics for the build and search
// paths. Implement this to integrate with a monitoring system; the engine
// never depends on a concrete metrics backend.
type MetricsCollector interface {
	// RecordBuild is called once per Builder.Build call that completes
	// successfully; a Build that returns an error does not call it.
	RecordBuild(numPassages int, duration time.Duration, err error)

	// RecordSearch is called once per Searcher.Search call that reaches the
	// query-embedding step. Calls that return before it (k <= 0, an empty
	// query) and hybrid queries that fail at the lexical step do not call it.
	RecordSearch(k int, found int, duration time.Duration, partial bool, err error)

	// RecordEmbedBatch is called once per embedding-provider batch call,
	// from either the builder or the searcher's recompute path.
	RecordEmbedBatch(batchSize int, duration time.Duration, err error)
}

// NoopMetricsCollector discards everything. It is the default.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(int, time.Duration, error)             {}
func (NoopMetricsCollector) RecordSearch(int, int, time.Duration, bool, error) {}
func (NoopMetricsCollector) RecordEmbedBatch(int, time.Duration, error)        {}

// BasicMetricsCollector is a dependency-free in-memory MetricsCollector,
// useful for tests and small deployments that don't want a Prometheus
// dependency.
type BasicMetricsCollector struct {
	BuildCount       atomic.Int64
	BuildErrors      atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchPartial    atomic.Int64
	SearchTotalNanos atomic.Int64
	EmbedBatchCount  atomic.Int64
	EmbedBatchErrors atomic.Int64
}

func (b *BasicMetricsCollector) RecordBuild(_ int, _ time.Duration, err error) {
	b.BuildCount.Add(1)
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordSearch(_ int, _ int, duration time.Duration, partial bool, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if partial {
		b.SearchPartial.Add(1)
	}
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordEmbedBatch(_ int, _ time.Duration, err error) {
	b.EmbedBatchCount.Add(1)
	if err != nil {
		b.EmbedBatchErrors.Add(1)
	}
}

// AvgSearchNanos returns the mean search latency in nanoseconds, or 0 if no
// searches have been recorded.
func (b *BasicMetricsCollector) AvgSearchNanos() int64 {
	count := b.SearchCount.Load()
	if count == 0 {
		return 0
	}
	return b.SearchTotalNanos.Load() / count
}
