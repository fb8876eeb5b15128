// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names used throughout the library.
const (
	// Coordinator metrics.
	MetricSaves      = "packrat_saves_total"
	MetricSaveSkips  = "packrat_save_skips_total"
	MetricHydrations = "packrat_hydrations_total"
	MetricLocalHits  = "packrat_local_hits_total"
	MetricRemoteHits = "packrat_remote_hits_total"
	MetricMisses     = "packrat_misses_total"
	MetricClears     = "packrat_clears_total"
	MetricEntrySize  = "packrat_entry_size_bytes"

	// Remote tier metrics.
	MetricRemoteWrites    = "packrat_remote_writes_total"
	MetricRemoteErrors    = "packrat_remote_errors_total"
	MetricRemoteWriteSecs = "packrat_remote_write_seconds"

	// Memoization metrics.
	MetricMemoHits   = "packrat_memo_hits_total"
	MetricMemoMisses = "packrat_memo_misses_total"
)

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
