package stats

// Compile-time check that noop implements Collector.
var _ Collector = (*noop)(nil)

// noop discards all metrics.
type noop struct{}

// NewNoop returns a collector that discards all metrics.
func NewNoop() Collector {
	return noop{}
}

func (noop) IncCounter(name string, delta int64)         {}
func (noop) SetGauge(name string, value int64)           {}
func (noop) ObserveHistogram(name string, value float64) {}
