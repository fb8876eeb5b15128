package packrat

import (
	"time"

	"go.uber.org/zap"

	"github.com/packrat-io/packrat/internal/queue"
	"github.com/packrat-io/packrat/internal/remote"
	"github.com/packrat-io/packrat/internal/stats"
)

// Defaults for entry configuration.
const (
	// DefaultDirectory is where entry files are stored when no
	// directory is configured.
	DefaultDirectory = "data/cache"

	// DefaultTTLDays is the default entry time-to-live. Effectively
	// "very long" rather than infinite, matching the expectation that
	// cached state eventually ages out.
	DefaultTTLDays = 999.0

	// DefaultGracePeriod bounds how long Close waits for pending
	// remote writes before abandoning them.
	DefaultGracePeriod = 30 * time.Second
)

// Option configures an Entry.
type Option interface {
	apply(*options)
}

// options holds the entry configuration.
type options struct {
	dataID         string
	directory      string
	ttlDays        *float64
	excluded       []string
	remote         remote.Store
	remoteDisabled bool
	clearCache     bool
	logger         *zap.Logger
	stats          stats.Collector
	grace          time.Duration
	queueBuffer    int
	now            func() time.Time
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	ttl := DefaultTTLDays
	return options{
		directory:   DefaultDirectory,
		ttlDays:     &ttl,
		logger:      zap.NewNop(),
		stats:       stats.NewNoop(),
		grace:       DefaultGracePeriod,
		queueBuffer: queue.DefaultBuffer,
		now:         time.Now,
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithDataID sets the entry's data ID. Required.
func WithDataID(id string) Option {
	return optionFunc(func(o *options) {
		o.dataID = id
	})
}

// WithDirectory sets the local cache directory.
// Default is "data/cache".
func WithDirectory(dir string) Option {
	return optionFunc(func(o *options) {
		o.directory = dir
	})
}

// WithTTLDays sets the entry time-to-live in days. Fractions are
// allowed; zero means the entry expires immediately on reload.
func WithTTLDays(days float64) Option {
	return optionFunc(func(o *options) {
		o.ttlDays = &days
	})
}

// WithoutTTL disables expiry for the entry.
func WithoutTTL() Option {
	return optionFunc(func(o *options) {
		o.ttlDays = nil
	})
}

// WithExcludedFields names fields that are never persisted.
func WithExcludedFields(names ...string) Option {
	return optionFunc(func(o *options) {
		o.excluded = append(o.excluded, names...)
	})
}

// WithRemote sets the remote store backing the entry (L2). If not set,
// the entry is local-only.
func WithRemote(s remote.Store) Option {
	return optionFunc(func(o *options) {
		o.remote = s
	})
}

// WithRemoteDisabled keeps the entry local-only even when opened
// through a registry that has a remote tier configured.
func WithRemoteDisabled() Option {
	return optionFunc(func(o *options) {
		o.remoteDisabled = true
	})
}

// WithClearCache skips hydration: the entry starts empty regardless of
// persisted state, and overwrites it on the next save.
func WithClearCache() Option {
	return optionFunc(func(o *options) {
		o.clearCache = true
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithGracePeriod bounds how long Close waits for pending remote
// writes. Default is 30 seconds.
func WithGracePeriod(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.grace = d
	})
}

// WithQueueBuffer sets the remote write queue depth. Saves block once
// the buffer is full.
func WithQueueBuffer(n int) Option {
	return optionFunc(func(o *options) {
		o.queueBuffer = n
	})
}

// withNow overrides the clock, for tests.
func withNow(fn func() time.Time) Option {
	return optionFunc(func(o *options) {
		o.now = fn
	})
}
