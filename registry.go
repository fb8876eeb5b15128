package packrat

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/packrat-io/packrat/internal/keys"
	"github.com/packrat-io/packrat/internal/remote"
	"github.com/packrat-io/packrat/internal/stats"
)

// ErrRegistryClosed indicates the registry has been shut down.
var ErrRegistryClosed = errors.New("packrat: registry closed")

// RemoteOpener creates the shared remote store on first need.
type RemoteOpener func(ctx context.Context) (remote.Store, error)

// Registry tracks the live entries of a process and owns the shared
// remote session. Entries opened through a registry reuse one remote
// connection, and Shutdown guarantees their pending remote writes are
// drained before the session tears down.
//
// The registry holds entries only between Open and Close; a closed
// entry deregisters itself, so the registry never keeps an abandoned
// entry alive.
type Registry struct {
	logger   *zap.Logger
	stats    stats.Collector
	opener   RemoteOpener
	grace    time.Duration
	defaults []Option

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*Entry
	shared  remote.Store
	closed  bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger passed to opened entries.
func WithRegistryLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithRegistryStats sets the stats collector passed to opened entries.
func WithRegistryStats(c stats.Collector) RegistryOption {
	return func(r *Registry) {
		r.stats = c
	}
}

// WithRemoteOpener enables the remote tier: the opener is invoked once,
// lazily, and the resulting store is shared by all opened entries.
func WithRemoteOpener(fn RemoteOpener) RegistryOption {
	return func(r *Registry) {
		r.opener = fn
	}
}

// WithShutdownGrace bounds how long Shutdown waits for pending remote
// writes per entry. Default is 30 seconds.
func WithShutdownGrace(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.grace = d
	}
}

// WithEntryDefaults sets options applied to every opened entry, before
// the per-call options.
func WithEntryDefaults(opts ...Option) RegistryOption {
	return func(r *Registry) {
		r.defaults = append(r.defaults, opts...)
	}
}

// NewRegistry creates a registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger:  zap.NewNop(),
		stats:   stats.NewNoop(),
		grace:   DefaultGracePeriod,
		entries: make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open returns the live entry for the composite key, creating it if
// none exists. A created entry inherits the registry's logger, stats
// collector and shared remote store.
func (r *Registry) Open(ctx context.Context, opts ...Option) (*Entry, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	r.mu.Unlock()

	all := make([]Option, 0, len(r.defaults)+len(opts)+4)
	all = append(all,
		WithLogger(r.logger),
		WithStats(r.stats),
		WithGracePeriod(r.grace),
	)
	all = append(all, r.defaults...)
	all = append(all, opts...)

	cfg := defaultOptions()
	for _, opt := range all {
		opt.apply(&cfg)
	}
	if cfg.dataID == "" {
		return nil, ErrNoDataID
	}
	key := keys.Key{DataID: cfg.dataID, Directory: cfg.directory}

	r.mu.Lock()
	if e, ok := r.entries[key.String()]; ok {
		r.mu.Unlock()
		return e, nil
	}
	r.mu.Unlock()

	if r.opener != nil && cfg.remote == nil && !cfg.remoteDisabled {
		store, err := r.sharedRemote(ctx)
		if err != nil {
			// Degrade to local-only rather than failing the open.
			r.logger.Warn("remote tier unavailable, continuing local-only",
				zap.Error(err),
			)
			r.stats.IncCounter(stats.MetricRemoteErrors, 1)
		} else {
			all = append(all, WithRemote(store))
		}
	}

	e, err := New(all...)
	if err != nil {
		return nil, err
	}
	e.registry = r

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	if existing, ok := r.entries[key.String()]; ok {
		// Lost a race with a concurrent open for the same key.
		e.registry = nil
		go e.Close(context.Background())
		return existing, nil
	}
	r.entries[key.String()] = e
	return e, nil
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Shutdown closes every live entry, draining pending remote writes
// within the grace period, then closes the shared remote session.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	r.closed = true
	live := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		live = append(live, e)
	}
	shared := r.shared
	r.mu.Unlock()

	var errs []error
	for _, e := range live {
		if err := e.Close(ctx); err != nil && !errors.Is(err, ErrClosed) {
			r.logger.Warn("entry close failed during shutdown",
				zap.String("key", e.key.String()),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}

	if shared != nil {
		if err := shared.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sharedRemote returns the shared remote store, creating it on first
// call. Concurrent first calls collapse into a single opener invocation.
func (r *Registry) sharedRemote(ctx context.Context) (remote.Store, error) {
	r.mu.Lock()
	if r.shared != nil {
		s := r.shared
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do("remote", func() (any, error) {
		store, err := r.opener(ctx)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.shared = store
		r.mu.Unlock()
		return store, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(remote.Store), nil
}

// release removes a closed entry from the registry.
func (r *Registry) release(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.entries[e.key.String()]; ok && current == e {
		delete(r.entries, e.key.String())
	}
}
