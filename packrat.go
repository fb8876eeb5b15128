// Package packrat provides two-tier persistent caching of keyed entry
// state: a durable local JSON file per entry (L1) optionally backed by
// a shared remote key-value store (L2) for cross-process reuse.
//
// Reads check L1 first and fall back to L2, backfilling L1 on a remote
// hit. Saves write L1 synchronously, deduplicate unchanged state, and
// schedule an asynchronous remote write whenever the remote tier is
// enabled. Remote failures never surface to callers; the local tier
// stays authoritative.
//
// Example usage:
//
//	entry, err := packrat.New(
//	    packrat.WithDataID("user:42"),
//	    packrat.WithDirectory("cache"),
//	    packrat.WithTTLDays(7),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer entry.Close(ctx)
//
//	entry.Set(ctx, "name", "Ana")
//	if err := entry.Save(ctx); err != nil {
//	    log.Fatal(err)
//	}
package packrat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/packrat-io/packrat/internal/keys"
	"github.com/packrat-io/packrat/internal/local"
	"github.com/packrat-io/packrat/internal/queue"
	"github.com/packrat-io/packrat/internal/remote"
	"github.com/packrat-io/packrat/internal/stats"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrNoDataID indicates no data ID was provided.
	ErrNoDataID = errors.New("packrat: data ID required")

	// ErrClosed indicates the entry has been closed.
	ErrClosed = errors.New("packrat: entry closed")
)

// Stats describes the current state of an entry.
type Stats struct {
	// Fields is the number of cached fields.
	Fields int

	// Results is the number of memoized function results.
	Results int

	// Functions counts memoized results per function name.
	Functions map[string]int

	// SizeBytes is the size of the last persisted snapshot.
	SizeBytes int64

	// CreatedAt is when the entry was first persisted.
	CreatedAt time.Time

	// UpdatedAt is when the entry was last mutated.
	UpdatedAt time.Time

	// TTLRemaining is the time until expiry, zero when the entry does
	// not expire.
	TTLRemaining time.Duration
}

// Entry is the cache coordinator for one composite key. It owns the
// entry's in-memory fields, decides the L1/L2 read order, performs
// write-through saves and tracks pending asynchronous remote writes.
//
// An Entry is not safe for concurrent mutation: the design assumes a
// single writer per key per process. Remote synchronization runs on a
// background queue and never blocks field access.
type Entry struct {
	key      keys.Key
	ttlDays  *float64
	excluded map[string]struct{}

	localStore  *local.Store
	remoteStore remote.Store
	q           *queue.Queue
	logger      *zap.Logger
	stats       stats.Collector
	registry    *Registry
	grace       time.Duration

	now func() time.Time

	hydrated     bool
	dirty        bool
	fields       map[string]any
	results      map[string]local.Result
	createdAt    time.Time
	updatedAt    time.Time
	lastSnapshot []byte
	lastStatus   string

	closed atomic.Bool
}

// New creates a standalone entry with the given options. Entries that
// should share a remote session belong behind a Registry instead.
func New(opts ...Option) (*Entry, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	if cfg.dataID == "" {
		return nil, ErrNoDataID
	}
	if cfg.remoteDisabled {
		cfg.remote = nil
	}

	e := &Entry{
		key:         keys.Key{DataID: cfg.dataID, Directory: cfg.directory},
		ttlDays:     cfg.ttlDays,
		excluded:    make(map[string]struct{}, len(cfg.excluded)),
		localStore:  local.New(),
		remoteStore: cfg.remote,
		logger:      cfg.logger,
		stats:       cfg.stats,
		grace:       cfg.grace,
		now:         cfg.now,
		fields:      make(map[string]any),
		results:     make(map[string]local.Result),
	}
	for _, name := range cfg.excluded {
		e.excluded[name] = struct{}{}
	}
	if e.remoteStore != nil {
		e.q = queue.New(cfg.queueBuffer, e.logger.Named("sync"))
	}
	if cfg.clearCache {
		// Start fresh; whatever is persisted gets overwritten on save.
		e.hydrated = true
	}

	e.logger.Debug("entry initialized",
		zap.String("key", e.key.String()),
		zap.Bool("remote", e.remoteStore != nil),
	)
	return e, nil
}

// DataID returns the entry's data ID.
func (e *Entry) DataID() string {
	return e.key.DataID
}

// Directory returns the entry's cache directory.
func (e *Entry) Directory() string {
	return e.key.Directory
}

// RemoteEnabled reports whether the entry has a remote tier.
func (e *Entry) RemoteEnabled() bool {
	return e.remoteStore != nil
}

// Get returns the cached field value. The first access hydrates the
// entry from the local tier, falling back to the remote tier.
func (e *Entry) Get(ctx context.Context, name string) (any, bool) {
	if e.closed.Load() {
		return nil, false
	}
	e.hydrate(ctx)
	v, ok := e.fields[name]
	return v, ok
}

// GetString returns a string field. Reports false when the field is
// absent or not a string.
func (e *Entry) GetString(ctx context.Context, name string) (string, bool) {
	v, ok := e.Get(ctx, name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetFloat64 returns a numeric field. Values reloaded from disk are
// JSON numbers and arrive as float64; in-memory integer values are
// converted.
func (e *Entry) GetFloat64(ctx context.Context, name string) (float64, bool) {
	v, ok := e.Get(ctx, name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// GetInt returns an integer field. Reloaded JSON numbers are accepted
// when they carry no fractional part.
func (e *Entry) GetInt(ctx context.Context, name string) (int, bool) {
	v, ok := e.Get(ctx, name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

// GetBool returns a boolean field. Reports false when the field is
// absent or not a bool.
func (e *Entry) GetBool(ctx context.Context, name string) (bool, bool) {
	v, ok := e.Get(ctx, name)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Set assigns a field value in memory and marks the entry dirty. The
// change reaches disk (and the remote tier) on the next Save.
func (e *Entry) Set(ctx context.Context, name string, value any) error {
	if e.closed.Load() {
		return ErrClosed
	}
	e.hydrate(ctx)
	e.fields[name] = value
	e.touch()
	return nil
}

// Save persists the entry: the current snapshot is written to the
// local tier and, when a remote tier is enabled, the same snapshot is
// scheduled for an asynchronous remote write. Saving unchanged state
// is a no-op. Only local write failures are returned; remote failures
// are logged and absorbed.
func (e *Entry) Save(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.save(ctx)
}

func (e *Entry) save(ctx context.Context) error {
	e.hydrate(ctx)
	if e.createdAt.IsZero() {
		e.createdAt = e.now()
	}
	if e.updatedAt.IsZero() {
		e.updatedAt = e.createdAt
	}

	doc := e.document()
	snapshot, err := local.Encode(doc)
	if err != nil {
		e.logger.Error("encoding entry failed",
			zap.String("key", e.key.String()),
			zap.Error(err),
		)
		return fmt.Errorf("encoding entry: %w", err)
	}

	if local.Equal(snapshot, e.lastSnapshot) {
		e.stats.IncCounter(stats.MetricSaveSkips, 1)
		return nil
	}

	if err := e.localStore.Save(e.key, snapshot); err != nil {
		e.logger.Error("local save failed",
			zap.String("key", e.key.String()),
			zap.Error(err),
		)
		return fmt.Errorf("saving entry: %w", err)
	}
	e.lastSnapshot = snapshot
	e.dirty = false
	e.stats.IncCounter(stats.MetricSaves, 1)
	e.stats.SetGauge(stats.MetricEntrySize, int64(len(snapshot)))

	// Write-through: a successful local save always schedules the
	// matching remote write. L1 and L2 never silently diverge.
	e.scheduleRemotePut(doc, snapshot)
	return nil
}

// Clear removes the entry from the local tier, resets the in-memory
// state and, when a remote tier is enabled, deletes the remote record.
// Unlike Save's fire-and-forget write, the remote delete is awaited:
// callers expect Clear to be authoritative.
func (e *Entry) Clear(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}

	if err := e.localStore.Delete(e.key); err != nil {
		e.logger.Error("clearing local entry failed",
			zap.String("key", e.key.String()),
			zap.Error(err),
		)
		return fmt.Errorf("clearing entry: %w", err)
	}

	e.fields = make(map[string]any)
	e.results = make(map[string]local.Result)
	e.createdAt = time.Time{}
	e.updatedAt = time.Time{}
	e.lastSnapshot = nil
	e.dirty = false
	e.hydrated = false
	e.stats.IncCounter(stats.MetricClears, 1)

	if e.remoteStore != nil {
		id := e.key.RemoteID()
		err := e.q.Submit("remote delete "+id, func(ctx context.Context) error {
			if err := e.remoteStore.EnsureReady(ctx); err != nil {
				e.stats.IncCounter(stats.MetricRemoteErrors, 1)
				return err
			}
			if err := e.remoteStore.Delete(ctx, id); err != nil {
				e.stats.IncCounter(stats.MetricRemoteErrors, 1)
				return err
			}
			return nil
		})
		if err != nil {
			e.logger.Warn("could not schedule remote delete", zap.Error(err))
			return nil
		}
		// Queued behind any in-flight writes so a pending put cannot
		// resurrect the record, then awaited.
		if err := e.q.Flush(ctx); err != nil {
			e.logger.Warn("timed out awaiting remote delete",
				zap.String("key", e.key.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// ClearResults drops memoized results for the named function, or all
// results when name is empty. The entry is marked dirty; the change
// persists on the next Save.
func (e *Entry) ClearResults(ctx context.Context, name string) error {
	if e.closed.Load() {
		return ErrClosed
	}
	e.hydrate(ctx)
	if name == "" {
		e.results = make(map[string]local.Result)
	} else {
		for sig := range e.results {
			if strings.HasPrefix(sig, name+"(") {
				delete(e.results, sig)
			}
		}
	}
	e.touch()
	return nil
}

// Stats returns statistics about the entry's current state.
func (e *Entry) Stats(ctx context.Context) Stats {
	if e.closed.Load() {
		return Stats{}
	}
	e.hydrate(ctx)

	functions := make(map[string]int)
	for sig := range e.results {
		name := sig
		if i := strings.IndexByte(sig, '('); i >= 0 {
			name = sig[:i]
		}
		functions[name]++
	}

	s := Stats{
		Fields:    len(e.fields),
		Results:   len(e.results),
		Functions: functions,
		SizeBytes: int64(len(e.lastSnapshot)),
		CreatedAt: e.createdAt,
		UpdatedAt: e.updatedAt,
	}
	if e.ttlDays != nil && !e.updatedAt.IsZero() {
		deadline := e.updatedAt.Add(ttlDuration(*e.ttlDays))
		if remaining := deadline.Sub(e.now()); remaining > 0 {
			s.TTLRemaining = remaining
		}
	}
	return s
}

// LastStatus reports whether the most recent memoized call was a "hit"
// or a "miss". Empty before any memoized call.
func (e *Entry) LastStatus() string {
	return e.lastStatus
}

// Flush blocks until every scheduled remote write has completed, or
// until ctx is done. It is a no-op for local-only entries.
func (e *Entry) Flush(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if e.q == nil {
		return nil
	}
	return e.q.Flush(ctx)
}

// Keys lists record IDs present in the remote tier, for inspection.
func (e *Entry) Keys(ctx context.Context, limit int, startAfter string) ([]string, string, error) {
	if e.closed.Load() {
		return nil, "", ErrClosed
	}
	if e.remoteStore == nil {
		return nil, "", nil
	}
	if err := e.remoteStore.EnsureReady(ctx); err != nil {
		e.stats.IncCounter(stats.MetricRemoteErrors, 1)
		return nil, "", nil
	}
	ids, cursor, err := e.remoteStore.Keys(ctx, limit, startAfter)
	if err != nil {
		e.logger.Warn("remote key listing failed", zap.Error(err))
		e.stats.IncCounter(stats.MetricRemoteErrors, 1)
		return nil, "", nil
	}
	return ids, cursor, nil
}

// Close persists dirty state, drains pending remote writes bounded by
// the grace period, and deregisters the entry. After Close, the entry
// should not be used.
func (e *Entry) Close(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}

	if e.hydrated && e.dirty {
		if err := e.save(ctx); err != nil {
			e.logger.Warn("save on close failed",
				zap.String("key", e.key.String()),
				zap.Error(err),
			)
		}
	}

	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	var err error
	if e.q != nil {
		qctx := ctx
		if e.grace > 0 {
			var cancel context.CancelFunc
			qctx, cancel = context.WithTimeout(ctx, e.grace)
			defer cancel()
		}
		if cerr := e.q.Close(qctx); cerr != nil && !errors.Is(cerr, queue.ErrClosed) {
			err = cerr
		}
	}

	if e.registry != nil {
		e.registry.release(e)
	}
	return err
}

// hydrate loads the entry on first access: local tier first, remote
// fallback with local backfill, else a fresh empty entry. Read-side
// failures degrade to a miss and never propagate.
func (e *Entry) hydrate(ctx context.Context) {
	if e.hydrated {
		return
	}
	e.hydrated = true
	e.stats.IncCounter(stats.MetricHydrations, 1)
	now := e.now()

	doc, raw, err := e.localStore.Load(e.key)
	switch {
	case err == nil:
		if !e.expired(doc, now) {
			e.adopt(doc, raw)
			e.stats.IncCounter(stats.MetricLocalHits, 1)
			return
		}
		e.logger.Debug("local entry expired",
			zap.String("key", e.key.String()),
		)
	case errors.Is(err, local.ErrNotFound):
	case errors.Is(err, local.ErrCorrupt):
		e.logger.Warn("discarding corrupt local entry",
			zap.String("key", e.key.String()),
			zap.Error(err),
		)
	default:
		e.logger.Warn("local read failed, treating as miss",
			zap.String("key", e.key.String()),
			zap.Error(err),
		)
	}

	if e.remoteStore != nil && e.hydrateFromRemote(ctx, now) {
		e.stats.IncCounter(stats.MetricRemoteHits, 1)
		return
	}
	e.stats.IncCounter(stats.MetricMisses, 1)
}

// hydrateFromRemote attempts to adopt the remote record and backfill
// the local tier. Returns false on any miss or failure.
func (e *Entry) hydrateFromRemote(ctx context.Context, now time.Time) bool {
	id := e.key.RemoteID()

	if err := e.remoteStore.EnsureReady(ctx); err != nil {
		e.logger.Warn("remote tier unavailable",
			zap.String("key", e.key.String()),
			zap.Error(err),
		)
		e.stats.IncCounter(stats.MetricRemoteErrors, 1)
		return false
	}

	rec, err := e.remoteStore.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, remote.ErrNotFound) {
			e.logger.Warn("remote read failed",
				zap.String("key", e.key.String()),
				zap.Error(err),
			)
			e.stats.IncCounter(stats.MetricRemoteErrors, 1)
		}
		return false
	}
	// Expiry is checked against the record's own remote-native
	// timestamp, independent of the local TTL representation.
	if rec.Expired(now) {
		return false
	}

	doc, err := local.Decode(rec.Payload)
	if err != nil {
		e.logger.Warn("discarding corrupt remote payload",
			zap.String("key", e.key.String()),
			zap.Error(err),
		)
		return false
	}

	e.adopt(doc, rec.Payload)

	// Backfill L1. The adopted snapshot matches L2, so the next save
	// deduplicates instead of re-sending it.
	if err := e.localStore.Save(e.key, rec.Payload); err != nil {
		e.logger.Warn("local backfill failed",
			zap.String("key", e.key.String()),
			zap.Error(err),
		)
	}
	return true
}

// adopt installs a loaded document as the entry's state.
func (e *Entry) adopt(doc *local.Document, raw []byte) {
	e.fields = doc.Fields
	if e.fields == nil {
		e.fields = make(map[string]any)
	}
	e.results = doc.Results
	if e.results == nil {
		e.results = make(map[string]local.Result)
	}
	e.createdAt = doc.CreatedAt
	e.updatedAt = doc.UpdatedAt
	e.lastSnapshot = raw
	e.dirty = false
}

// expired checks document freshness against the entry's configured TTL,
// falling back to the TTL persisted in the document.
func (e *Entry) expired(doc *local.Document, now time.Time) bool {
	ttl := e.ttlDays
	if ttl == nil {
		ttl = doc.TTLDays
	}
	if ttl == nil {
		return false
	}
	return now.Sub(doc.UpdatedAt) > ttlDuration(*ttl)
}

// document builds the serializable snapshot of the entry, dropping
// excluded fields.
func (e *Entry) document() *local.Document {
	fields := make(map[string]any, len(e.fields))
	for name, value := range e.fields {
		if _, skip := e.excluded[name]; skip {
			continue
		}
		fields[name] = value
	}

	doc := &local.Document{
		Fields:    fields,
		CreatedAt: e.createdAt,
		UpdatedAt: e.updatedAt,
		TTLDays:   e.ttlDays,
	}
	if len(e.results) > 0 {
		doc.Results = make(map[string]local.Result, len(e.results))
		for sig, res := range e.results {
			doc.Results[sig] = res
		}
	}
	return doc
}

// scheduleRemotePut enqueues the asynchronous remote write for a saved
// snapshot. Per-entry queuing keeps writes in save order.
func (e *Entry) scheduleRemotePut(doc *local.Document, snapshot []byte) {
	if e.remoteStore == nil {
		return
	}

	rec := &remote.Record{
		ID:        e.key.RemoteID(),
		Payload:   snapshot,
		UpdatedAt: doc.UpdatedAt,
	}
	if doc.TTLDays != nil {
		rec.ExpiresAt = doc.UpdatedAt.Add(ttlDuration(*doc.TTLDays)).Unix()
	}

	err := e.q.Submit("remote put "+rec.ID, func(ctx context.Context) error {
		start := time.Now()
		if err := e.remoteStore.EnsureReady(ctx); err != nil {
			e.stats.IncCounter(stats.MetricRemoteErrors, 1)
			return err
		}
		if err := e.remoteStore.Put(ctx, rec); err != nil {
			e.stats.IncCounter(stats.MetricRemoteErrors, 1)
			return err
		}
		e.stats.IncCounter(stats.MetricRemoteWrites, 1)
		e.stats.ObserveHistogram(stats.MetricRemoteWriteSecs, time.Since(start).Seconds())
		return nil
	})
	if err != nil {
		e.logger.Warn("could not schedule remote write",
			zap.String("key", e.key.String()),
			zap.Error(err),
		)
	}
}

// touch marks the entry dirty and bumps its mutation time.
func (e *Entry) touch() {
	e.dirty = true
	e.updatedAt = e.now()
}

// ttlDuration converts a TTL in days to a duration.
func ttlDuration(days float64) time.Duration {
	return time.Duration(days * float64(24*time.Hour))
}
