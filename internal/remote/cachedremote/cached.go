// Package cachedremote wraps a remote store with an in-process LRU of
// recently read records.
//
// This trades freshness for cost: a cached Get can be staler than the
// remote tier's own propagation window. Use it for read-heavy workloads
// where entries change rarely.
package cachedremote

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/packrat-io/packrat/internal/remote"
)

// Compile-time check that Store implements remote.Store.
var _ remote.Store = (*Store)(nil)

// Store wraps another remote.Store with read caching.
type Store struct {
	underlying remote.Store
	cache      *lru.Cache[string, *remote.Record]

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats contains read-cache statistics.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int
}

// New creates a cached store holding up to capacity records.
func New(underlying remote.Store, capacity int) (*Store, error) {
	c, err := lru.New[string, *remote.Record](capacity)
	if err != nil {
		return nil, err
	}
	return &Store{
		underlying: underlying,
		cache:      c,
	}, nil
}

// EnsureReady delegates to the underlying store.
func (s *Store) EnsureReady(ctx context.Context) error {
	return s.underlying.EnsureReady(ctx)
}

// Get returns a cached record when available, reading through on miss.
func (s *Store) Get(ctx context.Context, id string) (*remote.Record, error) {
	if rec, ok := s.cache.Get(id); ok {
		s.hits.Add(1)
		return rec, nil
	}
	s.misses.Add(1)

	rec, err := s.underlying.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Add(id, rec)
	return rec, nil
}

// Put writes through and refreshes the cached record.
func (s *Store) Put(ctx context.Context, rec *remote.Record) error {
	if err := s.underlying.Put(ctx, rec); err != nil {
		return err
	}
	s.cache.Add(rec.ID, rec)
	return nil
}

// Delete removes the record and its cached copy.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.cache.Remove(id)
	return s.underlying.Delete(ctx, id)
}

// Keys delegates to the underlying store.
func (s *Store) Keys(ctx context.Context, limit int, startAfter string) ([]string, string, error) {
	return s.underlying.Keys(ctx, limit, startAfter)
}

// Close closes the underlying store.
func (s *Store) Close() error {
	return s.underlying.Close()
}

// Stats returns read-cache statistics.
func (s *Store) Stats() Stats {
	return Stats{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
		Size:   s.cache.Len(),
	}
}
