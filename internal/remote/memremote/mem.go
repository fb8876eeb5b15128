// Package memremote implements an in-memory remote store for tests.
package memremote

import (
	"context"
	"sort"
	"sync"

	"github.com/packrat-io/packrat/internal/remote"
)

// Compile-time check that Store implements remote.Store.
var _ remote.Store = (*Store)(nil)

// Store is an in-memory remote.Store. It is safe for concurrent use.
// A forced failure mode simulates an unavailable remote tier.
type Store struct {
	mu      sync.Mutex
	records map[string]remote.Record
	failure error

	ensureCalls int
	getCalls    int
	putCalls    int
	deleteCalls int
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{records: make(map[string]remote.Record)}
}

// FailWith makes every subsequent operation return err. Pass nil to
// restore normal behavior.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// EnsureReady records the call and honors the failure mode.
func (s *Store) EnsureReady(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureCalls++
	return s.failure
}

// Get returns a copy of the stored record.
func (s *Store) Get(ctx context.Context, id string) (*remote.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.failure != nil {
		return nil, s.failure
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, remote.ErrNotFound
	}
	cp := rec
	cp.Payload = append([]byte(nil), rec.Payload...)
	return &cp, nil
}

// Put stores a copy of the record.
func (s *Store) Put(ctx context.Context, rec *remote.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putCalls++
	if s.failure != nil {
		return s.failure
	}
	cp := *rec
	cp.Payload = append([]byte(nil), rec.Payload...)
	s.records[rec.ID] = cp
	return nil
}

// Delete removes the record if present.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	if s.failure != nil {
		return s.failure
	}
	delete(s.records, id)
	return nil
}

// Keys lists stored IDs in sorted order with cursor pagination.
func (s *Store) Keys(ctx context.Context, limit int, startAfter string) ([]string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, "", s.failure
	}

	all := make([]string, 0, len(s.records))
	for id := range s.records {
		if id > startAfter {
			all = append(all, id)
		}
	}
	sort.Strings(all)

	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	page := all[:limit]
	cursor := ""
	if limit < len(all) {
		cursor = page[len(page)-1]
	}
	return page, cursor, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// PutCalls returns how many Put calls were made, including failed ones.
func (s *Store) PutCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putCalls
}

// GetCalls returns how many Get calls were made, including failed ones.
func (s *Store) GetCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls
}

// DeleteCalls returns how many Delete calls were made.
func (s *Store) DeleteCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteCalls
}

// EnsureCalls returns how many EnsureReady calls were made.
func (s *Store) EnsureCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureCalls
}
