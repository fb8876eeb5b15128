// Package remote defines the shared remote tier (L2) interface.
//
// Every implementation may be slow or unavailable; callers absorb all
// failures at this boundary and fall back to the local tier. Nothing in
// this package ever blocks a local write from succeeding.
package remote

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for the key.
var ErrNotFound = errors.New("remote: record not found")

// Record is the remote-store form of one cache entry.
type Record struct {
	// ID is the derived primary key (see keys.Key.RemoteID).
	ID string

	// Payload is the canonical entry document, uncompressed. Backends
	// compress internally where it pays off.
	Payload []byte

	// UpdatedAt is the entry's last mutation time.
	UpdatedAt time.Time

	// ExpiresAt is the absolute expiry as epoch seconds, usable for
	// server-side deletion. Zero means no expiry.
	ExpiresAt int64
}

// Expired reports whether the record's remote-native expiry has passed.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt != 0 && now.Unix() > r.ExpiresAt
}

// Store is a shared remote key-value backend.
//
// All operations take a context and may suspend on network I/O. Reads
// are eventually consistent; callers tolerate staleness up to the
// backend's propagation window.
type Store interface {
	// EnsureReady verifies the backing table or namespace exists,
	// creating it if needed. Idempotent and safe to call repeatedly;
	// implementations cache the ensured state process-wide.
	EnsureReady(ctx context.Context) error

	// Get fetches the record for the ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*Record, error)

	// Put upserts the record, including its expiry attribute.
	Put(ctx context.Context, rec *Record) error

	// Delete removes the record. Deleting an absent record is a no-op.
	Delete(ctx context.Context, id string) error

	// Keys lists record IDs, up to limit per page. startAfter is the
	// last ID of the previous page; the returned cursor is empty on the
	// final page.
	Keys(ctx context.Context, limit int, startAfter string) (ids []string, cursor string, err error)

	// Close releases the backend's resources.
	Close() error
}
