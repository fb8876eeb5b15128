// Package gcsremote implements a Google Cloud Storage remote store.
//
// One object per cache entry. GCS has no per-object TTL comparable to a
// key-value store's expiry attribute, so the expiry is carried in object
// metadata and enforced client-side; a bucket lifecycle rule can handle
// bulk cleanup.
package gcsremote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/packrat-io/packrat/internal/codec"
	"github.com/packrat-io/packrat/internal/codec/noopcodec"
	"github.com/packrat-io/packrat/internal/remote"
)

// Object metadata keys.
const (
	metaUpdatedAt = "packrat-updated-at"
	metaExpiresAt = "packrat-expires-at"
	metaCodec     = "packrat-codec"
)

// Compile-time check that Store implements remote.Store.
var _ remote.Store = (*Store)(nil)

// Store is a GCS-backed remote store.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
	codec  codec.Codec
}

// New creates a GCS store. The bucket must already exist; EnsureReady
// verifies it is reachable.
func New(ctx context.Context, bucketName string, opts ...Option) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}

	s := &Store{
		client: client,
		bucket: client.Bucket(bucketName),
		codec:  noopcodec.New(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets a key prefix for all operations.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = strings.TrimSuffix(prefix, "/")
		if s.prefix != "" {
			s.prefix += "/"
		}
	}
}

// WithCodec sets the payload codec.
func WithCodec(c codec.Codec) Option {
	return func(s *Store) {
		s.codec = c
	}
}

// EnsureReady verifies the bucket is reachable.
func (s *Store) EnsureReady(ctx context.Context) error {
	if _, err := s.bucket.Attrs(ctx); err != nil {
		return fmt.Errorf("checking bucket: %w", err)
	}
	return nil
}

// Get fetches a record.
func (s *Store) Get(ctx context.Context, id string) (*remote.Record, error) {
	obj := s.bucket.Object(s.objectName(id))

	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, remote.ErrNotFound
		}
		return nil, fmt.Errorf("reading object attrs: %w", err)
	}

	reader, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, remote.ErrNotFound
		}
		return nil, fmt.Errorf("creating reader: %w", err)
	}
	defer reader.Close()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading object: %w", err)
	}

	if attrs.Metadata[metaCodec] != "" {
		payload, err = s.codec.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("decompressing payload: %w", err)
		}
	}

	rec := &remote.Record{ID: id, Payload: payload}
	if v := attrs.Metadata[metaUpdatedAt]; v != "" {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			rec.UpdatedAt = time.Unix(sec, 0)
		}
	}
	if v := attrs.Metadata[metaExpiresAt]; v != "" {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			rec.ExpiresAt = sec
		}
	}
	return rec, nil
}

// Put upserts a record.
func (s *Store) Put(ctx context.Context, rec *remote.Record) error {
	payload, err := s.codec.Encode(rec.Payload)
	if err != nil {
		return fmt.Errorf("compressing payload: %w", err)
	}

	w := s.bucket.Object(s.objectName(rec.ID)).NewWriter(ctx)
	w.ContentType = "application/json"
	w.Metadata = map[string]string{
		metaUpdatedAt: strconv.FormatInt(rec.UpdatedAt.Unix(), 10),
		metaCodec:     s.codec.Name(),
	}
	if rec.ExpiresAt != 0 {
		w.Metadata[metaExpiresAt] = strconv.FormatInt(rec.ExpiresAt, 10)
	}

	if _, err := w.Write(payload); err != nil {
		w.Close()
		return fmt.Errorf("writing object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing object writer: %w", err)
	}
	return nil
}

// Delete removes a record. Deleting an absent record is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.bucket.Object(s.objectName(id)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("deleting object: %w", err)
	}
	return nil
}

// Keys lists record IDs under the prefix.
func (s *Store) Keys(ctx context.Context, limit int, startAfter string) ([]string, string, error) {
	query := &storage.Query{Prefix: s.prefix}
	if startAfter != "" {
		query.StartOffset = s.objectName(startAfter) + "\x00"
	}

	var ids []string
	it := s.bucket.Objects(ctx, query)
	for limit <= 0 || len(ids) < limit {
		attrs, err := it.Next()
		if err == iterator.Done {
			return ids, "", nil
		}
		if err != nil {
			return nil, "", fmt.Errorf("listing objects: %w", err)
		}
		ids = append(ids, s.idFromObject(attrs.Name))
	}

	cursor := ""
	if len(ids) > 0 {
		cursor = ids[len(ids)-1]
	}
	return ids, cursor, nil
}

// Close releases resources.
func (s *Store) Close() error {
	return s.client.Close()
}

// objectName returns the full object name for a record ID.
func (s *Store) objectName(id string) string {
	return s.prefix + id + ".json"
}

// idFromObject converts an object name back to a record ID.
func (s *Store) idFromObject(name string) string {
	name = strings.TrimPrefix(name, s.prefix)
	return strings.TrimSuffix(name, ".json")
}
