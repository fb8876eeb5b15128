// Package local implements the durable on-disk tier: one JSON document
// per cache entry.
package local

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/packrat-io/packrat/internal/keys"
)

// Sentinel errors for well-defined read outcomes.
var (
	// ErrNotFound is returned when no document exists for the key.
	ErrNotFound = errors.New("local: entry not found")

	// ErrCorrupt is returned when bytes exist but do not decode as a
	// document. Callers treat this as a miss, with a logged warning.
	ErrCorrupt = errors.New("local: corrupt entry data")
)

// Result is one memoized function result with its computation time,
// used to judge per-result freshness.
type Result struct {
	Value any       `json:"value"`
	Date  time.Time `json:"date"`
}

// Document is the serialized form of one cache entry. It is stored as
// indented JSON so cache files stay human-inspectable.
type Document struct {
	Fields    map[string]any    `json:"fields"`
	Results   map[string]Result `json:"results,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	TTLDays   *float64          `json:"ttl_days,omitempty"`
}

// Expired reports whether the document's age exceeds its TTL at the
// given instant. A nil TTL never expires.
func (d *Document) Expired(now time.Time) bool {
	if d.TTLDays == nil {
		return false
	}
	ttl := time.Duration(*d.TTLDays * float64(24*time.Hour))
	return now.Sub(d.UpdatedAt) > ttl
}

// Encode serializes the document to its canonical on-disk form.
// encoding/json writes map keys in sorted order, so identical documents
// always produce identical bytes; save deduplication relies on this.
func Encode(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses canonical document bytes.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if doc.Fields == nil {
		doc.Fields = make(map[string]any)
	}
	return &doc, nil
}

// Store reads and writes entry documents on the local filesystem.
// One live entry per key per process is assumed, so writes need no
// locking beyond the temp-file-and-rename done here.
type Store struct{}

// New creates a local store.
func New() *Store {
	return &Store{}
}

// Load reads the document for the key. Returns ErrNotFound if absent
// and ErrCorrupt (wrapped) if the bytes do not decode. The raw canonical
// bytes are returned alongside the document for snapshot tracking.
func (s *Store) Load(key keys.Key) (*Document, []byte, error) {
	data, err := os.ReadFile(key.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("reading entry file: %w", err)
	}

	doc, err := Decode(data)
	if err != nil {
		return nil, nil, err
	}
	return doc, data, nil
}

// Save writes canonical document bytes for the key. The containing
// directory is created if absent; concurrent creation is not an error.
// The write goes to a temporary file in the same directory followed by
// a rename, so a concurrent reader never observes a partial file.
func (s *Store) Save(key keys.Key, data []byte) error {
	dir := key.Directory
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, key.FileName()+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing entry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing entry file: %w", err)
	}
	if err := os.Rename(tmpName, key.Path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming entry file: %w", err)
	}
	return nil
}

// Delete removes the document for the key. Deleting an absent entry is
// a no-op.
func (s *Store) Delete(key keys.Key) error {
	if err := os.Remove(key.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting entry file: %w", err)
	}
	return nil
}

// Size returns the on-disk size in bytes of the entry, or 0 if absent.
func (s *Store) Size(key keys.Key) int64 {
	info, err := os.Stat(key.Path())
	if err != nil {
		return 0
	}
	return info.Size()
}

// Equal reports whether two canonical encodings are byte-identical.
func Equal(a, b []byte) bool {
	return bytes.Equal(a, b)
}

// List returns the entry files present under a cache directory, for
// inspection tooling.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading cache directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
