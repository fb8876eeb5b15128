// Package keys defines the composite cache key and its filesystem-safe
// and remote-store representations.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"

	"github.com/gosimple/slug"
)

const (
	// maxIDLength is the longest DataID used verbatim in a filename.
	maxIDLength = 180

	// truncateAt is where over-long DataIDs are cut before the hash suffix.
	truncateAt = 140
)

// Key identifies one cache entry: a data ID scoped to a storage directory.
type Key struct {
	DataID    string
	Directory string
}

// String returns a human-readable form of the key.
func (k Key) String() string {
	return k.Directory + "/" + k.DataID
}

// FileName returns the filesystem-safe file name for the entry, without
// directory. Over-long IDs are truncated and suffixed with a SHA-256 hex
// digest of the full ID so distinct IDs never collide.
func (k Key) FileName() string {
	id := k.DataID
	if len(id) >= maxIDLength {
		sum := sha256.Sum256([]byte(id))
		id = id[:truncateAt] + "-" + hex.EncodeToString(sum[:])
	}
	return slug.Make(id) + ".json"
}

// Path returns the full local path of the entry file.
func (k Key) Path() string {
	return filepath.Join(k.Directory, k.FileName())
}

// RemoteID returns the primary key used in the remote store. It combines
// both parts of the composite key so entries with the same DataID in
// different directories stay distinct.
func (k Key) RemoteID() string {
	if k.Directory == "" {
		return k.DataID
	}
	return k.Directory + "/" + k.DataID
}
