// Package codec provides compression for remote record payloads.
package codec

// Codec compresses and decompresses record payloads. Remote key-value
// stores hold payloads as opaque blobs, so the interface works on byte
// slices rather than streams.
type Codec interface {
	// Encode compresses the payload.
	Encode(data []byte) ([]byte, error)
	// Decode decompresses a payload produced by Encode.
	Decode(data []byte) ([]byte, error)
	// Name identifies the codec (e.g. "gzip", "zstd"). Stored alongside
	// the payload so readers can pick the matching decoder. Empty means
	// no compression.
	Name() string
}
