// Package noopcodec provides a pass-through payload codec.
package noopcodec

import (
	"github.com/packrat-io/packrat/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec performs no compression.
type Codec struct{}

// New returns a new no-op codec.
func New() *Codec {
	return &Codec{}
}

// Encode returns the payload unchanged.
func (c *Codec) Encode(data []byte) ([]byte, error) {
	return data, nil
}

// Decode returns the payload unchanged.
func (c *Codec) Decode(data []byte) ([]byte, error) {
	return data, nil
}

// Name returns an empty string, meaning no compression.
func (c *Codec) Name() string {
	return ""
}
