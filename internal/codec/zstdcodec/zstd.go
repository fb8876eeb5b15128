// Package zstdcodec provides a zstd payload codec.
package zstdcodec

import (
	"github.com/klauspost/compress/zstd"

	"github.com/packrat-io/packrat/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec implements zstd compression.
type Codec struct{}

// New returns a new zstd codec.
func New() *Codec {
	return &Codec{}
}

// Encode compresses the payload with zstd.
func (c *Codec) Encode(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// Decode decompresses a zstd payload.
func (c *Codec) Decode(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// Name returns "zstd".
func (c *Codec) Name() string {
	return "zstd"
}
