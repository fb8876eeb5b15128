package gzipcodec

import (
	"bytes"
	"strings"
	"testing"
)

func TestCodec_RoundTrip(t *testing.T) {
	c := New()
	payload := []byte(strings.Repeat(`{"name":"Ana","visits":42}`, 1000))

	encoded, err := c.Encode(payload)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(encoded) >= len(payload) {
		t.Errorf("Encode() did not shrink repetitive payload: %d -> %d", len(payload), len(encoded))
	}

	decoded, err := c.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Error("Decode() did not restore original payload")
	}
}

func TestCodec_DecodeGarbage(t *testing.T) {
	c := New()
	if _, err := c.Decode([]byte("not gzip data")); err == nil {
		t.Error("Decode() on garbage succeeded, want error")
	}
}

func TestCodec_Name(t *testing.T) {
	if got := New().Name(); got != "gzip" {
		t.Errorf("Name() = %q, want %q", got, "gzip")
	}
}
