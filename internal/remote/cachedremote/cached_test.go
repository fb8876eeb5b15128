package cachedremote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/packrat-io/packrat/internal/remote"
	"github.com/packrat-io/packrat/internal/remote/memremote"
)

func TestStore_Get_CachesReads(t *testing.T) {
	mem := memremote.New()
	mem.Put(context.Background(), &remote.Record{
		ID:        "cache/user:42",
		Payload:   []byte(`{}`),
		UpdatedAt: time.Now(),
	})

	s, err := New(mem, 8)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := s.Get(context.Background(), "cache/user:42"); err != nil {
			t.Fatalf("Get() #%d error = %v", i, err)
		}
	}

	// The first wrapped Get reads through; the rest hit the cache.
	if got := mem.GetCalls(); got != 1 {
		t.Errorf("underlying Get calls = %d, want 1", got)
	}

	st := s.Stats()
	if st.Hits != 2 || st.Misses != 1 {
		t.Errorf("Stats() = %+v, want 2 hits / 1 miss", st)
	}
}

func TestStore_Get_NotFoundNotCached(t *testing.T) {
	mem := memremote.New()
	s, err := New(mem, 8)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, remote.ErrNotFound) {
			t.Fatalf("Get() error = %v, want ErrNotFound", err)
		}
	}
	if got := mem.GetCalls(); got != 2 {
		t.Errorf("underlying Get calls = %d, want 2 (misses are not cached)", got)
	}
}

func TestStore_Delete_Invalidates(t *testing.T) {
	mem := memremote.New()
	mem.Put(context.Background(), &remote.Record{ID: "id", Payload: []byte(`{}`)})

	s, err := New(mem, 8)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(context.Background(), "id"); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(context.Background(), "id"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(context.Background(), "id"); !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("Get() after Delete() error = %v, want ErrNotFound", err)
	}
}

func TestStore_Put_RefreshesCache(t *testing.T) {
	mem := memremote.New()
	s, err := New(mem, 8)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Put(context.Background(), &remote.Record{ID: "id", Payload: []byte(`1`)}); err != nil {
		t.Fatal(err)
	}
	rec, err := s.Get(context.Background(), "id")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(rec.Payload) != `1` {
		t.Errorf("Payload = %q, want %q", rec.Payload, `1`)
	}
	if got := mem.GetCalls(); got != 0 {
		t.Errorf("underlying Get calls = %d, want 0 (served from write-through cache)", got)
	}
}
