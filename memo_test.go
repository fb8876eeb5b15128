package packrat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCachedFunc_ComputesOnce(t *testing.T) {
	ctx := context.Background()

	e, err := New(WithDataID("memo"), WithDirectory(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(ctx)

	calls := 0
	expensive := func(ctx context.Context) (any, error) {
		calls++
		return 42, nil
	}

	f := e.Func("answer")
	for i := 0; i < 3; i++ {
		v, err := f.Do(ctx, []any{"life"}, expensive)
		if err != nil {
			t.Fatalf("Do() #%d error = %v", i, err)
		}
		if v != 42 {
			t.Fatalf("Do() #%d = %v, want 42", i, v)
		}
	}

	if calls != 1 {
		t.Errorf("compute invoked %d times, want 1", calls)
	}
	if e.LastStatus() != StatusHit {
		t.Errorf("LastStatus() = %q, want %q", e.LastStatus(), StatusHit)
	}
}

func TestCachedFunc_DistinctArgs_DistinctResults(t *testing.T) {
	ctx := context.Background()

	e, err := New(WithDataID("memo"), WithDirectory(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(ctx)

	f := e.Func("double")
	double := func(n int) func(context.Context) (any, error) {
		return func(ctx context.Context) (any, error) { return n * 2, nil }
	}

	a, _ := f.Do(ctx, []any{2}, double(2))
	b, _ := f.Do(ctx, []any{3}, double(3))

	if a != 4 || b != 6 {
		t.Errorf("Do(2) = %v, Do(3) = %v; want 4, 6", a, b)
	}
}

func TestCachedFunc_FailuresNotCached(t *testing.T) {
	ctx := context.Background()

	e, err := New(WithDataID("memo"), WithDirectory(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(ctx)

	calls := 0
	boom := errors.New("upstream down")
	flaky := func(ctx context.Context) (any, error) {
		calls++
		if calls < 3 {
			return nil, boom
		}
		return "ok", nil
	}

	f := e.Func("flaky")
	for i := 0; i < 2; i++ {
		if _, err := f.Do(ctx, nil, flaky); !errors.Is(err, boom) {
			t.Fatalf("Do() #%d error = %v, want %v", i, err, boom)
		}
	}

	v, err := f.Do(ctx, nil, flaky)
	if err != nil {
		t.Fatalf("Do() after recovery error = %v", err)
	}
	if v != "ok" {
		t.Errorf("Do() = %v, want ok", v)
	}
	if calls != 3 {
		t.Errorf("compute invoked %d times, want 3 (failures re-invoke)", calls)
	}
}

func TestCachedFunc_ResultsSurviveReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	e, err := New(WithDataID("memo"), WithDirectory(dir))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Func("answer").Do(ctx, []any{"life"}, func(ctx context.Context) (any, error) {
		return 42, nil
	}); err != nil {
		t.Fatal(err)
	}
	e.Close(ctx)

	e2, err := New(WithDataID("memo"), WithDirectory(dir))
	if err != nil {
		t.Fatal(err)
	}
	defer e2.Close(ctx)

	v, err := e2.Func("answer").Do(ctx, []any{"life"}, func(ctx context.Context) (any, error) {
		t.Error("compute invoked despite persisted result")
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	// JSON round-trips numbers as float64.
	if n, ok := v.(float64); !ok || n != 42 {
		t.Errorf("reloaded result = %v (%T), want 42", v, v)
	}
	if e2.LastStatus() != StatusHit {
		t.Errorf("LastStatus() = %q, want %q", e2.LastStatus(), StatusHit)
	}
}

func TestCall_CoercesPersistedValues(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	type point struct {
		X int `json:"x"`
		Y int `json:"y"`
	}

	e, err := New(WithDataID("typed"), WithDirectory(dir))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Call(ctx, e.Func("origin"), nil, func(ctx context.Context) (point, error) {
		return point{X: 1, Y: 2}, nil
	}); err != nil {
		t.Fatal(err)
	}
	e.Close(ctx)

	// Reloaded results come back as generic JSON; Call coerces them.
	e2, err := New(WithDataID("typed"), WithDirectory(dir))
	if err != nil {
		t.Fatal(err)
	}
	defer e2.Close(ctx)

	p, err := Call(ctx, e2.Func("origin"), nil, func(ctx context.Context) (point, error) {
		t.Error("compute invoked despite persisted result")
		return point{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if p != (point{X: 1, Y: 2}) {
		t.Errorf("Call() = %+v, want {X:1 Y:2}", p)
	}
}

func TestCachedFunc_ResultTTLOverride(t *testing.T) {
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	e, err := New(
		WithDataID("memo"),
		WithDirectory(t.TempDir()),
		WithTTLDays(30),
		withNow(clock),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(ctx)

	calls := 0
	compute := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}

	// Results for this function go stale after a day, regardless of the
	// entry's 30-day TTL.
	f := e.Func("quote", WithResultTTLDays(1))
	f.Do(ctx, nil, compute)

	now = now.Add(2 * 24 * time.Hour)
	f.Do(ctx, nil, compute)

	if calls != 2 {
		t.Errorf("compute invoked %d times, want 2 (result TTL elapsed)", calls)
	}
}

func TestCachedFunc_LongSignatures(t *testing.T) {
	ctx := context.Background()

	e, err := New(WithDataID("memo"), WithDirectory(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(ctx)

	f := e.Func("lookup")
	// Two long arguments sharing a 300-char prefix must not collide.
	prefix := strings.Repeat("x", 300)
	va, _ := f.Do(ctx, []any{prefix + "a"}, func(ctx context.Context) (any, error) { return "a", nil })
	vb, _ := f.Do(ctx, []any{prefix + "b"}, func(ctx context.Context) (any, error) { return "b", nil })

	if va != "a" || vb != "b" {
		t.Errorf("long signatures collided: got %v, %v", va, vb)
	}

	for sig := range e.results {
		if len(sig) > maxSignatureLength+64 {
			t.Errorf("stored signature length = %d, want truncated", len(sig))
		}
	}
}

func TestEntry_ClearResults(t *testing.T) {
	ctx := context.Background()

	e, err := New(WithDataID("memo"), WithDirectory(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(ctx)

	one := func(ctx context.Context) (any, error) { return 1, nil }
	e.Func("alpha").Do(ctx, []any{1}, one)
	e.Func("alpha").Do(ctx, []any{2}, one)
	e.Func("beta").Do(ctx, []any{1}, one)

	if err := e.ClearResults(ctx, "alpha"); err != nil {
		t.Fatal(err)
	}
	s := e.Stats(ctx)
	if s.Results != 1 {
		t.Errorf("results after ClearResults(alpha) = %d, want 1", s.Results)
	}
	if s.Functions["beta"] != 1 {
		t.Errorf("beta results = %d, want 1", s.Functions["beta"])
	}

	if err := e.ClearResults(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if got := e.Stats(ctx).Results; got != 0 {
		t.Errorf("results after ClearResults(\"\") = %d, want 0", got)
	}
}
