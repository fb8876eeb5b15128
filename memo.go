package packrat

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/packrat-io/packrat/internal/local"
	"github.com/packrat-io/packrat/internal/stats"
)

// Memoized call outcomes, reported by Entry.LastStatus.
const (
	StatusHit  = "hit"
	StatusMiss = "miss"
)

const (
	// maxSignatureLength is the longest call signature stored verbatim.
	maxSignatureLength = 180

	// signatureTruncate is where over-long signatures are cut before
	// the hash suffix.
	signatureTruncate = 149
)

// CachedFunc memoizes one function's results in an entry. Results are
// keyed by the function name plus its argument values, persisted with
// the entry, and reused across processes like any other cached state.
type CachedFunc struct {
	entry   *Entry
	name    string
	ttlDays *float64
}

// FuncOption configures a CachedFunc.
type FuncOption func(*CachedFunc)

// WithResultTTLDays overrides the entry TTL for this function's
// results.
func WithResultTTLDays(days float64) FuncOption {
	return func(f *CachedFunc) {
		f.ttlDays = &days
	}
}

// Func returns a memoization handle for the named function backed by
// this entry.
func (e *Entry) Func(name string, opts ...FuncOption) *CachedFunc {
	f := &CachedFunc{entry: e, name: name}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Do returns the memoized result for the given arguments, invoking
// compute only on a miss or when the stored result has aged past the
// TTL. A failed compute is returned as-is and never cached, so the
// next call re-invokes it. The result is persisted via the entry's
// normal save path.
func (f *CachedFunc) Do(ctx context.Context, args []any, compute func(context.Context) (any, error)) (any, error) {
	e := f.entry
	if e.closed.Load() {
		return nil, ErrClosed
	}
	e.hydrate(ctx)

	sig := f.signature(args)
	now := e.now()

	if res, ok := e.results[sig]; ok && !f.expired(res, now) {
		e.lastStatus = StatusHit
		e.stats.IncCounter(stats.MetricMemoHits, 1)
		return res.Value, nil
	}

	value, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	e.results[sig] = local.Result{Value: value, Date: now}
	e.touch()
	e.lastStatus = StatusMiss
	e.stats.IncCounter(stats.MetricMemoMisses, 1)

	if err := e.save(ctx); err != nil {
		// The computed value is still good; the save failure was
		// already logged and will be retried by a later save.
		e.logger.Warn("persisting memoized result failed",
			zap.String("function", f.name),
			zap.Error(err),
		)
	}
	return value, nil
}

// expired checks a stored result against the function's TTL, falling
// back to the entry TTL.
func (f *CachedFunc) expired(res local.Result, now time.Time) bool {
	ttl := f.ttlDays
	if ttl == nil {
		ttl = f.entry.ttlDays
	}
	if ttl == nil {
		return false
	}
	return now.Sub(res.Date) > ttlDuration(*ttl)
}

// signature derives the cache key for a call: the function name plus
// its canonically serialized arguments. Over-long signatures are
// truncated and suffixed with a SHA-1 digest so distinct calls never
// collide.
func (f *CachedFunc) signature(args []any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		data, err := json.Marshal(arg)
		if err != nil {
			parts[i] = fmt.Sprintf("%v", arg)
			continue
		}
		parts[i] = string(data)
	}
	sig := f.name + "(" + strings.Join(parts, ",") + ")"
	if len(sig) < maxSignatureLength {
		return sig
	}
	sum := sha1.Sum([]byte(sig))
	return sig[:signatureTruncate] + "_" + hex.EncodeToString(sum[:])
}

// Call invokes a memoized computation with a typed result. Values
// served from the persisted cache come back JSON-decoded and are
// coerced into T.
func Call[T any](ctx context.Context, f *CachedFunc, args []any, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := f.Do(ctx, args, func(ctx context.Context) (any, error) {
		return compute(ctx)
	})
	if err != nil {
		return zero, err
	}
	if typed, ok := v.(T); ok {
		return typed, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("decoding cached result: %w", err)
	}
	if err := json.Unmarshal(data, &zero); err != nil {
		return zero, fmt.Errorf("decoding cached result: %w", err)
	}
	return zero, nil
}
