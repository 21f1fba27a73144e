package ratelimit

import (
	"fmt"
	"math/bits"
	"sync"
	"time"
)

// bucket is the per-identity token state. tokens stays within [0, Capacity].
type bucket struct {
	tokens       int
	lastRefillAt time.Time
}

// TokenBucketLimiter is an in-memory Limiter. Buckets are created on first
// use, refilled lazily on each decision and evicted by an opportunistic sweep
// that runs inside CheckLimit once CleanupInterval has elapsed. There are no
// background goroutines, so nothing needs to be closed.
//
// A single mutex guards the registry: the refill, comparison and decrement
// for an identity happen as one critical section, so two concurrent requests
// can never both spend the last token.
type TokenBucketLimiter struct {
	cfg            Config
	refillInterval time.Duration
	now            func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// Option configures a TokenBucketLimiter.
type Option func(*TokenBucketLimiter)

// WithClock replaces time.Now, mainly for tests driving a simulated clock.
func WithClock(now func() time.Time) Option {
	return func(l *TokenBucketLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewTokenBucketLimiter creates a limiter from cfg. Zero sweep settings are
// replaced by DefaultCleanupInterval and DefaultStaleAfter.
func NewTokenBucketLimiter(cfg Config, opts ...Option) (*TokenBucketLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rate limit config: %w", err)
	}

	l := &TokenBucketLimiter{
		cfg:            cfg,
		refillInterval: cfg.RefillInterval(),
		now:            time.Now,
		buckets:        make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()

	return l, nil
}

// Capacity returns the maximum number of tokens per bucket.
func (l *TokenBucketLimiter) Capacity() int {
	return l.cfg.Capacity
}

// CheckLimit admits or denies a request from identity.
func (l *TokenBucketLimiter) CheckLimit(identity string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepIfDue(now)

	b, exists := l.buckets[identity]
	if !exists {
		b = &bucket{
			tokens:       l.cfg.Capacity - 1,
			lastRefillAt: now,
		}
		l.buckets[identity] = b

		return Result{
			Allowed:   true,
			Remaining: b.tokens,
			ResetAt:   now.Add(l.refillInterval),
		}
	}

	elapsed := now.Sub(b.lastRefillAt)
	if elapsed < 0 {
		elapsed = 0
	}

	// lastRefillAt only moves when at least one whole token was added, so
	// partial progress towards the next token carries over.
	if add := l.tokensFor(elapsed); add > 0 {
		b.tokens = min(l.cfg.Capacity, b.tokens+add)
		b.lastRefillAt = now
	}

	if b.tokens > 0 {
		b.tokens--
		return Result{
			Allowed:   true,
			Remaining: b.tokens,
			ResetAt:   now.Add(l.refillInterval),
		}
	}

	wait := l.refillInterval - elapsed
	if wait < 0 {
		wait = 0
	}
	return Result{
		Allowed:   false,
		Remaining: 0,
		ResetAt:   now.Add(wait),
	}
}

// tokensFor returns floor(elapsed * Capacity / Window). The product is formed
// in 128 bits so long idle periods cannot overflow. Anything at or beyond a
// full window saturates the bucket anyway.
func (l *TokenBucketLimiter) tokensFor(elapsed time.Duration) int {
	if elapsed >= l.cfg.Window {
		return l.cfg.Capacity
	}
	hi, lo := bits.Mul64(uint64(elapsed), uint64(l.cfg.Capacity))
	q, _ := bits.Div64(hi, lo, uint64(l.cfg.Window))
	return int(q)
}

// Sweep evicts every bucket that has not refilled within StaleAfter and
// returns how many were removed.
func (l *TokenBucketLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.lastSweep = now
	return l.evictStale(now)
}

// Len returns the number of tracked identities.
func (l *TokenBucketLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// sweepIfDue runs an eviction pass when CleanupInterval has elapsed since the
// previous one. Caller must hold l.mu.
func (l *TokenBucketLimiter) sweepIfDue(now time.Time) {
	if now.Sub(l.lastSweep) < l.cfg.CleanupInterval {
		return
	}
	l.lastSweep = now
	l.evictStale(now)
}

// evictStale removes buckets whose last refill predates now - StaleAfter.
// Caller must hold l.mu.
func (l *TokenBucketLimiter) evictStale(now time.Time) int {
	cutoff := now.Add(-l.cfg.StaleAfter)
	removed := 0
	for identity, b := range l.buckets {
		if b.lastRefillAt.Before(cutoff) {
			delete(l.buckets, identity)
			removed++
		}
	}
	return removed
}

var _ Limiter = (*TokenBucketLimiter)(nil)
