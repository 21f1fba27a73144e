// Package ratelimit provides per-identity admission control for the upstream
// voucher proxy endpoints. Each caller identity (normally the client IP) gets
// a token bucket that refills lazily at decision time. The package also
// includes HTTP middleware that sets the standard rate limit response headers
// and turns denials into 429 responses.
package ratelimit

import (
	"errors"
	"time"
)

// Default sweep settings used when Config leaves them unset.
const (
	DefaultCleanupInterval = 5 * time.Minute
	DefaultStaleAfter      = 10 * time.Minute
)

// Limiter defines the admission contract. Implementations must be safe for
// concurrent use and must never block on I/O.
type Limiter interface {
	// CheckLimit decides whether a request from identity may proceed and
	// consumes a token when it does.
	CheckLimit(identity string) Result

	// Capacity returns the configured burst size, for reporting.
	Capacity() int
}

// Result is the outcome of a single admission decision.
type Result struct {
	Allowed   bool      // Whether the request may proceed
	Remaining int       // Tokens left after this decision (0 when denied)
	ResetAt   time.Time // When the next token becomes available
}

// Config is fixed at construction time.
type Config struct {
	Capacity        int           // Maximum tokens per bucket (burst size)
	Window          time.Duration // Time for Capacity tokens to fully regenerate
	CleanupInterval time.Duration // Minimum time between opportunistic sweeps
	StaleAfter      time.Duration // Buckets idle longer than this are evicted
}

// Validate checks the configuration and fills in sweep defaults.
func (c *Config) Validate() error {
	if c.Capacity <= 0 {
		return errors.New("capacity must be positive")
	}
	if c.Window <= 0 {
		return errors.New("window must be positive")
	}
	if c.CleanupInterval < 0 {
		return errors.New("cleanup interval cannot be negative")
	}
	if c.StaleAfter < 0 {
		return errors.New("stale threshold cannot be negative")
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	if c.StaleAfter == 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	return nil
}

// RefillInterval is the time needed to regenerate exactly one token.
func (c Config) RefillInterval() time.Duration {
	return c.Window / time.Duration(c.Capacity)
}
