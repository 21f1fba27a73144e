// Package cache holds voucher group responses between upstream calls.
//
// Values are opaque byte slices keyed by string. Two backends are provided:
// an in-process map with TTL and a size bound, and Redis for deployments that
// run several replicas. A disabled cache is represented by Noop so callers
// never need nil checks.
package cache

import (
	"context"
	"fmt"
	"time"

	"voucherwatch/internal/models"
)

// Cache is a TTL key/value store. A miss is reported as (nil, false, nil);
// errors are reserved for backend failures.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// VoucherKey is the cache key for a voucher group.
func VoucherKey(voucherID string) string {
	return "voucher:" + voucherID
}

// New creates the cache described by cfg.
func New(cfg models.CacheConfig) (Cache, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}

	switch cfg.Type {
	case models.CacheTypeMemory:
		return NewMemoryCache(cfg.Memory.MaxSize), nil
	case models.CacheTypeRedis:
		return NewRedisCache(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Noop) Delete(context.Context, string) error { return nil }
func (Noop) Ping(context.Context) error { return nil }
func (Noop) Close() error { return nil }

var _ Cache = Noop{}
