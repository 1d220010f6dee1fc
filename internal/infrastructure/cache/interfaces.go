package cache

import (
	"context"
	"time"
)

// Cache is the key/value surface the engine's Redis components share
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// SetNX backs the rule update lock
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Close() error
}

// RateLimiter is a sliding-window limiter shared by all API replicas
type RateLimiter interface {
	// Allow records one request under key; rejected requests use no quota
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)
	Reset(ctx context.Context, key string) error
}

const (
	BlacklistPrefix = "fre:blacklist:"
	RulesKey        = "fre:rules:active"
	RulesLockKey    = "fre:rules:lock"
	RateLimitPrefix = "fre:ratelimit:"
)

const (
	DefaultBlacklistTTL         = 10 * time.Minute
	DefaultBlacklistNegativeTTL = time.Minute
	RulesLockTTL                = 5 * time.Second
)

// ErrCacheKeyNotFound reports a miss
type ErrCacheKeyNotFound struct {
	Key string
}

func (e ErrCacheKeyNotFound) Error() string {
	return "cache key not found: " + e.Key
}
