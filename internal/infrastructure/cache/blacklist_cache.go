package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
	"github.com/davidleathers/fraud-risk-engine/internal/service/fraud"
)

const (
	blacklistHit  = "1"
	blacklistMiss = "0"
)

// BlacklistCacheStats counts cache outcomes since startup
type BlacklistCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
}

// BlacklistCache is a read-through cache in front of a MetricsStore's
// blacklist lookups. Every other MetricsStore method passes straight through.
// Positive results are kept longer than negative ones so a newly added entry
// takes effect within the negative TTL.
type BlacklistCache struct {
	fraud.MetricsStore

	cache       Cache
	logger      *zap.Logger
	ttl         time.Duration
	negativeTTL time.Duration

	hits   atomic.Int64
	misses atomic.Int64
	errs   atomic.Int64
}

// NewBlacklistCache wraps store. Non-positive TTLs fall back to the defaults.
func NewBlacklistCache(store fraud.MetricsStore, cache Cache, ttl, negativeTTL time.Duration, logger *zap.Logger) *BlacklistCache {
	if ttl <= 0 {
		ttl = DefaultBlacklistTTL
	}
	if negativeTTL <= 0 {
		negativeTTL = DefaultBlacklistNegativeTTL
	}
	return &BlacklistCache{
		MetricsStore: store,
		cache:        cache,
		logger:       logger,
		ttl:          ttl,
		negativeTTL:  negativeTTL,
	}
}

// IsBlacklisted answers from Redis when possible. Cache failures are logged
// and the lookup falls through to the store.
func (b *BlacklistCache) IsBlacklisted(ctx context.Context, listType risk.BlacklistType, value string) (bool, error) {
	key := blacklistKey(listType, value)

	var notFound ErrCacheKeyNotFound
	cached, err := b.cache.Get(ctx, key)
	switch {
	case err == nil:
		b.hits.Add(1)
		return cached == blacklistHit, nil
	case errors.As(err, &notFound):
		b.misses.Add(1)
	default:
		b.errs.Add(1)
		b.logger.Warn("blacklist cache read failed",
			zap.String("list_type", string(listType)),
			zap.Error(err))
	}

	listed, err := b.MetricsStore.IsBlacklisted(ctx, listType, value)
	if err != nil {
		return false, err
	}

	marker, ttl := blacklistMiss, b.negativeTTL
	if listed {
		marker, ttl = blacklistHit, b.ttl
	}
	if err := b.cache.Set(ctx, key, marker, ttl); err != nil {
		b.errs.Add(1)
		b.logger.Warn("blacklist cache write failed",
			zap.String("list_type", string(listType)),
			zap.Error(err))
	}

	return listed, nil
}

// Invalidate drops the cached answer for one value
func (b *BlacklistCache) Invalidate(ctx context.Context, listType risk.BlacklistType, value string) error {
	return b.cache.Delete(ctx, blacklistKey(listType, value))
}

// Stats returns a snapshot of the cache counters
func (b *BlacklistCache) Stats() BlacklistCacheStats {
	return BlacklistCacheStats{
		Hits:   b.hits.Load(),
		Misses: b.misses.Load(),
		Errors: b.errs.Load(),
	}
}

// blacklistKey hashes the value so raw emails and card tokens never appear
// in key names.
func blacklistKey(listType risk.BlacklistType, value string) string {
	sum := sha256.Sum256([]byte(value))
	return BlacklistPrefix + string(listType) + ":" + hex.EncodeToString(sum[:])
}
