package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-risk-engine/internal/infrastructure/config"
	"github.com/davidleathers/fraud-risk-engine/internal/service/fraud"
)

// Manager owns the shared Redis client and hands out the services built on it
type Manager struct {
	Cache       Cache
	RateLimiter RateLimiter
	Rules       *RuleStore
	client      *redis.Client
	logger      *zap.Logger
}

// NewManager connects to Redis and builds all cache services
func NewManager(cfg *config.RedisConfig, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	m, err := NewManagerFromClient(client, logger)
	if err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("cache manager initialized",
		zap.String("addr", cfg.URL),
		zap.Int("db", cfg.DB),
		zap.Int("pool_size", cfg.PoolSize))
	return m, nil
}

// NewManagerFromClient builds the cache services on an existing client
func NewManagerFromClient(client *redis.Client, logger *zap.Logger) (*Manager, error) {
	c, err := NewRedisCache(client, logger)
	if err != nil {
		return nil, err
	}

	return &Manager{
		Cache:       c,
		RateLimiter: NewRedisRateLimiter(client, logger),
		Rules:       NewRuleStore(c, logger),
		client:      client,
		logger:      logger,
	}, nil
}

// Blacklist wraps store with the read-through blacklist cache
func (m *Manager) Blacklist(store fraud.MetricsStore, ttl, negativeTTL time.Duration) *BlacklistCache {
	return NewBlacklistCache(store, m.Cache, ttl, negativeTTL, m.logger)
}

// HealthCheck verifies the Redis connection
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close closes the shared client
func (m *Manager) Close() error {
	if err := m.Cache.Close(); err != nil {
		return fmt.Errorf("cache manager close failed: %w", err)
	}
	return nil
}
