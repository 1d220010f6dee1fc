package cache

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/davidleathers/fraud-risk-engine/internal/service/fraud"
)

// RuleStore keeps the active rule configuration in Redis so every replica
// starts from the last accepted update.
type RuleStore struct {
	cache  Cache
	logger *zap.Logger
}

// NewRuleStore creates a rule repository backed by cache
func NewRuleStore(cache Cache, logger *zap.Logger) *RuleStore {
	return &RuleStore{cache: cache, logger: logger}
}

// LoadRules returns the stored configuration. found is false when nothing
// has been stored yet.
func (s *RuleStore) LoadRules(ctx context.Context) (fraud.RuleConfiguration, bool, error) {
	var rules fraud.RuleConfiguration
	err := s.cache.GetJSON(ctx, RulesKey, &rules)
	if err != nil {
		var notFound ErrCacheKeyNotFound
		if errors.As(err, &notFound) {
			return fraud.RuleConfiguration{}, false, nil
		}
		return fraud.RuleConfiguration{}, false, fmt.Errorf("loading rules: %w", err)
	}
	return rules, true, nil
}

// SaveRules stores rules without expiry. A short Redis lock keeps two
// replicas from interleaving writes.
func (s *RuleStore) SaveRules(ctx context.Context, rules fraud.RuleConfiguration) error {
	acquired, err := s.cache.SetNX(ctx, RulesLockKey, "1", RulesLockTTL)
	if err != nil {
		return fmt.Errorf("acquiring rules lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("rules update already in progress")
	}
	defer func() {
		if err := s.cache.Delete(ctx, RulesLockKey); err != nil {
			s.logger.Warn("failed to release rules lock", zap.Error(err))
		}
	}()

	if err := s.cache.SetJSON(ctx, RulesKey, rules, 0); err != nil {
		return fmt.Errorf("saving rules: %w", err)
	}

	s.logger.Info("rule configuration persisted")
	return nil
}
