package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
	"github.com/davidleathers/fraud-risk-engine/internal/service/fraud"
)

// countingStore answers blacklist lookups from a fixed set and counts calls.
// Other MetricsStore methods are not used by these tests.
type countingStore struct {
	fraud.MetricsStore
	listed map[string]bool
	calls  int
	err    error
}

func (s *countingStore) IsBlacklisted(_ context.Context, listType risk.BlacklistType, value string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.listed[string(listType)+":"+value], nil
}

func TestBlacklistCache_IsBlacklisted(t *testing.T) {
	ctx := context.Background()

	t.Run("positive result is cached", func(t *testing.T) {
		m, _ := setupTestRedis(t)
		store := &countingStore{listed: map[string]bool{"ip:203.0.113.9": true}}
		bc := m.Blacklist(store, time.Hour, time.Minute)

		for i := 0; i < 3; i++ {
			listed, err := bc.IsBlacklisted(ctx, risk.BlacklistIP, "203.0.113.9")
			require.NoError(t, err)
			assert.True(t, listed)
		}

		assert.Equal(t, 1, store.calls)
		assert.Equal(t, BlacklistCacheStats{Hits: 2, Misses: 1}, bc.Stats())
	})

	t.Run("negative result expires sooner", func(t *testing.T) {
		m, mr := setupTestRedis(t)
		store := &countingStore{listed: map[string]bool{}}
		bc := m.Blacklist(store, time.Hour, time.Minute)

		listed, err := bc.IsBlacklisted(ctx, risk.BlacklistEmail, "someone@example.com")
		require.NoError(t, err)
		assert.False(t, listed)

		store.listed["email:someone@example.com"] = true
		listed, err = bc.IsBlacklisted(ctx, risk.BlacklistEmail, "someone@example.com")
		require.NoError(t, err)
		assert.False(t, listed, "served from negative cache")

		mr.FastForward(2 * time.Minute)
		listed, err = bc.IsBlacklisted(ctx, risk.BlacklistEmail, "someone@example.com")
		require.NoError(t, err)
		assert.True(t, listed)
		assert.Equal(t, 2, store.calls)
	})

	t.Run("list types do not share entries", func(t *testing.T) {
		m, _ := setupTestRedis(t)
		store := &countingStore{listed: map[string]bool{"card:tok_1": true}}
		bc := m.Blacklist(store, 0, 0)

		card, err := bc.IsBlacklisted(ctx, risk.BlacklistCard, "tok_1")
		require.NoError(t, err)
		ip, err := bc.IsBlacklisted(ctx, risk.BlacklistIP, "tok_1")
		require.NoError(t, err)

		assert.True(t, card)
		assert.False(t, ip)
	})

	t.Run("store errors are returned and not cached", func(t *testing.T) {
		m, _ := setupTestRedis(t)
		store := &countingStore{err: errors.New("db down")}
		bc := m.Blacklist(store, time.Hour, time.Minute)

		_, err := bc.IsBlacklisted(ctx, risk.BlacklistIP, "198.51.100.1")
		require.Error(t, err)

		store.err = nil
		listed, err := bc.IsBlacklisted(ctx, risk.BlacklistIP, "198.51.100.1")
		require.NoError(t, err)
		assert.False(t, listed)
		assert.Equal(t, 2, store.calls)
	})

	t.Run("redis outage falls through to the store", func(t *testing.T) {
		m, mr := setupTestRedis(t)
		store := &countingStore{listed: map[string]bool{"ip:192.0.2.1": true}}
		bc := m.Blacklist(store, time.Hour, time.Minute)

		mr.Close()

		listed, err := bc.IsBlacklisted(ctx, risk.BlacklistIP, "192.0.2.1")
		require.NoError(t, err)
		assert.True(t, listed)
		assert.Equal(t, int64(2), bc.Stats().Errors)
	})

	t.Run("invalidate forces a fresh lookup", func(t *testing.T) {
		m, _ := setupTestRedis(t)
		store := &countingStore{listed: map[string]bool{}}
		bc := m.Blacklist(store, time.Hour, time.Hour)

		_, err := bc.IsBlacklisted(ctx, risk.BlacklistIP, "192.0.2.7")
		require.NoError(t, err)
		require.NoError(t, bc.Invalidate(ctx, risk.BlacklistIP, "192.0.2.7"))
		_, err = bc.IsBlacklisted(ctx, risk.BlacklistIP, "192.0.2.7")
		require.NoError(t, err)

		assert.Equal(t, 2, store.calls)
	})
}

func TestBlacklistKey_HidesValue(t *testing.T) {
	key := blacklistKey(risk.BlacklistEmail, "someone@example.com")

	assert.Contains(t, key, BlacklistPrefix+"email:")
	assert.NotContains(t, key, "someone")
}

func TestRuleStore(t *testing.T) {
	ctx := context.Background()
	m, _ := setupTestRedis(t)
	store := m.Rules

	_, found, err := store.LoadRules(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	rules := fraud.DefaultRules()
	rules.Location.MaxDistanceKm = 250
	rules.Amount.HighRiskThreshold = decimal.RequireFromString("75000.50")
	require.NoError(t, store.SaveRules(ctx, rules))

	loaded, found, err := store.LoadRules(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 250.0, loaded.Location.MaxDistanceKm)
	assert.True(t, loaded.Amount.HighRiskThreshold.Equal(rules.Amount.HighRiskThreshold))
	assert.Equal(t, rules.Weights, loaded.Weights)
	assert.Equal(t, rules.Time.SuspiciousHours, loaded.Time.SuspiciousHours)
	assert.NoError(t, loaded.Validate())

	exists, err := m.Cache.Exists(ctx, RulesLockKey)
	require.NoError(t, err)
	assert.False(t, exists, "lock released after save")
}

func TestRuleStore_RejectsConcurrentWriter(t *testing.T) {
	ctx := context.Background()
	m, _ := setupTestRedis(t)

	ok, err := m.Cache.SetNX(ctx, RulesLockKey, "other", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	err = m.Rules.SaveRules(ctx, fraud.DefaultRules())
	assert.ErrorContains(t, err, "already in progress")
}

func TestRuleStore_WithRuleManager(t *testing.T) {
	ctx := context.Background()
	m, _ := setupTestRedis(t)

	first, err := fraud.NewRuleManager(fraud.DefaultRules(), m.Rules)
	require.NoError(t, err)
	distance := 400.0
	_, err = first.Update(ctx, fraud.RuleUpdate{Location: &fraud.LocationRulesUpdate{MaxDistanceKm: &distance}})
	require.NoError(t, err)

	second, err := fraud.NewRuleManager(fraud.DefaultRules(), m.Rules)
	require.NoError(t, err)
	found, err := second.Load(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 400.0, second.Rules().Location.MaxDistanceKm)
	assert.Equal(t, fraud.DefaultRules().Location.NewCountryMultiplier, second.Rules().Location.NewCountryMultiplier)
}
