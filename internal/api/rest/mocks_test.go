package rest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
	"github.com/davidleathers/fraud-risk-engine/internal/service/fraud"
)

type mockFraudService struct {
	mock.Mock
}

var _ fraud.Service = (*mockFraudService)(nil)

func (m *mockFraudService) Assess(ctx context.Context, attempt *risk.PaymentAttempt) (*risk.Assessment, error) {
	args := m.Called(ctx, attempt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*risk.Assessment), args.Error(1)
}

func (m *mockFraudService) Rules() fraud.RuleConfiguration {
	args := m.Called()
	return args.Get(0).(fraud.RuleConfiguration)
}

func (m *mockFraudService) UpdateRules(ctx context.Context, update fraud.RuleUpdate) (fraud.RuleConfiguration, error) {
	args := m.Called(ctx, update)
	return args.Get(0).(fraud.RuleConfiguration), args.Error(1)
}

func (m *mockFraudService) History(ctx context.Context, tenantID, userID uuid.UUID, page risk.Page) ([]*risk.Assessment, error) {
	args := m.Called(ctx, tenantID, userID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*risk.Assessment), args.Error(1)
}

func (m *mockFraudService) Statistics(ctx context.Context, tenantID uuid.UUID, since time.Time) (*risk.Statistics, error) {
	args := m.Called(ctx, tenantID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*risk.Statistics), args.Error(1)
}

type mockRateLimiter struct {
	mock.Mock
}

func (m *mockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func (m *mockRateLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Int(0), args.Error(1)
}

func (m *mockRateLimiter) Reset(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}
