package fraud

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
)

type mockMetricsStore struct {
	mock.Mock
}

func (m *mockMetricsStore) GetUserProfile(ctx context.Context, tenantID, userID uuid.UUID) (*risk.PaymentContext, error) {
	args := m.Called(ctx, tenantID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*risk.PaymentContext), args.Error(1)
}

func (m *mockMetricsStore) TransactionTotals(ctx context.Context, tenantID, userID uuid.UUID, since time.Time) (risk.TransactionTotals, error) {
	args := m.Called(ctx, tenantID, userID, since)
	return args.Get(0).(risk.TransactionTotals), args.Error(1)
}

func (m *mockMetricsStore) RecentTransactions(ctx context.Context, tenantID, userID uuid.UUID, since time.Time) ([]risk.TransactionRecord, error) {
	args := m.Called(ctx, tenantID, userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]risk.TransactionRecord), args.Error(1)
}

func (m *mockMetricsStore) UsualLocations(ctx context.Context, tenantID, userID uuid.UUID) ([]risk.KnownLocation, error) {
	args := m.Called(ctx, tenantID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]risk.KnownLocation), args.Error(1)
}

func (m *mockMetricsStore) DeviceHistory(ctx context.Context, tenantID, userID uuid.UUID) ([]risk.KnownDevice, error) {
	args := m.Called(ctx, tenantID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]risk.KnownDevice), args.Error(1)
}

func (m *mockMetricsStore) IsBlacklisted(ctx context.Context, listType risk.BlacklistType, value string) (bool, error) {
	args := m.Called(ctx, listType, value)
	return args.Bool(0), args.Error(1)
}

// quiet stubs every store call with an established, unremarkable user.
// Expectations registered before calling quiet take precedence.
func (m *mockMetricsStore) quiet() *mockMetricsStore {
	m.On("GetUserProfile", mock.Anything, mock.Anything, mock.Anything).
		Return(&risk.PaymentContext{Email: "user@example.com"}, nil).Maybe()
	m.On("TransactionTotals", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(risk.TransactionTotals{Count: 1, Amount: decimalFromInt(100)}, nil).Maybe()
	m.On("RecentTransactions", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]risk.TransactionRecord{}, nil).Maybe()
	m.On("UsualLocations", mock.Anything, mock.Anything, mock.Anything).
		Return([]risk.KnownLocation{{Latitude: 40.7128, Longitude: -74.0060, Country: "US", Occurrences: 5}}, nil).Maybe()
	m.On("DeviceHistory", mock.Anything, mock.Anything, mock.Anything).
		Return([]risk.KnownDevice{{Fingerprint: "fp-known"}}, nil).Maybe()
	m.On("IsBlacklisted", mock.Anything, mock.Anything, mock.Anything).
		Return(false, nil).Maybe()
	return m
}

type mockAssessmentStore struct {
	mock.Mock
}

func (m *mockAssessmentStore) SaveAssessment(ctx context.Context, assessment *risk.Assessment) error {
	args := m.Called(ctx, assessment)
	return args.Error(0)
}

func (m *mockAssessmentStore) CreateAlert(ctx context.Context, alert *risk.Alert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *mockAssessmentStore) ListAssessments(ctx context.Context, tenantID, userID uuid.UUID, page risk.Page) ([]*risk.Assessment, error) {
	args := m.Called(ctx, tenantID, userID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*risk.Assessment), args.Error(1)
}

func (m *mockAssessmentStore) Statistics(ctx context.Context, tenantID uuid.UUID, since time.Time) (*risk.Statistics, error) {
	args := m.Called(ctx, tenantID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*risk.Statistics), args.Error(1)
}

type mockAlertPublisher struct {
	mock.Mock
}

func (m *mockAlertPublisher) PublishAlert(ctx context.Context, alert *risk.Alert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

type mockRuleRepository struct {
	mock.Mock
}

func (m *mockRuleRepository) LoadRules(ctx context.Context) (RuleConfiguration, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(RuleConfiguration), args.Bool(1), args.Error(2)
}

func (m *mockRuleRepository) SaveRules(ctx context.Context, rules RuleConfiguration) error {
	args := m.Called(ctx, rules)
	return args.Error(0)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordAssessment(ctx context.Context, level risk.Level, duration time.Duration) {
	m.Called(ctx, level, duration)
}

func (m *mockRecorder) RecordCheck(ctx context.Context, check risk.CheckType, duration time.Duration, failed bool) {
	m.Called(ctx, check, duration, failed)
}

func (m *mockRecorder) RecordFailSafe(ctx context.Context) {
	m.Called(ctx)
}

func (m *mockRecorder) RecordAlertFailure(ctx context.Context, stage string) {
	m.Called(ctx, stage)
}
