package fraud

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
)

// Service defines the fraud risk assessment service interface
type Service interface {
	// Assess scores a payment attempt and persists the assessment
	Assess(ctx context.Context, attempt *risk.PaymentAttempt) (*risk.Assessment, error)
	// Rules returns the active rule configuration
	Rules() RuleConfiguration
	// UpdateRules validates and applies a partial rule update
	UpdateRules(ctx context.Context, update RuleUpdate) (RuleConfiguration, error)
	// History lists a user's assessments, most recent first
	History(ctx context.Context, tenantID, userID uuid.UUID, page risk.Page) ([]*risk.Assessment, error)
	// Statistics summarises a tenant's assessments since the given time
	Statistics(ctx context.Context, tenantID uuid.UUID, since time.Time) (*risk.Statistics, error)
}

// MetricsStore is the read-only view of tenant data the checks depend on
type MetricsStore interface {
	// GetUserProfile resolves the user's contact details
	GetUserProfile(ctx context.Context, tenantID, userID uuid.UUID) (*risk.PaymentContext, error)
	// TransactionTotals counts and sums the user's transactions created at or after since
	TransactionTotals(ctx context.Context, tenantID, userID uuid.UUID, since time.Time) (risk.TransactionTotals, error)
	// RecentTransactions returns up to 100 transactions since the given time, most recent first
	RecentTransactions(ctx context.Context, tenantID, userID uuid.UUID, since time.Time) ([]risk.TransactionRecord, error)
	// UsualLocations returns up to 10 locations seen at least twice
	UsualLocations(ctx context.Context, tenantID, userID uuid.UUID) ([]risk.KnownLocation, error)
	// DeviceHistory returns the 20 most recently seen device fingerprints
	DeviceHistory(ctx context.Context, tenantID, userID uuid.UUID) ([]risk.KnownDevice, error)
	// IsBlacklisted reports whether an active blacklist entry matches value
	IsBlacklisted(ctx context.Context, listType risk.BlacklistType, value string) (bool, error)
}

// AssessmentStore persists assessments and alerts
type AssessmentStore interface {
	// SaveAssessment upserts the assessment keyed on its ID
	SaveAssessment(ctx context.Context, assessment *risk.Assessment) error
	// CreateAlert appends an alert
	CreateAlert(ctx context.Context, alert *risk.Alert) error
	// ListAssessments returns a page of a user's assessments, most recent first
	ListAssessments(ctx context.Context, tenantID, userID uuid.UUID, page risk.Page) ([]*risk.Assessment, error)
	// Statistics aggregates a tenant's assessments created at or after since
	Statistics(ctx context.Context, tenantID uuid.UUID, since time.Time) (*risk.Statistics, error)
}

// AlertPublisher delivers alerts to downstream consumers
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert *risk.Alert) error
}

// Recorder receives domain measurements. Implementations must be safe for
// concurrent use.
type Recorder interface {
	RecordAssessment(ctx context.Context, level risk.Level, duration time.Duration)
	RecordCheck(ctx context.Context, check risk.CheckType, duration time.Duration, failed bool)
	RecordFailSafe(ctx context.Context)
	RecordAlertFailure(ctx context.Context, stage string)
}

// Check is a single independent risk heuristic
type Check interface {
	Type() risk.CheckType
	Evaluate(ctx context.Context, in *Evaluation) (*risk.CheckResult, error)
}

// Evaluation is the shared, read-only input handed to every check of one
// assessment. Rules and Now are captured once so all checks agree.
type Evaluation struct {
	Attempt *risk.PaymentAttempt
	Context *risk.PaymentContext
	Rules   RuleConfiguration
	Now     time.Time
}

type noopRecorder struct{}

func (noopRecorder) RecordAssessment(context.Context, risk.Level, time.Duration) {}
func (noopRecorder) RecordCheck(context.Context, risk.CheckType, time.Duration, bool) {}
func (noopRecorder) RecordFailSafe(context.Context) {}
func (noopRecorder) RecordAlertFailure(context.Context, string) {}
