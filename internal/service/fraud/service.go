package fraud

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/errors"
	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
	"github.com/davidleathers/fraud-risk-engine/internal/infrastructure/telemetry"
)

const tracerName = "github.com/davidleathers/fraud-risk-engine/internal/service/fraud"

// Config controls engine execution
type Config struct {
	// CheckTimeout bounds each individual check
	CheckTimeout time.Duration
	// TimeZone is used for hour-of-day, weekend and midnight calculations
	TimeZone *time.Location
}

// Option customises an Engine
type Option func(*Engine)

// WithClock replaces the wall clock
func WithClock(c risk.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRecorder attaches a metrics recorder
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithAlertPublisher forwards raised alerts to p in addition to storing them
func WithAlertPublisher(p AlertPublisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// Engine is the fraud risk assessment orchestrator
type Engine struct {
	store       MetricsStore
	assessments AssessmentStore
	rules       *RuleManager
	publisher   AlertPublisher
	recorder    Recorder
	clock       risk.Clock
	location    *time.Location
	logger      *zap.Logger
	tracer      trace.Tracer

	checks []Check
	runner *checkRunner
}

var _ Service = (*Engine)(nil)

// NewEngine creates the engine with the standard seven checks
func NewEngine(
	store MetricsStore,
	assessments AssessmentStore,
	rules *RuleManager,
	cfg Config,
	logger *zap.Logger,
	opts ...Option,
) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("metrics store is required")
	}
	if assessments == nil {
		return nil, fmt.Errorf("assessment store is required")
	}
	if rules == nil {
		return nil, fmt.Errorf("rule manager is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = DefaultCheckTimeout
	}
	if cfg.TimeZone == nil {
		cfg.TimeZone = time.UTC
	}

	e := &Engine{
		store:       store,
		assessments: assessments,
		rules:       rules,
		recorder:    noopRecorder{},
		clock:       risk.RealClock{},
		location:    cfg.TimeZone,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.checks = []Check{
		NewVelocityCheck(store),
		NewAmountCheck(),
		NewTimeCheck(store),
		NewLocationCheck(store),
		NewDeviceCheck(store),
		NewBehavioralCheck(store),
		NewBlacklistCheck(store),
	}
	e.runner = &checkRunner{
		timeout:  cfg.CheckTimeout,
		logger:   logger,
		recorder: e.recorder,
	}
	return e, nil
}

// Assess scores a payment attempt, persists the assessment and raises an
// alert for high and critical outcomes.
//
// Only validation and persistence failures are returned. Any other failure
// yields the fail-safe medium-risk assessment.
func (e *Engine) Assess(ctx context.Context, attempt *risk.PaymentAttempt) (*risk.Assessment, error) {
	ctx, span := e.tracer.Start(ctx, "fraud.Assess")
	defer span.End()

	if err := attempt.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid payment attempt")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("tenant.id", attempt.TenantID.String()),
		attribute.String("user.id", attempt.UserID.String()),
	)

	id := uuid.New()
	started := e.clock.Now()
	logger := telemetry.WithTrace(ctx, e.logger).With(
		zap.String("assessment_id", id.String()),
		zap.String("tenant_id", attempt.TenantID.String()),
		zap.String("user_id", attempt.UserID.String()),
	)

	assessment, err := e.evaluate(ctx, id, attempt, started)
	if err != nil {
		logger.Error("fraud assessment failed, using fail-safe default", zap.Error(err))
		span.RecordError(err)
		e.recorder.RecordFailSafe(ctx)
		assessment = risk.NewFailSafeAssessment(id, attempt, err, started, e.clock.Now())
	}

	if err := e.assessments.SaveAssessment(ctx, assessment); err != nil {
		logger.Error("failed to persist risk assessment", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return nil, errors.NewInternalError("failed to persist risk assessment").WithCause(err)
	}

	e.recorder.RecordAssessment(ctx, assessment.RiskLevel, assessment.ProcessingTime)
	span.SetAttributes(
		attribute.Int("risk.score", assessment.RiskScore),
		attribute.String("risk.level", string(assessment.RiskLevel)),
	)

	if assessment.RiskLevel.RequiresAlert() {
		e.raiseAlert(ctx, logger, assessment)
	}

	logger.Info("fraud assessment completed",
		zap.Int("risk_score", assessment.RiskScore),
		zap.String("risk_level", string(assessment.RiskLevel)),
		zap.Strings("violations", assessment.Violations),
		zap.Duration("processing_time", assessment.ProcessingTime),
	)
	return assessment, nil
}

// evaluate runs every check and aggregates. Panics are converted to errors
// so the caller can fall back to the fail-safe assessment.
func (e *Engine) evaluate(ctx context.Context, id uuid.UUID, attempt *risk.PaymentAttempt, started time.Time) (a *risk.Assessment, err error) {
	defer func() {
		if p := recover(); p != nil {
			a = nil
			err = fmt.Errorf("assessment panicked: %v", p)
		}
	}()

	in := &Evaluation{
		Attempt: attempt,
		Context: e.resolveContext(ctx, attempt),
		Rules:   e.rules.Rules(),
		Now:     started.In(e.location),
	}

	results := e.runner.runAll(ctx, e.checks, in)
	agg := Aggregate(results, in.Rules)

	return &risk.Assessment{
		ID:             id,
		TenantID:       attempt.TenantID,
		UserID:         attempt.UserID,
		TransactionID:  attempt.EffectiveTransactionID(),
		RiskScore:      agg.Score,
		RiskLevel:      agg.Level,
		Violations:     agg.Violations,
		Checks:         results,
		ProcessingTime: e.clock.Now().Sub(started),
		CreatedAt:      started,
	}, nil
}

// resolveContext looks up the user profile. Failure degrades to an empty context.
func (e *Engine) resolveContext(ctx context.Context, attempt *risk.PaymentAttempt) *risk.PaymentContext {
	pctx, err := e.store.GetUserProfile(ctx, attempt.TenantID, attempt.UserID)
	if err != nil || pctx == nil {
		if err != nil {
			e.logger.Warn("failed to resolve payment context",
				zap.String("tenant_id", attempt.TenantID.String()),
				zap.String("user_id", attempt.UserID.String()),
				zap.Error(err),
			)
		}
		return &risk.PaymentContext{UserID: attempt.UserID}
	}
	return pctx
}

// raiseAlert stores and publishes an alert. Failures are logged and never
// affect the assessment.
func (e *Engine) raiseAlert(ctx context.Context, logger *zap.Logger, assessment *risk.Assessment) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("alerting panicked", zap.Any("panic", p))
			e.recorder.RecordAlertFailure(ctx, "panic")
		}
	}()

	alert := risk.NewAlert(assessment, e.clock.Now())

	if err := e.assessments.CreateAlert(ctx, alert); err != nil {
		logger.Warn("failed to store fraud alert", zap.String("alert_id", alert.ID.String()), zap.Error(err))
		e.recorder.RecordAlertFailure(ctx, "store")
	}

	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishAlert(ctx, alert); err != nil {
		logger.Warn("failed to publish fraud alert", zap.String("alert_id", alert.ID.String()), zap.Error(err))
		e.recorder.RecordAlertFailure(ctx, "publish")
	}
}

// Rules returns the active rule configuration
func (e *Engine) Rules() RuleConfiguration {
	return e.rules.Rules()
}

// UpdateRules validates and applies a partial rule update
func (e *Engine) UpdateRules(ctx context.Context, update RuleUpdate) (RuleConfiguration, error) {
	if update.IsEmpty() {
		return RuleConfiguration{}, errors.NewValidationError("EMPTY_RULE_UPDATE", "rule update contains no changes")
	}
	updated, err := e.rules.Update(ctx, update)
	if err != nil {
		e.logger.Warn("fraud rule update rejected", zap.Error(err))
		return RuleConfiguration{}, err
	}
	e.logger.Info("fraud rules updated")
	return updated, nil
}

// History lists a user's assessments, most recent first
func (e *Engine) History(ctx context.Context, tenantID, userID uuid.UUID, page risk.Page) ([]*risk.Assessment, error) {
	if tenantID == uuid.Nil || userID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_IDENTIFIERS", "tenant ID and user ID are required")
	}
	history, err := e.assessments.ListAssessments(ctx, tenantID, userID, page.Normalize())
	if err != nil {
		return nil, errors.NewInternalError("failed to list risk assessments").WithCause(err)
	}
	return history, nil
}

// Statistics summarises a tenant's assessments since the given time
func (e *Engine) Statistics(ctx context.Context, tenantID uuid.UUID, since time.Time) (*risk.Statistics, error) {
	if tenantID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_TENANT", "tenant ID is required")
	}
	if since.After(e.clock.Now()) {
		return nil, errors.NewValidationError("INVALID_WINDOW", "statistics window cannot start in the future")
	}
	stats, err := e.assessments.Statistics(ctx, tenantID, since)
	if err != nil {
		return nil, errors.NewInternalError("failed to compute fraud statistics").WithCause(err)
	}
	return stats, nil
}
