package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/errors"
	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
	"github.com/davidleathers/fraud-risk-engine/internal/infrastructure/telemetry"
	"github.com/davidleathers/fraud-risk-engine/internal/service/fraud"
)

var _ fraud.AssessmentStore = (*AssessmentRepository)(nil)

// AssessmentRepository persists risk assessments and fraud alerts
type AssessmentRepository struct {
	db Querier
}

// NewAssessmentRepository creates a PostgreSQL assessment repository
func NewAssessmentRepository(db Querier) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// SaveAssessment upserts the assessment keyed on its ID so a retried
// submission of the same assessment never creates a duplicate.
func (r *AssessmentRepository) SaveAssessment(ctx context.Context, a *risk.Assessment) error {
	ctx, span := telemetry.StartDatabaseSpan(ctx, "upsert", "risk_assessments")
	defer span.End()

	violations, err := marshalList(a.Violations)
	if err != nil {
		return errors.NewInternalError("failed to marshal violations").WithCause(err)
	}
	checks, err := marshalList(a.Checks)
	if err != nil {
		return errors.NewInternalError("failed to marshal check results").WithCause(err)
	}

	const query = `
		INSERT INTO risk_assessments (
			id, tenant_id, user_id, transaction_id, risk_score, risk_level,
			violations, checks, processing_time_us, fail_safe, error, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		ON CONFLICT (id) DO UPDATE SET
			transaction_id = EXCLUDED.transaction_id,
			risk_score = EXCLUDED.risk_score,
			risk_level = EXCLUDED.risk_level,
			violations = EXCLUDED.violations,
			checks = EXCLUDED.checks,
			processing_time_us = EXCLUDED.processing_time_us,
			fail_safe = EXCLUDED.fail_safe,
			error = EXCLUDED.error
	`

	_, err = r.db.Exec(ctx, query,
		a.ID,
		a.TenantID,
		a.UserID,
		a.TransactionID,
		a.RiskScore,
		string(a.RiskLevel),
		violations,
		checks,
		a.ProcessingTime.Microseconds(),
		a.IsFailSafe(),
		a.Error,
		a.CreatedAt,
	)
	if err != nil {
		telemetry.WithSpanError(span, err)
		return errors.NewInternalError("failed to save risk assessment").WithCause(err)
	}
	return nil
}

// CreateAlert appends a fraud alert
func (r *AssessmentRepository) CreateAlert(ctx context.Context, alert *risk.Alert) error {
	ctx, span := telemetry.StartDatabaseSpan(ctx, "insert", "fraud_alerts")
	defer span.End()

	violations, err := marshalList(alert.Violations)
	if err != nil {
		return errors.NewInternalError("failed to marshal violations").WithCause(err)
	}

	const query = `
		INSERT INTO fraud_alerts (
			id, assessment_id, tenant_id, user_id, risk_score, risk_level, violations, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.Exec(ctx, query,
		alert.ID,
		alert.AssessmentID,
		alert.TenantID,
		alert.UserID,
		alert.RiskScore,
		string(alert.RiskLevel),
		violations,
		alert.CreatedAt,
	)
	if err != nil {
		telemetry.WithSpanError(span, err)
		return errors.NewInternalError("failed to create fraud alert").WithCause(err)
	}
	return nil
}

// ListAssessments returns a page of the user's assessments, most recent first
func (r *AssessmentRepository) ListAssessments(ctx context.Context, tenantID, userID uuid.UUID, page risk.Page) ([]*risk.Assessment, error) {
	ctx, span := telemetry.StartDatabaseSpan(ctx, "select", "risk_assessments")
	defer span.End()

	page = page.Normalize()

	const query = `
		SELECT id, tenant_id, user_id, transaction_id, risk_score, risk_level,
			violations, checks, processing_time_us, error, created_at
		FROM risk_assessments
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.Query(ctx, query, tenantID, userID, page.Limit, page.Offset)
	if err != nil {
		telemetry.WithSpanError(span, err)
		return nil, errors.NewInternalError("failed to list risk assessments").WithCause(err)
	}
	defer rows.Close()

	assessments := make([]*risk.Assessment, 0, page.Limit)
	for rows.Next() {
		var a risk.Assessment
		var level string
		var violations, checks []byte
		var processingUS int64

		if err := rows.Scan(
			&a.ID, &a.TenantID, &a.UserID, &a.TransactionID, &a.RiskScore, &level,
			&violations, &checks, &processingUS, &a.Error, &a.CreatedAt,
		); err != nil {
			return nil, errors.NewInternalError("failed to scan risk assessment").WithCause(err)
		}

		a.RiskLevel = risk.Level(level)
		a.ProcessingTime = time.Duration(processingUS) * time.Microsecond
		if err := json.Unmarshal(violations, &a.Violations); err != nil {
			return nil, errors.NewInternalError("failed to decode violations").WithCause(err)
		}
		if err := json.Unmarshal(checks, &a.Checks); err != nil {
			return nil, errors.NewInternalError("failed to decode check results").WithCause(err)
		}
		assessments = append(assessments, &a)
	}
	if err := rows.Err(); err != nil {
		telemetry.WithSpanError(span, err)
		return nil, errors.NewInternalError("failed to iterate risk assessments").WithCause(err)
	}
	return assessments, nil
}

// Statistics aggregates the tenant's assessments created at or after since
func (r *AssessmentRepository) Statistics(ctx context.Context, tenantID uuid.UUID, since time.Time) (*risk.Statistics, error) {
	ctx, span := telemetry.StartDatabaseSpan(ctx, "aggregate", "risk_assessments")
	defer span.End()

	const query = `
		SELECT risk_level,
			COUNT(*),
			COALESCE(SUM(risk_score), 0)::BIGINT,
			COALESCE(SUM(processing_time_us), 0)::BIGINT,
			COUNT(*) FILTER (WHERE fail_safe)
		FROM risk_assessments
		WHERE tenant_id = $1 AND created_at >= $2
		GROUP BY risk_level
	`

	rows, err := r.db.Query(ctx, query, tenantID, since)
	if err != nil {
		telemetry.WithSpanError(span, err)
		return nil, errors.NewInternalError("failed to aggregate risk assessments").WithCause(err)
	}
	defer rows.Close()

	stats := &risk.Statistics{
		Since:   since,
		ByLevel: map[risk.Level]int{},
	}
	for _, l := range []risk.Level{risk.LevelLow, risk.LevelMedium, risk.LevelHigh, risk.LevelCritical} {
		stats.ByLevel[l] = 0
	}

	var scoreSum, processingSum int64
	for rows.Next() {
		var level string
		var count, failSafe int
		var levelScore, levelProcessing int64
		if err := rows.Scan(&level, &count, &levelScore, &levelProcessing, &failSafe); err != nil {
			return nil, errors.NewInternalError("failed to scan statistics").WithCause(err)
		}
		stats.ByLevel[risk.Level(level)] = count
		stats.Total += count
		stats.FailSafeCount += failSafe
		scoreSum += levelScore
		processingSum += levelProcessing
	}
	if err := rows.Err(); err != nil {
		telemetry.WithSpanError(span, err)
		return nil, errors.NewInternalError("failed to iterate statistics").WithCause(err)
	}

	if stats.Total > 0 {
		stats.AverageScore = float64(scoreSum) / float64(stats.Total)
		stats.AverageProcessingTime = time.Duration(processingSum/int64(stats.Total)) * time.Microsecond
	}
	return stats, nil
}

// marshalList encodes nil slices as [] so JSONB columns never hold null
func marshalList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

