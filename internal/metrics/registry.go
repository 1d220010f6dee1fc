package metrics

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
)

// Registry holds the fraud engine's domain metrics. It satisfies the
// engine's Recorder interface.
type Registry struct {
	meter metric.Meter

	AssessmentDuration metric.Float64Histogram
	AssessmentCounter  metric.Int64Counter
	CheckDuration      metric.Float64Histogram
	CheckFailures      metric.Int64Counter
	FailSafeCounter    metric.Int64Counter
	AlertFailures      metric.Int64Counter
}

// NewRegistry creates the registry on the global meter provider
func NewRegistry(meterName string) (*Registry, error) {
	return NewRegistryWithMeter(otel.Meter(meterName))
}

// NewRegistryWithMeter creates the registry on an explicit meter
func NewRegistryWithMeter(meter metric.Meter) (*Registry, error) {
	r := &Registry{meter: meter}

	var errs []error
	var err error

	r.AssessmentDuration, err = meter.Float64Histogram(
		"fraud.assessment.duration",
		metric.WithDescription("End-to-end risk assessment latency in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000),
	)
	errs = append(errs, err)

	r.AssessmentCounter, err = meter.Int64Counter(
		"fraud.assessment.total",
		metric.WithDescription("Risk assessments by resulting level"),
	)
	errs = append(errs, err)

	r.CheckDuration, err = meter.Float64Histogram(
		"fraud.check.duration",
		metric.WithDescription("Individual check latency in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 5, 10, 25, 50, 100, 300),
	)
	errs = append(errs, err)

	r.CheckFailures, err = meter.Int64Counter(
		"fraud.check.failures_total",
		metric.WithDescription("Checks that errored, timed out or panicked"),
	)
	errs = append(errs, err)

	r.FailSafeCounter, err = meter.Int64Counter(
		"fraud.assessment.fail_safe_total",
		metric.WithDescription("Assessments that fell back to the fail-safe result"),
	)
	errs = append(errs, err)

	r.AlertFailures, err = meter.Int64Counter(
		"fraud.alert.failures_total",
		metric.WithDescription("Alerts that could not be stored or published"),
	)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) RecordAssessment(ctx context.Context, level risk.Level, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("risk_level", string(level)))
	r.AssessmentDuration.Record(ctx, milliseconds(duration), attrs)
	r.AssessmentCounter.Add(ctx, 1, attrs)
}

func (r *Registry) RecordCheck(ctx context.Context, check risk.CheckType, duration time.Duration, failed bool) {
	attrs := metric.WithAttributes(attribute.String("check", check.String()))
	r.CheckDuration.Record(ctx, milliseconds(duration), attrs)
	if failed {
		r.CheckFailures.Add(ctx, 1, attrs)
	}
}

func (r *Registry) RecordFailSafe(ctx context.Context) {
	r.FailSafeCounter.Add(ctx, 1)
}

// RecordAlertFailure counts a failed alert; stage is store, publish or panic
func (r *Registry) RecordAlertFailure(ctx context.Context, stage string) {
	r.AlertFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
