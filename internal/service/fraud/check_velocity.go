package fraud

import (
	"context"
	"fmt"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
)

// VelocityCheck flags users transacting too often or too much in the
// trailing hour and day.
type VelocityCheck struct {
	store MetricsStore
}

func NewVelocityCheck(store MetricsStore) *VelocityCheck {
	return &VelocityCheck{store: store}
}

func (c *VelocityCheck) Type() risk.CheckType { return risk.CheckVelocity }

func (c *VelocityCheck) Evaluate(ctx context.Context, in *Evaluation) (*risk.CheckResult, error) {
	a := in.Attempt
	limits := in.Rules.Velocity

	hourly, err := c.store.TransactionTotals(ctx, a.TenantID, a.UserID, in.Now.Add(-VelocityHourWindow))
	if err != nil {
		return nil, fmt.Errorf("hourly velocity: %w", err)
	}
	daily, err := c.store.TransactionTotals(ctx, a.TenantID, a.UserID, in.Now.Add(-VelocityDayWindow))
	if err != nil {
		return nil, fmt.Errorf("daily velocity: %w", err)
	}

	result := risk.NewCheckResult(risk.CheckVelocity)
	if hourly.Count > limits.MaxTransactionsPerHour {
		result.Add(VelocityHourlyCountPoints, ViolationHighHourlyVelocity)
	}
	if hourly.Amount.GreaterThan(limits.MaxAmountPerHour) {
		result.Add(VelocityHourlyAmountPoints, ViolationHighHourlyAmount)
	}
	if daily.Count > limits.MaxTransactionsPerDay {
		result.Add(VelocityDailyCountPoints, ViolationHighDailyVelocity)
	}
	if daily.Amount.GreaterThan(limits.MaxAmountPerDay) {
		result.Add(VelocityDailyAmountPoints, ViolationHighDailyAmount)
	}

	result.Metrics["hourlyCount"] = hourly.Count
	result.Metrics["hourlyAmount"] = hourly.Amount.String()
	result.Metrics["dailyCount"] = daily.Count
	result.Metrics["dailyAmount"] = daily.Amount.String()
	return result, nil
}
