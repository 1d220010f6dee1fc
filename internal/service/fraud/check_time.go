package fraud

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
)

// TimeCheck flags processing at unusual hours of the assessing clock
type TimeCheck struct {
	store MetricsStore
}

func NewTimeCheck(store MetricsStore) *TimeCheck {
	return &TimeCheck{store: store}
}

func (c *TimeCheck) Type() risk.CheckType { return risk.CheckTime }

func (c *TimeCheck) Evaluate(ctx context.Context, in *Evaluation) (*risk.CheckResult, error) {
	now := in.Now
	rules := in.Rules.Time
	result := risk.NewCheckResult(risk.CheckTime)

	if rules.IsSuspiciousHour(now.Hour()) {
		result.Add(TimeSuspiciousHourPoints, ViolationSuspiciousHour)
	}

	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		result.Add(scaled(TimeWeekendPoints, rules.WeekendMultiplier), ViolationWeekendTransaction)
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := c.store.TransactionTotals(ctx, in.Attempt.TenantID, in.Attempt.UserID, midnight)
	if err != nil {
		return nil, fmt.Errorf("transactions since midnight: %w", err)
	}
	if today.Count == 0 {
		result.Add(TimeFirstTodayPoints, ViolationFirstTransactionDay)
	}

	result.Metrics["hour"] = now.Hour()
	result.Metrics["weekday"] = now.Weekday().String()
	result.Metrics["transactionsToday"] = today.Count
	return result, nil
}

// scaled multiplies a base contribution by a rule multiplier, rounding to the
// nearest point
func scaled(points int, multiplier float64) int {
	return int(math.Round(float64(points) * multiplier))
}
