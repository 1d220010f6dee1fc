package fraud

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
)

// BehavioralCheck compares the attempt against the user's recent baseline
type BehavioralCheck struct {
	store MetricsStore
}

func NewBehavioralCheck(store MetricsStore) *BehavioralCheck {
	return &BehavioralCheck{store: store}
}

func (c *BehavioralCheck) Type() risk.CheckType { return risk.CheckBehavioral }

func (c *BehavioralCheck) Evaluate(ctx context.Context, in *Evaluation) (*risk.CheckResult, error) {
	a := in.Attempt
	result := risk.NewCheckResult(risk.CheckBehavioral)

	history, err := c.store.RecentTransactions(ctx, a.TenantID, a.UserID, in.Now.Add(-BehavioralHistoryWindow))
	if err != nil {
		return nil, fmt.Errorf("transaction history: %w", err)
	}
	result.Metrics["historySize"] = len(history)
	if len(history) == 0 {
		return result, nil
	}

	total := decimal.Zero
	methods := make(map[string]struct{})
	rapid := 0
	rapidSince := in.Now.Add(-BehavioralRapidWindow)
	for _, tx := range history {
		total = total.Add(tx.Amount)
		methods[strings.ToLower(tx.PaymentMethod)] = struct{}{}
		if !tx.CreatedAt.Before(rapidSince) {
			rapid++
		}
	}

	mean := total.Div(decimal.NewFromInt(int64(len(history))))
	result.Metrics["meanAmount"] = mean.StringFixed(2)
	if mean.IsPositive() {
		deviation, _ := a.Amount.Sub(mean).Abs().Div(mean).Float64()
		result.Metrics["amountDeviation"] = deviation
		if deviation > BehavioralDeviationThreshold {
			result.Add(BehavioralAmountPoints, ViolationUnusualAmount)
		}
	}

	result.Metrics["recentCount"] = rapid
	if rapid > BehavioralRapidThreshold {
		result.Add(BehavioralRapidPoints, ViolationRapidPayments)
	}

	if _, seen := methods[strings.ToLower(a.PaymentMethod)]; !seen {
		result.Add(BehavioralMethodPoints, ViolationUnusualPaymentMethod)
	}

	return result, nil
}
