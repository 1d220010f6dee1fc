package fraud

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
)

var (
	roundDivisor = decimal.NewFromInt(AmountRoundDivisor)
	roundMinimum = decimal.NewFromInt(AmountRoundMinimum)
)

// AmountCheck scores the attempted amount on its own. It never touches the store.
type AmountCheck struct{}

func NewAmountCheck() *AmountCheck {
	return &AmountCheck{}
}

func (c *AmountCheck) Type() risk.CheckType { return risk.CheckAmount }

func (c *AmountCheck) Evaluate(_ context.Context, in *Evaluation) (*risk.CheckResult, error) {
	return ScoreAmount(in.Attempt.Amount, in.Rules.Amount), nil
}

// ScoreAmount applies the amount heuristics to a single value
func ScoreAmount(amount decimal.Decimal, rules AmountRules) *risk.CheckResult {
	result := risk.NewCheckResult(risk.CheckAmount)

	switch {
	case amount.GreaterThanOrEqual(rules.HighRiskThreshold):
		result.Add(AmountHighRiskScore, ViolationHighRiskAmount)
	case amount.GreaterThanOrEqual(rules.SuspiciousThreshold):
		result.Add(AmountSuspiciousScore, ViolationSuspiciousAmount)
	}

	if amount.GreaterThanOrEqual(roundMinimum) && amount.Mod(roundDivisor).IsZero() {
		result.Add(AmountRoundPoints, ViolationRoundAmount)
	}

	// trailing zeros are not significant: 10.500 has one decimal place
	if !amount.Equal(amount.Truncate(AmountMaxDecimalPlaces)) {
		result.Add(AmountPrecisionPoints, ViolationUnusualPrecision)
	}

	result.Metrics["amount"] = amount.String()
	return result
}
