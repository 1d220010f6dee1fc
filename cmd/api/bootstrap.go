package main

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
	"github.com/davidleathers/fraud-risk-engine/internal/infrastructure/config"
	"github.com/davidleathers/fraud-risk-engine/internal/service/fraud"
)

// rulesFromConfig applies configured overrides to the built-in rules. Zero
// values keep the default. A weights override replaces the defaults and must
// sum to 1.
func rulesFromConfig(o config.FraudRuleOverrides) (fraud.RuleConfiguration, error) {
	base := fraud.DefaultRules()
	var update fraud.RuleUpdate

	if o.SuspiciousAmount > 0 || o.HighRiskAmount > 0 {
		update.Amount = &fraud.AmountRulesUpdate{}
		if o.SuspiciousAmount > 0 {
			v := decimal.NewFromFloat(o.SuspiciousAmount)
			update.Amount.SuspiciousThreshold = &v
		}
		if o.HighRiskAmount > 0 {
			v := decimal.NewFromFloat(o.HighRiskAmount)
			update.Amount.HighRiskThreshold = &v
		}
	}

	if o.MaxDistanceKm > 0 {
		d := o.MaxDistanceKm
		update.Location = &fraud.LocationRulesUpdate{MaxDistanceKm: &d}
	}

	if len(o.SuspiciousHours) > 0 {
		update.Time = &fraud.TimeRulesUpdate{SuspiciousHours: o.SuspiciousHours}
	}

	if len(o.Weights) > 0 {
		update.Weights = make(map[risk.CheckType]float64, len(o.Weights))
		for name, w := range o.Weights {
			ct := risk.CheckType(name)
			if !ct.IsValid() {
				return fraud.RuleConfiguration{}, fmt.Errorf("unknown check type %q in weights", name)
			}
			update.Weights[ct] = w
		}
	}

	if update.IsEmpty() {
		return base, nil
	}
	return base.Merge(update)
}
