package fraud

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
	"github.com/davidleathers/fraud-risk-engine/internal/domain/values"
)

// BlacklistCheck matches the resolved email, the IP and the payment method
// against the blacklist. A single hit is definitive.
type BlacklistCheck struct {
	store MetricsStore
}

func NewBlacklistCheck(store MetricsStore) *BlacklistCheck {
	return &BlacklistCheck{store: store}
}

func (c *BlacklistCheck) Type() risk.CheckType { return risk.CheckBlacklist }

type blacklistLookup struct {
	listType risk.BlacklistType
	value    string
}

func (c *BlacklistCheck) Evaluate(ctx context.Context, in *Evaluation) (*risk.CheckResult, error) {
	result := risk.NewCheckResult(risk.CheckBlacklist)

	var lookups []blacklistLookup
	if in.Context != nil && strings.TrimSpace(in.Context.Email) != "" {
		lookups = append(lookups, blacklistLookup{risk.BlacklistEmail, values.NormalizeEmail(in.Context.Email)})
	}
	if ip := values.NormalizeIP(in.Attempt.IPAddress); ip != "" {
		lookups = append(lookups, blacklistLookup{risk.BlacklistIP, ip})
	}
	if card := strings.TrimSpace(in.Attempt.PaymentMethodID); card != "" {
		lookups = append(lookups, blacklistLookup{risk.BlacklistCard, card})
	}

	var lookupErrs []error
	for _, l := range lookups {
		hit, err := c.store.IsBlacklisted(ctx, l.listType, l.value)
		if err != nil {
			lookupErrs = append(lookupErrs, fmt.Errorf("%s lookup: %w", l.listType, err))
			continue
		}
		if hit {
			result.Score = risk.MaxScore
			result.Add(0, l.listType.Violation())
		}
	}

	result.Metrics["lookups"] = len(lookups)

	// a confirmed hit stands even if another lookup failed
	if len(lookupErrs) > 0 {
		if result.Score == risk.MaxScore {
			result.Metrics["lookupErrors"] = errors.Join(lookupErrs...).Error()
			return result, nil
		}
		return nil, errors.Join(lookupErrs...)
	}
	return result, nil
}
