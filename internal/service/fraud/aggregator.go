package fraud

import (
	"math"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
)

// Aggregation is the combined outcome of all check results
type Aggregation struct {
	Score      int
	Level      risk.Level
	Violations []string
}

// Aggregate combines check results into one score and level.
//
// The score is the weighted average over checks that scored above zero.
// Quiet checks are left out of both numerator and denominator so a single
// triggered signal is not diluted by the others.
func Aggregate(checks []*risk.CheckResult, rules RuleConfiguration) Aggregation {
	var weightedSum, weightTotal float64
	blacklisted := false

	for _, c := range checks {
		if c == nil || c.Score <= 0 {
			continue
		}
		if c.Type == risk.CheckBlacklist && c.Score >= risk.MaxScore {
			blacklisted = true
		}
		w := rules.Weight(c.Type)
		weightedSum += float64(c.Score) * w
		weightTotal += w
	}

	score := 0
	if weightTotal > 0 {
		score = risk.ClampScore(int(math.Round(weightedSum / weightTotal)))
	}

	if blacklisted && rules.BlacklistForcesCritical && score < risk.CriticalThreshold {
		score = risk.CriticalThreshold
	}

	return Aggregation{
		Score:      score,
		Level:      risk.LevelFromScore(score),
		Violations: mergeViolations(checks),
	}
}

// mergeViolations returns the union of violations in first-seen order
func mergeViolations(checks []*risk.CheckResult) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, c := range checks {
		if c == nil {
			continue
		}
		for _, v := range c.Violations {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
