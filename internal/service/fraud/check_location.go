package fraud

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
	"github.com/davidleathers/fraud-risk-engine/internal/domain/values"
)

// LocationCheck compares the attempt's origin with the user's usual locations
type LocationCheck struct {
	store MetricsStore
}

func NewLocationCheck(store MetricsStore) *LocationCheck {
	return &LocationCheck{store: store}
}

func (c *LocationCheck) Type() risk.CheckType { return risk.CheckLocation }

func (c *LocationCheck) Evaluate(ctx context.Context, in *Evaluation) (*risk.CheckResult, error) {
	result := risk.NewCheckResult(risk.CheckLocation)
	loc := in.Attempt.Location
	if loc == nil {
		result.Metrics["locationAvailable"] = false
		return result, nil
	}
	result.Metrics["locationAvailable"] = true

	usual, err := c.store.UsualLocations(ctx, in.Attempt.TenantID, in.Attempt.UserID)
	if err != nil {
		return nil, fmt.Errorf("usual locations: %w", err)
	}
	if len(usual) == 0 {
		result.Add(LocationFirstPoints, ViolationFirstLocation)
		return result, nil
	}

	origin, err := values.NewCoordinates(loc.Latitude, loc.Longitude)
	if err != nil {
		return nil, err
	}

	minDistance := math.Inf(1)
	countries := make(map[string]struct{}, len(usual))
	for _, u := range usual {
		countries[strings.ToUpper(u.Country)] = struct{}{}

		known, err := values.NewCoordinates(u.Latitude, u.Longitude)
		if err != nil {
			// a corrupt stored row must not hide the rest of the history
			continue
		}
		if d := origin.DistanceTo(known); d < minDistance {
			minDistance = d
		}
	}

	if !math.IsInf(minDistance, 1) {
		result.Metrics["minDistanceKm"] = math.Round(minDistance*100) / 100
		if minDistance > in.Rules.Location.MaxDistanceKm {
			result.Add(LocationUnusualPoints, ViolationUnusualLocation)
		}
	}

	if _, seen := countries[strings.ToUpper(loc.Country)]; !seen {
		result.Add(scaled(LocationNewCountryPoints, in.Rules.Location.NewCountryMultiplier), ViolationNewCountry)
	}

	result.Metrics["usualLocations"] = len(usual)
	return result, nil
}
