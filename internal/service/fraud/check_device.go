package fraud

import (
	"context"
	"fmt"
	"strings"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
)

// DeviceCheck looks for new fingerprints, automation and anonymising networks
type DeviceCheck struct {
	store MetricsStore
}

func NewDeviceCheck(store MetricsStore) *DeviceCheck {
	return &DeviceCheck{store: store}
}

func (c *DeviceCheck) Type() risk.CheckType { return risk.CheckDevice }

func (c *DeviceCheck) Evaluate(ctx context.Context, in *Evaluation) (*risk.CheckResult, error) {
	result := risk.NewCheckResult(risk.CheckDevice)
	device := in.Attempt.Device
	if device == nil {
		result.Metrics["deviceAvailable"] = false
		return result, nil
	}
	result.Metrics["deviceAvailable"] = true
	rules := in.Rules.Device

	history, err := c.store.DeviceHistory(ctx, in.Attempt.TenantID, in.Attempt.UserID)
	if err != nil {
		return nil, fmt.Errorf("device history: %w", err)
	}

	known := false
	for _, d := range history {
		if d.Fingerprint == device.Fingerprint {
			known = true
			break
		}
	}
	if !known {
		result.Add(scaled(DeviceNewPoints, rules.NewDeviceMultiplier), ViolationNewDevice)
	}

	if marker, ok := automationMarker(device.UserAgent); ok {
		result.Add(scaled(DeviceAutomationPoints, rules.AutomationMultiplier), ViolationAutomatedUserAgent)
		result.Metrics["automationMarker"] = marker
	}

	if device.IsVPN || device.IsProxy {
		result.Add(scaled(DeviceAnonymizerPoints, rules.AnonymizerMultiplier), ViolationVPNOrProxy)
	}

	result.Metrics["knownDevices"] = len(history)
	return result, nil
}

// automationMarker returns the first automation marker found in ua
func automationMarker(ua string) (string, bool) {
	lower := strings.ToLower(ua)
	for _, m := range automationMarkers {
		if strings.Contains(lower, m) {
			return m, true
		}
	}
	return "", false
}
