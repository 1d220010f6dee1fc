package fraud

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/errors"
	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
)

// RuleConfiguration holds every tunable threshold and weight. Values are
// treated as immutable once published through a RuleManager.
type RuleConfiguration struct {
	Velocity VelocityRules              `json:"velocity"`
	Amount   AmountRules                `json:"amount"`
	Time     TimeRules                  `json:"time"`
	Location LocationRules              `json:"location"`
	Device   DeviceRules                `json:"device"`
	Weights  map[risk.CheckType]float64 `json:"weights"`

	// BlacklistForcesCritical raises any assessment with a blacklist hit to
	// critical with a score of at least the critical threshold.
	BlacklistForcesCritical bool `json:"blacklist_forces_critical"`
}

type VelocityRules struct {
	MaxTransactionsPerHour int             `json:"max_transactions_per_hour"`
	MaxAmountPerHour       decimal.Decimal `json:"max_amount_per_hour"`
	MaxTransactionsPerDay  int             `json:"max_transactions_per_day"`
	MaxAmountPerDay        decimal.Decimal `json:"max_amount_per_day"`
}

type AmountRules struct {
	SuspiciousThreshold decimal.Decimal `json:"suspicious_threshold"`
	HighRiskThreshold   decimal.Decimal `json:"high_risk_threshold"`
}

type TimeRules struct {
	SuspiciousHours   []int   `json:"suspicious_hours"`
	WeekendMultiplier float64 `json:"weekend_multiplier"`
}

type LocationRules struct {
	MaxDistanceKm        float64 `json:"max_distance_km"`
	NewCountryMultiplier float64 `json:"new_country_multiplier"`
}

type DeviceRules struct {
	NewDeviceMultiplier  float64 `json:"new_device_multiplier"`
	AutomationMultiplier float64 `json:"automation_multiplier"`
	AnonymizerMultiplier float64 `json:"anonymizer_multiplier"`
}

// RuleUpdate is a partial update. Nil sections and nil fields are left
// untouched. A non-nil Weights map replaces the stored weights wholesale.
type RuleUpdate struct {
	Velocity                *VelocityRulesUpdate       `json:"velocity,omitempty"`
	Amount                  *AmountRulesUpdate         `json:"amount,omitempty"`
	Time                    *TimeRulesUpdate           `json:"time,omitempty"`
	Location                *LocationRulesUpdate       `json:"location,omitempty"`
	Device                  *DeviceRulesUpdate         `json:"device,omitempty"`
	Weights                 map[risk.CheckType]float64 `json:"weights,omitempty"`
	BlacklistForcesCritical *bool                      `json:"blacklist_forces_critical,omitempty"`
}

type VelocityRulesUpdate struct {
	MaxTransactionsPerHour *int             `json:"max_transactions_per_hour,omitempty"`
	MaxAmountPerHour       *decimal.Decimal `json:"max_amount_per_hour,omitempty"`
	MaxTransactionsPerDay  *int             `json:"max_transactions_per_day,omitempty"`
	MaxAmountPerDay        *decimal.Decimal `json:"max_amount_per_day,omitempty"`
}

type AmountRulesUpdate struct {
	SuspiciousThreshold *decimal.Decimal `json:"suspicious_threshold,omitempty"`
	HighRiskThreshold   *decimal.Decimal `json:"high_risk_threshold,omitempty"`
}

// TimeRulesUpdate replaces SuspiciousHours when the slice is non-nil
type TimeRulesUpdate struct {
	SuspiciousHours   []int    `json:"suspicious_hours,omitempty"`
	WeekendMultiplier *float64 `json:"weekend_multiplier,omitempty"`
}

type LocationRulesUpdate struct {
	MaxDistanceKm        *float64 `json:"max_distance_km,omitempty"`
	NewCountryMultiplier *float64 `json:"new_country_multiplier,omitempty"`
}

type DeviceRulesUpdate struct {
	NewDeviceMultiplier  *float64 `json:"new_device_multiplier,omitempty"`
	AutomationMultiplier *float64 `json:"automation_multiplier,omitempty"`
	AnonymizerMultiplier *float64 `json:"anonymizer_multiplier,omitempty"`
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (u VelocityRulesUpdate) apply(r VelocityRules) VelocityRules {
	setIf(&r.MaxTransactionsPerHour, u.MaxTransactionsPerHour)
	setIf(&r.MaxAmountPerHour, u.MaxAmountPerHour)
	setIf(&r.MaxTransactionsPerDay, u.MaxTransactionsPerDay)
	setIf(&r.MaxAmountPerDay, u.MaxAmountPerDay)
	return r
}

func (u AmountRulesUpdate) apply(r AmountRules) AmountRules {
	setIf(&r.SuspiciousThreshold, u.SuspiciousThreshold)
	setIf(&r.HighRiskThreshold, u.HighRiskThreshold)
	return r
}

func (u TimeRulesUpdate) apply(r TimeRules) TimeRules {
	if u.SuspiciousHours != nil {
		r.SuspiciousHours = append([]int{}, u.SuspiciousHours...)
	}
	setIf(&r.WeekendMultiplier, u.WeekendMultiplier)
	return r
}

func (u LocationRulesUpdate) apply(r LocationRules) LocationRules {
	setIf(&r.MaxDistanceKm, u.MaxDistanceKm)
	setIf(&r.NewCountryMultiplier, u.NewCountryMultiplier)
	return r
}

func (u DeviceRulesUpdate) apply(r DeviceRules) DeviceRules {
	setIf(&r.NewDeviceMultiplier, u.NewDeviceMultiplier)
	setIf(&r.AutomationMultiplier, u.AutomationMultiplier)
	setIf(&r.AnonymizerMultiplier, u.AnonymizerMultiplier)
	return r
}

// IsEmpty reports whether the update changes nothing
func (u RuleUpdate) IsEmpty() bool {
	return u.Velocity == nil && u.Amount == nil && u.Time == nil && u.Location == nil &&
		u.Device == nil && u.Weights == nil && u.BlacklistForcesCritical == nil
}

// DefaultRules returns the built-in rule configuration
func DefaultRules() RuleConfiguration {
	return RuleConfiguration{
		Velocity: VelocityRules{
			MaxTransactionsPerHour: 10,
			MaxAmountPerHour:       decimal.NewFromInt(10000),
			MaxTransactionsPerDay:  50,
			MaxAmountPerDay:        decimal.NewFromInt(50000),
		},
		Amount: AmountRules{
			SuspiciousThreshold: decimal.NewFromInt(10000),
			HighRiskThreshold:   decimal.NewFromInt(50000),
		},
		Time: TimeRules{
			SuspiciousHours:   []int{0, 1, 2, 3, 4, 5},
			WeekendMultiplier: 1.0,
		},
		Location: LocationRules{
			MaxDistanceKm:        1000,
			NewCountryMultiplier: 1.0,
		},
		Device: DeviceRules{
			NewDeviceMultiplier:  1.0,
			AutomationMultiplier: 1.0,
			AnonymizerMultiplier: 1.0,
		},
		Weights: map[risk.CheckType]float64{
			risk.CheckVelocity:   0.25,
			risk.CheckAmount:     0.20,
			risk.CheckLocation:   0.15,
			risk.CheckDevice:     0.15,
			risk.CheckBehavioral: 0.15,
			risk.CheckTime:       0.05,
			risk.CheckBlacklist:  0.05,
		},
		BlacklistForcesCritical: true,
	}
}

// Clone returns a deep copy so callers can never mutate a published snapshot
func (c RuleConfiguration) Clone() RuleConfiguration {
	out := c
	out.Time.SuspiciousHours = append([]int(nil), c.Time.SuspiciousHours...)
	out.Weights = make(map[risk.CheckType]float64, len(c.Weights))
	for k, v := range c.Weights {
		out.Weights[k] = v
	}
	return out
}

// Weight returns the configured weight for t (zero when unset)
func (c RuleConfiguration) Weight(t risk.CheckType) float64 {
	return c.Weights[t]
}

// IsSuspiciousHour reports whether hour is in the suspicious set
func (t TimeRules) IsSuspiciousHour(hour int) bool {
	for _, h := range t.SuspiciousHours {
		if h == hour {
			return true
		}
	}
	return false
}

// Validate checks the whole configuration
func (c RuleConfiguration) Validate() error {
	if err := validateWeights(c.Weights); err != nil {
		return err
	}
	if c.Velocity.MaxTransactionsPerHour < 0 || c.Velocity.MaxTransactionsPerDay < 0 {
		return errors.NewValidationError("INVALID_VELOCITY_RULES", "velocity limits cannot be negative")
	}
	if c.Velocity.MaxAmountPerHour.IsNegative() || c.Velocity.MaxAmountPerDay.IsNegative() {
		return errors.NewValidationError("INVALID_VELOCITY_RULES", "velocity amount limits cannot be negative")
	}
	if c.Amount.SuspiciousThreshold.IsNegative() || c.Amount.HighRiskThreshold.IsNegative() {
		return errors.NewValidationError("INVALID_AMOUNT_RULES", "amount thresholds cannot be negative")
	}
	if c.Amount.HighRiskThreshold.LessThan(c.Amount.SuspiciousThreshold) {
		return errors.NewValidationError("INVALID_AMOUNT_RULES", "high-risk threshold must not be below suspicious threshold")
	}
	for _, h := range c.Time.SuspiciousHours {
		if h < 0 || h > 23 {
			return errors.NewValidationError("INVALID_TIME_RULES", fmt.Sprintf("suspicious hour %d out of range [0, 23]", h))
		}
	}
	if c.Location.MaxDistanceKm < 0 {
		return errors.NewValidationError("INVALID_LOCATION_RULES", "max distance cannot be negative")
	}
	multipliers := map[string]float64{
		"weekend_multiplier":     c.Time.WeekendMultiplier,
		"new_country_multiplier": c.Location.NewCountryMultiplier,
		"new_device_multiplier":  c.Device.NewDeviceMultiplier,
		"automation_multiplier":  c.Device.AutomationMultiplier,
		"anonymizer_multiplier":  c.Device.AnonymizerMultiplier,
	}
	for name, m := range multipliers {
		if m < 0 || math.IsNaN(m) || math.IsInf(m, 0) {
			return errors.NewValidationError("INVALID_MULTIPLIER", fmt.Sprintf("%s must be a non-negative number", name))
		}
	}
	return nil
}

func validateWeights(weights map[risk.CheckType]float64) error {
	sum := 0.0
	for t, w := range weights {
		if !t.IsValid() {
			return errors.NewValidationError("UNKNOWN_CHECK_TYPE", fmt.Sprintf("unknown check type %q", t))
		}
		if w < 0 || w > 1 || math.IsNaN(w) {
			return errors.NewValidationError("INVALID_WEIGHT", fmt.Sprintf("weight for %s must be within [0, 1]", t))
		}
		sum += w
	}
	if math.Abs(sum-1.0) > WeightSumTolerance {
		return errors.NewValidationError("INVALID_WEIGHT_SUM", fmt.Sprintf("weights must sum to 1.0, got %.4f", sum)).
			WithDetails(map[string]interface{}{"sum": sum})
	}
	return nil
}

// Merge applies u on top of c and returns the result. c is not modified.
func (c RuleConfiguration) Merge(u RuleUpdate) (RuleConfiguration, error) {
	if u.Weights != nil {
		if err := validateWeights(u.Weights); err != nil {
			return RuleConfiguration{}, err
		}
	}

	out := c.Clone()
	if u.Velocity != nil {
		out.Velocity = u.Velocity.apply(out.Velocity)
	}
	if u.Amount != nil {
		out.Amount = u.Amount.apply(out.Amount)
	}
	if u.Time != nil {
		out.Time = u.Time.apply(out.Time)
	}
	if u.Location != nil {
		out.Location = u.Location.apply(out.Location)
	}
	if u.Device != nil {
		out.Device = u.Device.apply(out.Device)
	}
	if u.Weights != nil {
		out.Weights = make(map[risk.CheckType]float64, len(u.Weights))
		for t, w := range u.Weights {
			out.Weights[t] = w
		}
	}
	if u.BlacklistForcesCritical != nil {
		out.BlacklistForcesCritical = *u.BlacklistForcesCritical
	}

	if err := out.Validate(); err != nil {
		return RuleConfiguration{}, err
	}
	return out, nil
}

// RuleRepository persists the active rule configuration
type RuleRepository interface {
	// LoadRules returns the stored configuration, or found=false when none exists
	LoadRules(ctx context.Context) (rules RuleConfiguration, found bool, err error)
	// SaveRules stores the configuration
	SaveRules(ctx context.Context, rules RuleConfiguration) error
}

// RuleManager publishes rule snapshots. Reads are lock-free; writers are
// serialised so a merge is never computed from a stale base.
type RuleManager struct {
	current atomic.Pointer[RuleConfiguration]
	writeMu sync.Mutex
	repo    RuleRepository
}

// NewRuleManager creates a manager seeded with initial. repo may be nil.
func NewRuleManager(initial RuleConfiguration, repo RuleRepository) (*RuleManager, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	m := &RuleManager{repo: repo}
	snapshot := initial.Clone()
	m.current.Store(&snapshot)
	return m, nil
}

// Load replaces the in-memory rules with the persisted ones, if any
func (m *RuleManager) Load(ctx context.Context) (bool, error) {
	if m.repo == nil {
		return false, nil
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	stored, found, err := m.repo.LoadRules(ctx)
	if err != nil {
		return false, errors.NewInternalError("failed to load fraud rules").WithCause(err)
	}
	if !found {
		return false, nil
	}
	if err := stored.Validate(); err != nil {
		return false, err
	}
	snapshot := stored.Clone()
	m.current.Store(&snapshot)
	return true, nil
}

// Rules returns a private copy of the active configuration
func (m *RuleManager) Rules() RuleConfiguration {
	return m.current.Load().Clone()
}

// Update validates and applies u. On any failure the active rules are unchanged.
func (m *RuleManager) Update(ctx context.Context, u RuleUpdate) (RuleConfiguration, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	merged, err := m.current.Load().Merge(u)
	if err != nil {
		return RuleConfiguration{}, err
	}

	if m.repo != nil {
		if err := m.repo.SaveRules(ctx, merged); err != nil {
			return RuleConfiguration{}, errors.NewInternalError("failed to persist fraud rules").WithCause(err)
		}
	}

	snapshot := merged.Clone()
	m.current.Store(&snapshot)
	return merged, nil
}
