package risk

import (
	"time"

	"github.com/google/uuid"
)

// CheckType identifies one of the independent risk checks
type CheckType string

const (
	CheckVelocity   CheckType = "velocity"
	CheckAmount     CheckType = "amount"
	CheckTime       CheckType = "time"
	CheckLocation   CheckType = "location"
	CheckDevice     CheckType = "device"
	CheckBehavioral CheckType = "behavioral"
	CheckBlacklist  CheckType = "blacklist"
)

// AllCheckTypes lists every check in evaluation order
var AllCheckTypes = []CheckType{
	CheckVelocity,
	CheckAmount,
	CheckTime,
	CheckLocation,
	CheckDevice,
	CheckBehavioral,
	CheckBlacklist,
}

func (c CheckType) String() string { return string(c) }

// IsValid reports whether c is a known check type
func (c CheckType) IsValid() bool {
	for _, t := range AllCheckTypes {
		if t == c {
			return true
		}
	}
	return false
}

// MaxScore is the upper bound of every score in the engine
const MaxScore = 100

// CheckResult is the outcome of a single check
type CheckResult struct {
	Type       CheckType              `json:"type"`
	Score      int                    `json:"score"`
	Violations []string               `json:"violations"`
	Metrics    map[string]interface{} `json:"metrics,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// NewCheckResult returns an empty zero-score result for t
func NewCheckResult(t CheckType) *CheckResult {
	return &CheckResult{
		Type:       t,
		Violations: []string{},
		Metrics:    make(map[string]interface{}),
	}
}

// Add raises the score by points, records the violation once, and clamps to MaxScore
func (r *CheckResult) Add(points int, violation string) {
	r.Score = ClampScore(r.Score + points)
	for _, v := range r.Violations {
		if v == violation {
			return
		}
	}
	r.Violations = append(r.Violations, violation)
}

// Failed reports whether the check degraded instead of completing
func (r *CheckResult) Failed() bool {
	return r.Error != ""
}

// FailedCheckResult is what a check contributes when it cannot complete
func FailedCheckResult(t CheckType, err error) *CheckResult {
	r := NewCheckResult(t)
	r.Error = err.Error()
	return r
}

// ClampScore bounds score to [0, MaxScore]
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// Level represents the categorical risk of an assessment
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Level thresholds (inclusive lower bounds)
const (
	CriticalThreshold = 80
	HighThreshold     = 60
	MediumThreshold   = 30
)

// LevelFromScore maps an aggregate score to a risk level
func LevelFromScore(score int) Level {
	switch {
	case score >= CriticalThreshold:
		return LevelCritical
	case score >= HighThreshold:
		return LevelHigh
	case score >= MediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// RequiresAlert reports whether the level triggers an alert
func (l Level) RequiresAlert() bool {
	return l == LevelHigh || l == LevelCritical
}

func (l Level) IsValid() bool {
	switch l {
	case LevelLow, LevelMedium, LevelHigh, LevelCritical:
		return true
	}
	return false
}

// FailSafe defaults applied when an assessment cannot be computed
const (
	FailSafeScore     = 50
	FailSafeViolation = "fraud_detection_error"
)

// Assessment is the persisted, sealed outcome of scoring one payment attempt
type Assessment struct {
	ID             uuid.UUID      `json:"id"`
	TenantID       uuid.UUID      `json:"tenant_id"`
	UserID         uuid.UUID      `json:"user_id"`
	TransactionID  string         `json:"transaction_id"`
	RiskScore      int            `json:"risk_score"`
	RiskLevel      Level          `json:"risk_level"`
	Violations     []string       `json:"violations"`
	Checks         []*CheckResult `json:"checks"`
	ProcessingTime time.Duration  `json:"processing_time"`
	CreatedAt      time.Time      `json:"created_at"`
	Error          string         `json:"error,omitempty"`
}

// NewFailSafeAssessment builds the conservative default used when scoring fails
func NewFailSafeAssessment(id uuid.UUID, attempt *PaymentAttempt, cause error, started, now time.Time) *Assessment {
	a := &Assessment{
		ID:             id,
		TransactionID:  PendingTransactionID,
		RiskScore:      FailSafeScore,
		RiskLevel:      LevelMedium,
		Violations:     []string{FailSafeViolation},
		Checks:         []*CheckResult{},
		ProcessingTime: now.Sub(started),
		CreatedAt:      now,
	}
	if cause != nil {
		a.Error = cause.Error()
	}
	if attempt != nil {
		a.TenantID = attempt.TenantID
		a.UserID = attempt.UserID
		a.TransactionID = attempt.EffectiveTransactionID()
	}
	return a
}

// IsFailSafe reports whether the assessment is the fail-safe default
func (a *Assessment) IsFailSafe() bool {
	return a.Error != "" && len(a.Checks) == 0
}

// Check returns the result for t, or nil when absent
func (a *Assessment) Check(t CheckType) *CheckResult {
	for _, c := range a.Checks {
		if c.Type == t {
			return c
		}
	}
	return nil
}

// Alert is raised for high and critical assessments. Alerts are append-only.
type Alert struct {
	ID           uuid.UUID `json:"id"`
	AssessmentID uuid.UUID `json:"assessment_id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	UserID       uuid.UUID `json:"user_id"`
	RiskScore    int       `json:"risk_score"`
	RiskLevel    Level     `json:"risk_level"`
	Violations   []string  `json:"violations"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewAlert derives an alert from an assessment
func NewAlert(a *Assessment, now time.Time) *Alert {
	violations := make([]string, len(a.Violations))
	copy(violations, a.Violations)
	return &Alert{
		ID:           uuid.New(),
		AssessmentID: a.ID,
		TenantID:     a.TenantID,
		UserID:       a.UserID,
		RiskScore:    a.RiskScore,
		RiskLevel:    a.RiskLevel,
		Violations:   violations,
		CreatedAt:    now,
	}
}
