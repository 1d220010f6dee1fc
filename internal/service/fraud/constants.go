package fraud

import "time"

// Execution limits
const (
	// DefaultCheckTimeout bounds each individual check
	DefaultCheckTimeout = 300 * time.Millisecond

	// WeightSumTolerance is the allowed deviation of the weight sum from 1.0
	WeightSumTolerance = 0.01
)

// Velocity windows and score contributions
const (
	VelocityHourWindow = time.Hour
	VelocityDayWindow  = 24 * time.Hour

	VelocityHourlyCountPoints  = 30
	VelocityHourlyAmountPoints = 25
	VelocityDailyCountPoints   = 20
	VelocityDailyAmountPoints  = 15
)

// Amount check contributions
const (
	AmountHighRiskScore    = 80
	AmountSuspiciousScore  = 40
	AmountRoundPoints      = 10
	AmountPrecisionPoints  = 5
	AmountRoundDivisor     = 100
	AmountRoundMinimum     = 1000
	AmountMaxDecimalPlaces = 2
)

// Time check contributions
const (
	TimeSuspiciousHourPoints = 20
	TimeWeekendPoints        = 10
	TimeFirstTodayPoints     = 5
)

// Location check contributions
const (
	LocationFirstPoints      = 10
	LocationUnusualPoints    = 30
	LocationNewCountryPoints = 25
)

// Device check contributions
const (
	DeviceNewPoints        = 20
	DeviceAutomationPoints = 40
	DeviceAnonymizerPoints = 30
)

// Behavioral check parameters
const (
	BehavioralHistoryWindow      = 30 * 24 * time.Hour
	BehavioralRapidWindow        = 5 * time.Minute
	BehavioralRapidThreshold     = 3
	BehavioralDeviationThreshold = 2.0

	BehavioralAmountPoints = 25
	BehavioralRapidPoints  = 35
	BehavioralMethodPoints = 15
)

// Violation tags
const (
	ViolationHighHourlyVelocity   = "high_hourly_velocity"
	ViolationHighHourlyAmount     = "high_hourly_amount"
	ViolationHighDailyVelocity    = "high_daily_velocity"
	ViolationHighDailyAmount      = "high_daily_amount"
	ViolationHighRiskAmount       = "high_risk_amount"
	ViolationSuspiciousAmount     = "suspicious_amount"
	ViolationRoundAmount          = "round_amount"
	ViolationUnusualPrecision     = "unusual_precision"
	ViolationSuspiciousHour       = "suspicious_hour"
	ViolationWeekendTransaction   = "weekend_transaction"
	ViolationFirstTransactionDay  = "first_transaction_today"
	ViolationFirstLocation        = "first_location"
	ViolationUnusualLocation      = "unusual_location"
	ViolationNewCountry           = "new_country"
	ViolationNewDevice            = "new_device"
	ViolationAutomatedUserAgent   = "automated_user_agent"
	ViolationVPNOrProxy           = "vpn_or_proxy"
	ViolationUnusualAmount        = "unusual_amount"
	ViolationRapidPayments        = "rapid_successive_payments"
	ViolationUnusualPaymentMethod = "unusual_payment_method"
)

// automationMarkers are matched case-insensitively against the user agent
var automationMarkers = []string{
	"bot",
	"crawler",
	"spider",
	"scraper",
	"headless",
	"phantom",
	"selenium",
}
