package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord is a historical transaction used for behavioural baselines
type TransactionRecord struct {
	ID            string          `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Country       string          `json:"country,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// TransactionTotals aggregates count and amount over a time window
type TransactionTotals struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// KnownLocation is a location the user has transacted from repeatedly
type KnownLocation struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Country     string  `json:"country"`
	City        string  `json:"city,omitempty"`
	Occurrences int     `json:"occurrences"`
}

// KnownDevice is a device fingerprint previously seen for the user
type KnownDevice struct {
	Fingerprint string    `json:"fingerprint"`
	UserAgent   string    `json:"user_agent,omitempty"`
	Trusted     bool      `json:"trusted"`
	LastSeen    time.Time `json:"last_seen"`
}

// BlacklistType is the category of a blacklist entry
type BlacklistType string

const (
	BlacklistEmail BlacklistType = "email"
	BlacklistIP    BlacklistType = "ip"
	BlacklistCard  BlacklistType = "card"
)

// Violation returns the tag recorded when a value of this type is blacklisted
func (b BlacklistType) Violation() string {
	return "blacklisted_" + string(b)
}

// Page bounds a paginated listing
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Pagination limits
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize applies defaults and caps
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Statistics summarises a tenant's assessments over a window
type Statistics struct {
	Since                 time.Time     `json:"since"`
	Total                 int           `json:"total"`
	ByLevel               map[Level]int `json:"by_level"`
	AverageScore          float64       `json:"average_score"`
	AverageProcessingTime time.Duration `json:"average_processing_time"`
	FailSafeCount         int           `json:"fail_safe_count"`
}
