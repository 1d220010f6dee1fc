package risk

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/errors"
	"github.com/davidleathers/fraud-risk-engine/internal/domain/values"
)

// PendingTransactionID is recorded when an attempt has no provider transaction yet
const PendingTransactionID = "pending"

// PaymentAttempt is the immutable input to a risk assessment
type PaymentAttempt struct {
	TenantID        uuid.UUID       `json:"tenant_id"`
	UserID          uuid.UUID       `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentMethodID string          `json:"payment_method_id,omitempty"`
	TransactionID   string          `json:"transaction_id,omitempty"`
	IPAddress       string          `json:"ip_address,omitempty"`
	Device          *Device         `json:"device,omitempty"`
	Location        *Location       `json:"location,omitempty"`
}

// Device carries the client fingerprint and network signals
type Device struct {
	Fingerprint string `json:"fingerprint"`
	UserAgent   string `json:"user_agent"`
	IsVPN       bool   `json:"is_vpn"`
	IsProxy     bool   `json:"is_proxy"`
}

// Location is the geolocated origin of the attempt
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country"`
}

// Validate rejects attempts that cannot be assessed at all
func (a *PaymentAttempt) Validate() error {
	if a == nil {
		return errors.NewValidationError("MISSING_ATTEMPT", "payment attempt is required")
	}
	if a.TenantID == uuid.Nil {
		return errors.NewValidationError("MISSING_TENANT", "tenant ID is required")
	}
	if a.UserID == uuid.Nil {
		return errors.NewValidationError("MISSING_USER", "user ID is required")
	}
	if !a.Amount.IsPositive() {
		return errors.NewValidationError("INVALID_AMOUNT", "amount must be greater than zero").
			WithDetails(map[string]interface{}{"amount": a.Amount.String()})
	}
	if a.Location != nil {
		if _, err := values.NewCoordinates(a.Location.Latitude, a.Location.Longitude); err != nil {
			return errors.NewValidationError("INVALID_LOCATION", "location coordinates are out of range").WithCause(err)
		}
	}
	return nil
}

// EffectiveTransactionID returns the transaction ID or the pending marker
func (a *PaymentAttempt) EffectiveTransactionID() string {
	if strings.TrimSpace(a.TransactionID) == "" {
		return PendingTransactionID
	}
	return a.TransactionID
}

// PaymentContext is user information resolved from the tenant's store.
// Zero-valued fields mean resolution failed or the user is unknown.
type PaymentContext struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email,omitempty"`
	Name   string    `json:"name,omitempty"`
	Role   string    `json:"role,omitempty"`
}
