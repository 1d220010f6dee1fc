package rest

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
)

// AssessmentRequest is the body of POST /api/v1/assessments
type AssessmentRequest struct {
	TenantID        string           `json:"tenant_id" validate:"required,uuid"`
	UserID          string           `json:"user_id" validate:"required,uuid"`
	Amount          decimal.Decimal  `json:"amount"`
	Currency        string           `json:"currency" validate:"omitempty,len=3"`
	PaymentMethod   string           `json:"payment_method" validate:"required,max=64"`
	PaymentMethodID string           `json:"payment_method_id,omitempty" validate:"omitempty,max=256"`
	TransactionID   string           `json:"transaction_id,omitempty" validate:"omitempty,max=128"`
	IPAddress       string           `json:"ip_address,omitempty" validate:"omitempty,ip"`
	Device          *DeviceRequest   `json:"device,omitempty"`
	Location        *LocationRequest `json:"location,omitempty"`
}

type DeviceRequest struct {
	Fingerprint string `json:"fingerprint" validate:"required,max=256"`
	UserAgent   string `json:"user_agent" validate:"max=1024"`
	IsVPN       bool   `json:"is_vpn"`
	IsProxy     bool   `json:"is_proxy"`
}

type LocationRequest struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Country   string  `json:"country" validate:"omitempty,len=2"`
}

// ToAttempt converts a validated request. Amount positivity is left to
// the domain validation so both entry points share one rule.
func (r *AssessmentRequest) ToAttempt() *risk.PaymentAttempt {
	attempt := &risk.PaymentAttempt{
		TenantID:        uuid.MustParse(r.TenantID),
		UserID:          uuid.MustParse(r.UserID),
		Amount:          r.Amount,
		Currency:        strings.ToUpper(r.Currency),
		PaymentMethod:   r.PaymentMethod,
		PaymentMethodID: r.PaymentMethodID,
		TransactionID:   r.TransactionID,
		IPAddress:       r.IPAddress,
	}
	if r.Device != nil {
		attempt.Device = &risk.Device{
			Fingerprint: r.Device.Fingerprint,
			UserAgent:   r.Device.UserAgent,
			IsVPN:       r.Device.IsVPN,
			IsProxy:     r.Device.IsProxy,
		}
	}
	if r.Location != nil {
		attempt.Location = &risk.Location{
			Latitude:  r.Location.Latitude,
			Longitude: r.Location.Longitude,
			Country:   strings.ToUpper(r.Location.Country),
		}
	}
	return attempt
}
