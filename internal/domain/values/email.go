package values

import (
	"fmt"
	"net/mail"
	"strings"
)

const maxEmailLength = 254

// Email is a validated, lower-cased address
type Email struct {
	address string
}

// NewEmail parses and canonicalises address. Display names are rejected so
// the stored value is always a bare address.
func NewEmail(address string) (Email, error) {
	normalized := canonicalEmail(address)
	if normalized == "" {
		return Email{}, fmt.Errorf("email address cannot be empty")
	}
	if len(normalized) > maxEmailLength {
		return Email{}, fmt.Errorf("email address too long (max %d characters)", maxEmailLength)
	}

	parsed, err := mail.ParseAddress(normalized)
	if err != nil {
		return Email{}, fmt.Errorf("invalid email format: %w", err)
	}
	if parsed.Address != normalized {
		return Email{}, fmt.Errorf("invalid email format: %q is not a bare address", address)
	}
	if !strings.Contains(parsed.Address[strings.LastIndexByte(parsed.Address, '@')+1:], ".") {
		return Email{}, fmt.Errorf("invalid email format: domain has no dot")
	}

	return Email{address: parsed.Address}, nil
}

func (e Email) String() string { return e.address }

func canonicalEmail(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// NormalizeEmail returns the key used for blacklist lookups. Values that
// fail validation are still trimmed and lower-cased so stored entries
// match regardless of format.
func NormalizeEmail(address string) string {
	if e, err := NewEmail(address); err == nil {
		return e.address
	}
	return canonicalEmail(address)
}
