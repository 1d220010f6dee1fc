package values

import (
	"net/netip"
	"strings"
)

// NormalizeIP returns the key used for blacklist lookups. Parseable
// addresses use their canonical text form, with IPv4-mapped IPv6 unmapped.
// Anything else is only trimmed.
func NormalizeIP(raw string) string {
	trimmed := strings.TrimSpace(raw)
	addr, err := netip.ParseAddr(trimmed)
	if err != nil {
		return trimmed
	}
	return addr.Unmap().String()
}
