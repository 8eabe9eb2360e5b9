package phone

import (
	"strings"
)

// DefaultCountryCode is prepended to numbers that arrive without a '+' prefix.
const DefaultCountryCode = "+1"

// NormalizeE164 converts a phone number in any common format to E.164 (e.g. +14155552671).
// Everything except digits and '+' is stripped first.
func NormalizeE164(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" || strings.HasPrefix(cleaned, "+") {
		return cleaned
	}

	switch {
	case len(cleaned) == 10: // US number without country code
		return DefaultCountryCode + cleaned
	case len(cleaned) == 11 && strings.HasPrefix(cleaned, "1"):
		return "+" + cleaned
	default:
		return DefaultCountryCode + cleaned
	}
}

// FormatDisplay renders a number for humans, e.g. +14155552671 -> +1 (415) 555-2671.
// Non-NANP numbers are returned in E.164 form.
func FormatDisplay(raw string) string {
	n := NormalizeE164(raw)
	if strings.HasPrefix(n, "+1") && len(n) == 12 {
		return "+1 (" + n[2:5] + ") " + n[5:8] + "-" + n[8:]
	}
	return n
}

// Details is the breakdown returned by Info.
type Details struct {
	Normalized  string `json:"normalized"`
	Display     string `json:"display"`
	CountryCode string `json:"country_code,omitempty"`
}

// Info returns the normalized and display forms of a number along with its country code prefix.
func Info(raw string) Details {
	n := NormalizeE164(raw)
	d := Details{Normalized: n, Display: FormatDisplay(n)}
	if strings.HasPrefix(n, "+") && len(n) >= 2 {
		d.CountryCode = n[:2]
	}
	return d
}
