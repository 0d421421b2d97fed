// Package phone turns user-entered phone numbers into E.164.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Number is a validated phone number.
type Number struct {
	E164 string `json:"e164"`
	ISO2 string `json:"iso2,omitempty"`
}

// Normalize parses raw against defaultRegion first and falls back to an
// international parse. Any failure, including numbers that parse but are not
// valid for their numbering plan, yields ok=false.
func Normalize(raw, defaultRegion string) (Number, bool) {
	cleaned := Clean(raw)
	if cleaned == "" || cleaned == "+" {
		return Number{}, false
	}

	var num *phonenumbers.PhoneNumber
	if region := strings.ToUpper(strings.TrimSpace(defaultRegion)); region != "" {
		if n, err := phonenumbers.Parse(cleaned, region); err == nil {
			num = n
		}
	}
	if num == nil {
		n, err := phonenumbers.Parse(cleaned, "")
		if err != nil {
			return Number{}, false
		}
		num = n
	}

	if !phonenumbers.IsValidNumber(num) {
		return Number{}, false
	}

	e164 := phonenumbers.Format(num, phonenumbers.E164)
	if !IsE164(e164) {
		return Number{}, false
	}
	return Number{
		E164: e164,
		ISO2: phonenumbers.GetRegionCodeForNumber(num),
	}, true
}

// Clean keeps the digits of raw and a single leading '+'.
func Clean(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	b.Grow(len(raw))
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsE164 reports whether s is '+' followed by 1 to 15 digits, the first non-zero.
func IsE164(s string) bool {
	if len(s) < 2 || len(s) > 16 || s[0] != '+' || s[1] == '0' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Digits returns only the digits of s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
