// Package phone turns free-text phone cells into dialable numbers.
package phone

import (
	"fmt"
	"strings"
)

// MinDispatchableLength is the shortest cleaned number (digits plus an
// optional leading '+') the dispatcher will send to.
const MinDispatchableLength = 5

// PrefixSentinel is what DialPrefix returns for a country it doesn't know.
const PrefixSentinel = "+"

// DefaultFallbackPrefix replaces PrefixSentinel unless configured otherwise.
const DefaultFallbackPrefix = "+91"

var dialPrefixes = map[string]string{
	"IN": "+91",
	"US": "+1",
	"GB": "+44",
	"AE": "+971",
}

// Clean keeps only ASCII digits and '+'. A '+' survives only as the first
// character of the result; when more than one '+' appears the input is
// ambiguous and every '+' is dropped. Clean is idempotent.
func Clean(raw string) string {
	var b strings.Builder
	plus := 0
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+':
			plus++
			b.WriteRune(r)
		}
	}
	out := b.String()
	if plus > 1 || (plus == 1 && out[0] != '+') {
		out = strings.ReplaceAll(out, "+", "")
	}
	return out
}

// IsDispatchable reports whether a cleaned number is long enough to send to.
func IsDispatchable(clean string) bool {
	return len(clean) >= MinDispatchableLength
}

// DialPrefix maps an ISO country code to its calling code, or PrefixSentinel.
func DialPrefix(country string) string {
	if p, ok := dialPrefixes[strings.ToUpper(strings.TrimSpace(country))]; ok {
		return p
	}
	return PrefixSentinel
}

// ResolvePrefix returns the dial prefix for country, substituting fallback
// when the country is unknown.
func ResolvePrefix(country, fallback string) string {
	p := DialPrefix(country)
	if p == PrefixSentinel {
		return fallback
	}
	return p
}

// ValidatePrefix checks that p is '+' followed by one to four digits.
func ValidatePrefix(p string) error {
	if len(p) < 2 || len(p) > 5 || p[0] != '+' {
		return fmt.Errorf("dial prefix %q must be '+' followed by 1-4 digits", p)
	}
	for _, r := range p[1:] {
		if r < '0' || r > '9' {
			return fmt.Errorf("dial prefix %q must be '+' followed by 1-4 digits", p)
		}
	}
	return nil
}

// WithCountryCode returns clean unchanged when it is already international,
// otherwise prefix+clean. A malformed prefix (including the bare sentinel)
// is replaced by fallback.
func WithCountryCode(clean, prefix, fallback string) string {
	if strings.HasPrefix(clean, "+") {
		return clean
	}
	if ValidatePrefix(prefix) != nil {
		prefix = fallback
	}
	return prefix + clean
}
