package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Error collects per-field validation failures of a request.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		msgs = append(msgs, fmt.Sprintf("%s: %s", field, msg))
	}
	return strings.Join(msgs, "; ")
}

// orNil returns nil when no field failed.
func orNil(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &Error{Fields: fields}
}

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsAddress reports whether s is a 0x-prefixed 20 byte hex address.
func IsAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// NormalizeAddress lowercases and trims an address so lookups are case insensitive.
func NormalizeAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateAddress checks a single address path parameter.
func ValidateAddress(address string) error {
	if !IsAddress(address) {
		return &Error{Fields: map[string]string{"address": "must be 0x followed by 40 hex digits"}}
	}
	return nil
}

// parseInteger parses a fixed-point integer amount. Every ledger amount is an
// integer count of its smallest unit, so fractions are rejected.
func parseInteger(field, raw string, fields map[string]string) decimal.Decimal {
	if strings.TrimSpace(raw) == "" {
		fields[field] = field + " is required"
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		fields[field] = field + " must be a number"
		return decimal.Zero
	}
	if !d.IsInteger() {
		fields[field] = field + " must be an integer amount of the smallest unit"
		return decimal.Zero
	}
	return d
}
