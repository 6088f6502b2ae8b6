package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	controlChars   = regexp.MustCompile(`[\x00-\x08\x0b-\x1f\x7f]`)
	unsafeFileChar = regexp.MustCompile(`[^a-zA-Z0-9.\-_]`)
	isoDate        = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

// ValidateID rejects non-positive identifiers
func ValidateID(field string, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%s must be a positive integer", field)
	}
	return nil
}

// ValidateRequired rejects empty or whitespace-only text
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// ValidateCost validates a service cost
func ValidateCost(cost decimal.Decimal) error {
	if cost.IsNegative() {
		return fmt.Errorf("cost must not be negative: %s", cost.StringFixed(2))
	}
	return nil
}

// ValidateISODate checks that s starts with a YYYY-MM-DD date
func ValidateISODate(field, s string) error {
	if !isoDate.MatchString(strings.TrimSpace(s)) {
		return fmt.Errorf("%s must be a valid date (YYYY-MM-DD)", field)
	}
	return nil
}

// SanitizeString removes control characters other than tabs and line feeds
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}

// SanitizeFileName replaces every character outside [a-zA-Z0-9.-_] with an
// underscore and strips parent directory references.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "..", "_")
	return unsafeFileChar.ReplaceAllString(name, "_")
}
