package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// Constants
const (
	REFERENCE_DAY_LAYOUT = "20060102"

	PREFIX_BOOKING    = "BK"
	PREFIX_COMMISSION = "COM"
	PREFIX_RECEIPT    = "RCP"
)

var nonDigits = regexp.MustCompile(`\D`)

// FormatReference builds <PREFIX>-<YYYYMMDD>-<seq> with a six digit sequence
func FormatReference(prefix, day string, seq int64) string {
	return fmt.Sprintf("%s-%s-%06d", prefix, day, seq)
}

// NormalizePhone strips formatting and converts a leading 0 to the 62 country code.
// Returns "" when fewer than 10 digits remain.
func NormalizePhone(phone string) string {
	digits := nonDigits.ReplaceAllString(strings.TrimSpace(phone), "")
	if strings.HasPrefix(digits, "0") {
		digits = "62" + digits[1:]
	}
	if len(digits) < 10 || len(digits) > 15 {
		return ""
	}
	return digits
}
