package utils

import (
	"fmt"
	"regexp"
)

var (
	panRegex = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	gstRegex = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][0-9A-Z]Z[0-9A-Z]$`)
)

// ValidatePAN validates an Indian permanent account number.
func ValidatePAN(pan string) error {
	if !panRegex.MatchString(pan) {
		return fmt.Errorf("invalid PAN format: %s", pan)
	}
	return nil
}

// ValidateGSTIN validates an Indian GST identification number.
func ValidateGSTIN(gstin string) error {
	if !gstRegex.MatchString(gstin) {
		return fmt.Errorf("invalid GSTIN format: %s", gstin)
	}
	return nil
}
