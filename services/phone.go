package services

import (
	"errors"
	"regexp"
	"strings"
)

var (
	nonNumericRegex = regexp.MustCompile(`[^0-9]`)

	errInvalidPhone = errors.New("invalid phone number format")
)

// NormalizePhoneNumber converts a Korean mobile number in local or
// international form to E.164, e.g. 010-1234-5678 -> +821012345678.
func NormalizePhoneNumber(phone string) (string, error) {
	sanitized := nonNumericRegex.ReplaceAllString(phone, "")

	if strings.HasPrefix(sanitized, "01") && (len(sanitized) == 10 || len(sanitized) == 11) {
		return "+82" + sanitized[1:], nil
	}
	if strings.HasPrefix(sanitized, "821") && (len(sanitized) == 11 || len(sanitized) == 12) {
		return "+" + sanitized, nil
	}

	return "", errInvalidPhone
}
