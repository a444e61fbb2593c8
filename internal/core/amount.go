// Package core provides the domain types and money parsing shared by the
// message parsers and the dashboard aggregation.
package core

import (
	"strconv"
	"strings"
)

// FindAmount extracts the first monetary amount from free text.
//
// It takes the first maximal run of digits, commas and periods, converts a
// decimal comma to a period and parses the result as a float. A run made
// only of separators is rejected, as is anything strconv cannot parse
// (e.g. "1.234,56" carries two separators and fails, matching the source
// behavior of the chat bot this service grew out of).
//
// The boolean reports whether an amount was found.
func FindAmount(text string) (float64, bool) {
	run := firstNumericRun(text)
	if run == "" || strings.Trim(run, ".,") == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(run, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// IsBareNumber reports whether the trimmed text consists solely of digits,
// commas and periods. Used to pick the right guidance message when a
// message carries a number but nothing parseable around it.
func IsBareNumber(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, r := range text {
		if !isNumericRune(r) {
			return false
		}
	}
	return true
}

// ParseAmount parses a full string as an amount (decimal comma allowed).
// Unlike FindAmount it does not scan: the whole input must be numeric.
func ParseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

func firstNumericRun(text string) string {
	start := -1
	for i, r := range text {
		if isNumericRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return text[start:i]
		}
	}
	if start >= 0 {
		return text[start:]
	}
	return ""
}

func isNumericRune(r rune) bool {
	return (r >= '0' && r <= '9') || r == ',' || r == '.'
}
