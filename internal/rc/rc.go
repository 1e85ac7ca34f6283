// Package rc normalizes and validates vehicle registration (RC) numbers.
package rc

import (
	"regexp"
	"strings"
	"unicode"
)

// Two letters, 1-2 digits, 1-2 letters, 1-4 digits (e.g. MH12DE1433).
var pattern = regexp.MustCompile(`^[A-Z]{2}\d{1,2}[A-Z]{1,2}\d{1,4}$`)

// Normalize strips whitespace and hyphens and upper-cases the rest.
func Normalize(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return unicode.ToUpper(r)
	}, raw)
}

// IsValid reports whether id matches the RC number pattern.
func IsValid(id string) bool {
	return pattern.MatchString(id)
}

// Split breaks batch input on commas and newlines and normalizes each element.
// Empty elements are dropped; duplicates are kept.
func Split(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})

	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if id := Normalize(p); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
