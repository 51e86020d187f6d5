package normalize

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]`)

// NormalizeCode trims whitespace, uppercases, and strips non-alphanumeric characters,
// so "196.0" and " 1960 " both become "1960". Returns "" for blank input.
func NormalizeCode(v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return ""
	}
	s = strings.ToUpper(s)
	return nonAlphanumeric.ReplaceAllString(s, "")
}
