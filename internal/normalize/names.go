package normalize

import (
	"regexp"
	"strings"
)

var separators = regexp.MustCompile(`[\s\-/.]+`)

// NormalizeName lowercases a column header, trims it, and joins words with
// underscores: "Heart Rate" and "heart-rate" both become "heart_rate".
func NormalizeName(v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	s = separators.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
