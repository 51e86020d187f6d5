package severity

import (
	"strings"

	"github.com/gyeh/icuscore/internal/normalize"
)

// CodeRange is an inclusive lexicographic range over dot-free ICD-9 codes.
type CodeRange struct {
	Lo, Hi string
}

// Contains reports whether code sorts within [Lo, Hi].
func (r CodeRange) Contains(code string) bool {
	return code >= r.Lo && code <= r.Hi
}

// CodeCategory groups code ranges and exact codes under one point value.
type CodeCategory struct {
	Name   string
	Points int
	Ranges []CodeRange
	Exact  []string
}

// Matches reports whether code belongs to the category.
func (c CodeCategory) Matches(code string) bool {
	for _, e := range c.Exact {
		if code == e {
			return true
		}
	}
	for _, r := range c.Ranges {
		if r.Contains(code) {
			return true
		}
	}
	return false
}

// Classify returns the first category, in priority order, matched by any code.
func Classify(categories []CodeCategory, codes []string) (CodeCategory, bool) {
	for _, c := range categories {
		for _, code := range codes {
			if c.Matches(code) {
				return c, true
			}
		}
	}
	return CodeCategory{}, false
}

// ParseCodes splits a cell holding one or more diagnosis codes, such as
// "['0420', '196.0']" or "0420;1960", into normalized dot-free codes.
func ParseCodes(cell string) []string {
	if isMissing(cell) {
		return nil
	}
	fields := strings.FieldsFunc(cell, func(r rune) bool {
		switch r {
		case '[', ']', '(', ')', ',', ';', '|', '\'', '"', ' ', '\t':
			return true
		}
		return false
	})
	codes := make([]string, 0, len(fields))
	for _, f := range fields {
		if c := normalize.NormalizeCode(f); c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}
