package severity

import (
	"math"
	"strconv"
	"strings"
)

// Points is a variable's contribution to a total score. Absent means no usable
// observation was present in the window.
type Points int

// Absent is the sentinel for a variable with no non-missing observation.
const Absent Points = -1

// Contribution returns the amount added to a total score; Absent contributes 0.
func (p Points) Contribution() int {
	if p == Absent {
		return 0
	}
	return int(p)
}

// Series holds one variable's raw observations over a window, in row order.
// Empty cells and NaN/NA/null markers are missing.
type Series []string

// Kind tags the scoring rule variants.
type Kind int

const (
	KindNumericInterval Kind = iota + 1
	KindCategoricalExact
	KindVentilationFlag
	KindDiagnosisCodeRange
	KindCumulativeSum
)

func (k Kind) String() string {
	switch k {
	case KindNumericInterval:
		return "numeric_interval"
	case KindCategoricalExact:
		return "categorical_exact"
	case KindVentilationFlag:
		return "ventilation_flag"
	case KindDiagnosisCodeRange:
		return "diagnosis_code_range"
	case KindCumulativeSum:
		return "cumulative_sum"
	default:
		return "unknown"
	}
}

// Rule scores one variable's observations.
type Rule interface {
	Variable() string
	Kind() Kind
	Score(obs Series) Points
}

// NumericInterval scores the worst (highest-point) interval hit by any observation.
type NumericInterval struct {
	Name  string
	Table IntervalTable
}

func (r NumericInterval) Variable() string { return r.Name }
func (r NumericInterval) Kind() Kind       { return KindNumericInterval }

func (r NumericInterval) Score(obs Series) Points {
	best := Absent
	for _, raw := range obs {
		v, ok := parseNumber(raw)
		if !ok {
			continue
		}
		if p, ok := r.Table.Points(v); ok && Points(p) > best {
			best = Points(p)
		}
	}
	return best
}

// CumulativeSum totals all observations over the window before the interval lookup.
type CumulativeSum struct {
	Name  string
	Table IntervalTable
}

func (r CumulativeSum) Variable() string { return r.Name }
func (r CumulativeSum) Kind() Kind       { return KindCumulativeSum }

func (r CumulativeSum) Score(obs Series) Points {
	var sum float64
	seen := false
	for _, raw := range obs {
		v, ok := parseNumber(raw)
		if !ok {
			continue
		}
		sum += v
		seen = true
	}
	if !seen {
		return Absent
	}
	p, ok := r.Table.Points(sum)
	if !ok {
		return Absent
	}
	return Points(p)
}

// CategoricalExact maps exact (case-insensitive) values to points and keeps the maximum.
type CategoricalExact struct {
	Name   string
	Values map[string]int
}

func (r CategoricalExact) Variable() string { return r.Name }
func (r CategoricalExact) Kind() Kind       { return KindCategoricalExact }

func (r CategoricalExact) Score(obs Series) Points {
	best := Absent
	for _, raw := range obs {
		if isMissing(raw) {
			continue
		}
		p, ok := r.Values[strings.ToUpper(strings.TrimSpace(raw))]
		if ok && Points(p) > best {
			best = Points(p)
		}
	}
	return best
}

// VentilationFlag awards Points if the flag equals 1 anywhere in the window and 0
// otherwise. It is never Absent.
type VentilationFlag struct {
	Name   string
	Points int
}

func (r VentilationFlag) Variable() string { return r.Name }
func (r VentilationFlag) Kind() Kind       { return KindVentilationFlag }

func (r VentilationFlag) Score(obs Series) Points {
	for _, raw := range obs {
		if v, ok := parseNumber(raw); ok && v == 1 {
			return Points(r.Points)
		}
	}
	return 0
}

// DiagnosisCodeRange scans every recorded code against Categories in order; the first
// category with a matching code wins. No match scores 0.
type DiagnosisCodeRange struct {
	Name       string
	Categories []CodeCategory
}

func (r DiagnosisCodeRange) Variable() string { return r.Name }
func (r DiagnosisCodeRange) Kind() Kind       { return KindDiagnosisCodeRange }

func (r DiagnosisCodeRange) Score(obs Series) Points {
	var codes []string
	for _, raw := range obs {
		codes = append(codes, ParseCodes(raw)...)
	}
	if c, ok := Classify(r.Categories, codes); ok {
		return Points(c.Points)
	}
	return 0
}

func parseNumber(raw string) (float64, bool) {
	if isMissing(raw) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func isMissing(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "nan", "na", "n/a", "null", "none":
		return true
	}
	return false
}
