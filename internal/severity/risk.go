package severity

import (
	"fmt"
	"math"
)

// Coefficients parameterize a system's risk function: (b0, b1) for OASIS and
// (b0, b1, b2) for SAPS II.
type Coefficients []float64

type riskFunc func(score float64, c Coefficients) float64

// logistic is 1 / (1 + exp(-(b0 + b1*score))).
func logistic(score float64, c Coefficients) float64 {
	return 1 / (1 + math.Exp(-(c[0] + c[1]*score)))
}

// logLogistic is 1 / (1 + exp(-(b0 + b1*score + b2*ln(1+score)))).
func logLogistic(score float64, c Coefficients) float64 {
	return 1 / (1 + math.Exp(-(c[0] + c[1]*score + c[2]*math.Log1p(score))))
}

// Risk converts a total score into a mortality probability.
func (d *Definition) Risk(score float64, c Coefficients) (float64, error) {
	if len(c) != d.Arity() {
		return 0, fmt.Errorf("%w: %s takes %d coefficients, got %d", ErrInvalidCoefficients, d.System, d.Arity(), len(c))
	}
	for i, v := range c {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: b%d is %v", ErrInvalidCoefficients, i, v)
		}
	}
	return d.risk(score, c), nil
}

// RiskFunc exposes the unchecked risk formula for curve fitting; callers must pass
// Arity() coefficients.
func (d *Definition) RiskFunc() func(score float64, c Coefficients) float64 {
	return d.risk
}

// Risk converts a total score of system s into a mortality probability.
func Risk(s System, score float64, c Coefficients) (float64, error) {
	d, err := s.Definition()
	if err != nil {
		return 0, err
	}
	return d.Risk(score, c)
}
