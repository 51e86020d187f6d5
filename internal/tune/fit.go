package tune

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"github.com/gyeh/icuscore/internal/severity"
)

// L2 regularization strength of the logistic fit (inverse, as in C=1.0).
const logisticC = 1.0

var errNoConvergence = errors.New("optimizer did not return a finite solution")

// FitLogistic fits p = 1/(1+exp(-(b0+b1*x))) by L2-regularized maximum likelihood
// (intercept unpenalized) with L-BFGS.
func FitLogistic(x []float64, y []int) (severity.Coefficients, error) {
	if len(x) != len(y) || len(x) == 0 {
		return nil, fmt.Errorf("logistic fit: %d scores, %d labels", len(x), len(y))
	}
	problem := optimize.Problem{
		Func: func(b []float64) float64 {
			loss := 0.5 * b[1] * b[1]
			for i := range x {
				z := b[0] + b[1]*x[i]
				if y[i] == 1 {
					loss += logisticC * softplus(-z)
				} else {
					loss += logisticC * softplus(z)
				}
			}
			return loss
		},
		Grad: func(grad, b []float64) {
			grad[0] = 0
			grad[1] = b[1]
			for i := range x {
				r := logisticC * (sigmoid(b[0]+b[1]*x[i]) - float64(y[i]))
				grad[0] += r
				grad[1] += r * x[i]
			}
		},
	}
	return minimize(problem, []float64{0, 0}, &optimize.LBFGS{})
}

// FitCurve fits f to (x, y) by non-linear least squares starting at p0.
func FitCurve(f func(x float64, c severity.Coefficients) float64, x []float64, y []int, p0 severity.Coefficients) (severity.Coefficients, error) {
	if len(x) != len(y) || len(x) == 0 {
		return nil, fmt.Errorf("curve fit: %d scores, %d labels", len(x), len(y))
	}
	sse := func(b []float64) float64 {
		var s float64
		for i := range x {
			d := f(x[i], b) - float64(y[i])
			s += d * d
		}
		return s
	}
	problem := optimize.Problem{
		Func: sse,
		Grad: func(grad, b []float64) {
			fd.Gradient(grad, sse, b, &fd.Settings{Formula: fd.Central})
		},
	}
	return minimize(problem, append([]float64(nil), p0...), &optimize.BFGS{})
}

func minimize(p optimize.Problem, init []float64, method optimize.Method) (severity.Coefficients, error) {
	settings := &optimize.Settings{
		GradientThreshold: 1e-8,
		MajorIterations:   1000,
	}
	result, err := optimize.Minimize(p, init, settings, method)
	if result == nil || !finite(result.X) {
		if err == nil {
			err = errNoConvergence
		}
		return nil, fmt.Errorf("minimize: %w", err)
	}
	// Line-search stalls at the optimum are reported as errors but leave a usable X.
	return severity.Coefficients(result.X), nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// softplus is log(1+exp(z)) without overflow.
func softplus(z float64) float64 {
	return math.Max(z, 0) + math.Log1p(math.Exp(-math.Abs(z)))
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return len(v) > 0
}
