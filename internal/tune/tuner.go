package tune

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/gyeh/icuscore/internal/severity"
)

var ErrNoSamples = errors.New("no labeled samples to tune on")

// Options controls the repeated-holdout tuning procedure.
type Options struct {
	Trials       int
	TestFraction float64
	Workers      int
}

func DefaultOptions() Options {
	return Options{Trials: 10, TestFraction: 0.1, Workers: runtime.NumCPU()}
}

// Sample is one stay's total score paired with its in-hospital mortality label.
type Sample struct {
	Stay  string
	Score float64
	Label int
}

// Trial is the outcome of fitting on one seeded split. Err is set when the fit failed;
// other trials are unaffected.
type Trial struct {
	Index        int
	Seed         uint64
	Coefficients severity.Coefficients
	TrainSize    int
	TestSize     int
	TestBrier    float64
	Err          error
}

type fitter func(d *severity.Definition, x []float64, y []int) (severity.Coefficients, error)

var fitters = map[severity.System]fitter{
	severity.OASIS: func(_ *severity.Definition, x []float64, y []int) (severity.Coefficients, error) {
		return FitLogistic(x, y)
	},
	severity.SAPS2: func(d *severity.Definition, x []float64, y []int) (severity.Coefficients, error) {
		return FitCurve(d.RiskFunc(), x, y, d.DefaultCoefficients())
	},
}

// Tune fits sys's risk function on Trials independent stratified splits of samples.
// Trial i uses seed i. Results are ordered by trial index. A split that cannot be
// stratified fails the whole call, since every seed sees the same class counts.
func Tune(ctx context.Context, sys severity.System, samples []Sample, opts Options) ([]Trial, error) {
	def, err := sys.Definition()
	if err != nil {
		return nil, err
	}
	fit, ok := fitters[sys]
	if !ok {
		return nil, fmt.Errorf("%w: %s", severity.ErrUnrecognizedScoreSystem, sys)
	}
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	if opts.Trials <= 0 {
		opts.Trials = DefaultOptions().Trials
	}
	if opts.TestFraction <= 0 || opts.TestFraction >= 1 {
		return nil, fmt.Errorf("test fraction %v must be in (0, 1)", opts.TestFraction)
	}

	labels := make([]int, len(samples))
	for i, s := range samples {
		if s.Label != 0 && s.Label != 1 {
			return nil, fmt.Errorf("stay %s: label %d is not 0 or 1", s.Stay, s.Label)
		}
		labels[i] = s.Label
	}
	if _, _, err := StratifiedSplit(labels, opts.TestFraction, 0); err != nil {
		return nil, err
	}

	trials := make([]Trial, opts.Trials)
	g, ctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i := range trials {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			trials[i] = runTrial(def, fit, samples, labels, i, opts.TestFraction)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(trials, func(a, b int) bool { return trials[a].Index < trials[b].Index })
	return trials, nil
}

func runTrial(def *severity.Definition, fit fitter, samples []Sample, labels []int, index int, frac float64) Trial {
	t := Trial{Index: index, Seed: uint64(index)}
	train, test, err := StratifiedSplit(labels, frac, t.Seed)
	if err != nil {
		t.Err = err
		return t
	}
	t.TrainSize, t.TestSize = len(train), len(test)

	x, y := gather(samples, train)
	coefs, err := fit(def, x, y)
	if err != nil {
		t.Err = fmt.Errorf("trial %d: %w", index, err)
		return t
	}
	t.Coefficients = coefs

	tx, ty := gather(samples, test)
	brier, err := Brier(def, coefs, tx, ty)
	if err != nil {
		t.Err = fmt.Errorf("trial %d: %w", index, err)
		return t
	}
	t.TestBrier = brier
	return t
}

func gather(samples []Sample, idx []int) ([]float64, []int) {
	x := make([]float64, len(idx))
	y := make([]int, len(idx))
	for i, j := range idx {
		x[i] = samples[j].Score
		y[i] = samples[j].Label
	}
	return x, y
}

// Brier is the mean squared difference between predicted risk and outcome.
func Brier(def *severity.Definition, c severity.Coefficients, x []float64, y []int) (float64, error) {
	if len(x) == 0 {
		return 0, ErrNoSamples
	}
	var sum float64
	for i := range x {
		p, err := def.Risk(x[i], c)
		if err != nil {
			return 0, err
		}
		d := p - float64(y[i])
		sum += d * d
	}
	return sum / float64(len(x)), nil
}

// Succeeded returns the trials that produced coefficients.
func Succeeded(trials []Trial) []Trial {
	var out []Trial
	for _, t := range trials {
		if t.Err == nil {
			out = append(out, t)
		}
	}
	return out
}
