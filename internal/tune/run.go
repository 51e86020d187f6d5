package tune

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gyeh/icuscore/internal/config"
	"github.com/gyeh/icuscore/internal/model"
	"github.com/gyeh/icuscore/internal/normalize"
	"github.com/gyeh/icuscore/internal/severity"
)

// CoefficientStore persists fitted trials. Run skips persistence when it is nil.
type CoefficientStore interface {
	SaveCoefficients(ctx context.Context, rows []model.CoefficientRow) (int64, error)
}

// Summary captures the outcome of one tuning run.
type Summary struct {
	TuneID        uuid.UUID
	System        severity.System
	ScoresPath    string
	ScoresSHA256  string
	Samples       int
	Unlabeled     int
	Trials        []Trial
	Stats         []Stat
	OutputPath    string
	RowsWritten   int
	RowsPersisted int64
	Duration      time.Duration
}

// Failed returns the trials whose fit failed.
func (s *Summary) Failed() []Trial {
	var out []Trial
	for _, t := range s.Trials {
		if t.Err != nil {
			out = append(out, t)
		}
	}
	return out
}

// ScoresPath is where the batch scorer leaves a system's training scores.
func ScoresPath(dir string, sys severity.System) string {
	return filepath.Join(dir, fmt.Sprintf("train_%s_scores.csv", sys))
}

// CoefficientsPath is where Run writes a system's coefficient table.
func CoefficientsPath(dir string, sys severity.System) string {
	return filepath.Join(dir, sys.String()+".csv")
}

// Run reads training scores and labels, fits the risk function on repeated
// stratified splits and writes one coefficient row per successful trial.
func Run(ctx context.Context, log zerolog.Logger, cfg *config.Config, store CoefficientStore) (*Summary, error) {
	start := time.Now()
	sys, err := cfg.ScoreSystem()
	if err != nil {
		return nil, err
	}
	def, err := sys.Definition()
	if err != nil {
		return nil, err
	}

	sum := &Summary{TuneID: uuid.New(), System: sys, ScoresPath: ScoresPath(cfg.ScoresDir, sys)}
	scores, err := ReadScores(sum.ScoresPath)
	if err != nil {
		return nil, fmt.Errorf("read scores: %w", err)
	}
	if sum.ScoresSHA256, err = normalize.FileHash(sum.ScoresPath); err != nil {
		return nil, fmt.Errorf("hash scores: %w", err)
	}
	labels, err := ReadLabels(cfg.ListFile)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	samples, unlabeled := Join(scores, labels)
	sum.Samples, sum.Unlabeled = len(samples), len(unlabeled)
	if len(unlabeled) > 0 {
		log.Warn().Int("stays", len(unlabeled)).Str("first", unlabeled[0]).Msg("scored stays without a label were skipped")
	}

	log.Info().
		Str("system", sys.String()).
		Str("scores", sum.ScoresPath).
		Str("sha256", sum.ScoresSHA256).
		Int("samples", sum.Samples).
		Msg("starting tuning")

	opts := DefaultOptions()
	if cfg.Trials > 0 {
		opts.Trials = cfg.Trials
	}
	if cfg.Workers > 0 {
		opts.Workers = cfg.Workers
	}
	sum.Trials, err = Tune(ctx, sys, samples, opts)
	if err != nil {
		return nil, err
	}
	for _, t := range sum.Failed() {
		log.Warn().Err(t.Err).Int("trial", t.Index).Msg("trial failed")
	}
	ok := Succeeded(sum.Trials)
	if len(ok) == 0 {
		return sum, fmt.Errorf("all %d trials failed: %w", len(sum.Trials), sum.Trials[0].Err)
	}

	sets := make([]severity.Coefficients, len(ok))
	for i, t := range ok {
		sets[i] = t.Coefficients
	}
	sum.Stats = Summarize(sets)
	for _, s := range sum.Stats {
		log.Info().Str("coefficient", s.Name).Float64("mean", s.Mean).Float64("std", s.StdDev).Msg("coefficient spread")
	}

	sum.OutputPath = CoefficientsPath(cfg.CoefsDir, sys)
	if sum.RowsWritten, err = WriteCoefficients(sum.OutputPath, def.Arity(), sum.Trials); err != nil {
		return sum, fmt.Errorf("write coefficients: %w", err)
	}

	if store != nil {
		rows := make([]model.CoefficientRow, len(ok))
		for i, t := range ok {
			rows[i] = model.CoefficientRow{
				TuneID:       sum.TuneID,
				System:       sys.String(),
				Trial:        t.Index,
				Coefficients: t.Coefficients,
				TrainSize:    t.TrainSize,
				TestSize:     t.TestSize,
				TestBrier:    t.TestBrier,
				SourceSHA256: sum.ScoresSHA256,
			}
		}
		if sum.RowsPersisted, err = store.SaveCoefficients(ctx, rows); err != nil {
			return sum, fmt.Errorf("persist coefficients: %w", err)
		}
	}

	sum.Duration = time.Since(start)
	log.Info().
		Str("tune_id", sum.TuneID.String()).
		Str("output", sum.OutputPath).
		Int("trials_ok", len(ok)).
		Int("trials_failed", len(sum.Trials)-len(ok)).
		Int64("rows_persisted", sum.RowsPersisted).
		Dur("duration", sum.Duration).
		Msg("tuning complete")
	return sum, nil
}

// Resolve picks the coefficients the risk transform uses: the trial mean of
// cfg.CoefsPath when set, else the profile's set for the system, else the
// published defaults. The second return names the source.
func Resolve(cfg *config.Config, def *severity.Definition) (severity.Coefficients, string, error) {
	if cfg.CoefsPath != "" {
		sets, err := ReadCoefficients(cfg.CoefsPath)
		if err != nil {
			return nil, "", err
		}
		c := Mean(sets)
		if len(c) != def.Arity() {
			return nil, "", fmt.Errorf("%w: %s has %d columns, %s takes %d", severity.ErrInvalidCoefficients, cfg.CoefsPath, len(c), def.System, def.Arity())
		}
		return c, cfg.CoefsPath, nil
	}
	if c, ok := cfg.ProfileCoefficients(def.System); ok {
		return c, "profile", nil
	}
	return def.DefaultCoefficients(), "published", nil
}
