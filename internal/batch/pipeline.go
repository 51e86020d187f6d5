package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gyeh/icuscore/internal/config"
	"github.com/gyeh/icuscore/internal/model"
)

// Pipeline phases reported in PipelineError.
const (
	PhasePreflight = "preflight"
	PhaseScore     = "score"
	PhaseWrite     = "write"
	PhasePersist   = "persist"
)

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// ScoreSink persists a run's scores. Run skips persistence when it is nil.
type ScoreSink interface {
	CreateRun(ctx context.Context, runID uuid.UUID, system, dataRoot, coefSource string) error
	SaveScores(ctx context.Context, rows []model.ScoreRow) (int64, error)
	FinishRun(ctx context.Context, runID uuid.UUID, status string, scored, failed int) error
}

// Run executes the scoring pipeline: preflight → score → write → persist, one
// partition at a time. Stays that fail are reported in the summary and do not
// stop the run.
func Run(ctx context.Context, log zerolog.Logger, cfg *config.Config, sink ScoreSink) (*model.RunSummary, error) {
	totalStart := time.Now()

	log.Info().Str("data_root", cfg.DataRoot).Msg("starting preflight")
	pf, err := Preflight(log, cfg)
	if err != nil {
		return nil, &PipelineError{Phase: PhasePreflight, Err: err}
	}

	summary := &model.RunSummary{
		RunID:    pf.RunID.String(),
		System:   pf.System.String(),
		DataRoot: cfg.DataRoot,
	}

	if sink != nil {
		if err := sink.CreateRun(ctx, pf.RunID, summary.System, cfg.DataRoot, pf.CoefSource); err != nil {
			return nil, &PipelineError{Phase: PhasePersist, Err: err}
		}
	}
	fail := func(phase string, err error) (*model.RunSummary, error) {
		if sink != nil {
			if ferr := sink.FinishRun(context.WithoutCancel(ctx), pf.RunID, "failed", summary.Scored(), len(summary.Failed())); ferr != nil {
				log.Warn().Err(ferr).Msg("could not mark run failed")
			}
		}
		return summary, &PipelineError{Phase: phase, Err: err}
	}

	for _, p := range pf.Partitions {
		log.Info().Str("partition", p.Name).Int("stays", len(p.Files)).Msg("scoring partition")
		scores, ps, err := scorePartition(ctx, log, pf, p, cfg.Workers)
		if err != nil {
			return fail(PhaseScore, err)
		}

		ps.OutputPath = outputPath(cfg.OutDir, p.Name, pf.System)
		if err := WriteScores(ps.OutputPath, scores, pf.Coefficients != nil); err != nil {
			return fail(PhaseWrite, err)
		}
		summary.Partitions = append(summary.Partitions, *ps)

		if sink != nil {
			n, err := sink.SaveScores(ctx, ScoreRows(pf, p.Name, scores))
			if err != nil {
				return fail(PhasePersist, err)
			}
			summary.RowsPersisted += n
		}

		log.Info().
			Str("partition", p.Name).
			Int("scored", ps.StaysScored).
			Int("window_missing", ps.WindowMissing).
			Int("failed", len(ps.Errors)).
			Str("output", ps.OutputPath).
			Dur("duration", ps.Duration).
			Msg("partition complete")
	}

	failed := len(summary.Failed())
	if sink != nil {
		status := "complete"
		if failed > 0 {
			status = "partial"
		}
		if err := sink.FinishRun(ctx, pf.RunID, status, summary.Scored(), failed); err != nil {
			return summary, &PipelineError{Phase: PhasePersist, Err: err}
		}
	}

	summary.DurationTotal = time.Since(totalStart)
	log.Info().
		Str("run_id", summary.RunID).
		Int("scored", summary.Scored()).
		Int("failed", failed).
		Int64("rows_persisted", summary.RowsPersisted).
		Str("total_duration", summary.DurationTotal.String()).
		Msg("scoring pipeline complete")

	return summary, nil
}
