package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gyeh/icuscore/internal/model"
	"github.com/gyeh/icuscore/internal/normalize"
	"github.com/gyeh/icuscore/internal/severity"
	"github.com/gyeh/icuscore/internal/timeseries"
)

// StayScore is one stay's scored outcome.
type StayScore struct {
	Stay   string
	Result *severity.Result
	// WindowMissing is set when no row fell in the scoring window; Result is then
	// the all-absent total of 0.
	WindowMissing bool
	Risk          *float64
}

// ScoreStay reads one stay file and scores its first-day window.
func ScoreStay(def *severity.Definition, path string, aliases normalize.Aliases) (*StayScore, error) {
	ts, err := timeseries.Read(path, aliases)
	if err != nil {
		return nil, err
	}
	out := &StayScore{Stay: ts.Stay}
	w, err := timeseries.Window(ts)
	if errors.Is(err, severity.ErrMissingRequiredWindow) {
		out.WindowMissing = true
		w = severity.Window{}
	} else if err != nil {
		return nil, err
	}
	out.Result = def.Aggregate(w)
	return out, nil
}

type stayOutcome struct {
	score *StayScore
	err   error
}

// scorePartition scores every stay of p on up to workers goroutines. A stay that
// fails is recorded in the summary and left out of the rows; rows keep file order.
func scorePartition(ctx context.Context, log zerolog.Logger, pf *PreflightResult, p Partition, workers int) ([]StayScore, *model.PartitionSummary, error) {
	start := time.Now()
	outcomes := make([]stayOutcome, len(p.Files))

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, path := range p.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := ScoreStay(pf.Definition, path, pf.Aliases)
			if err == nil && pf.Coefficients != nil {
				var r float64
				r, err = pf.Definition.Risk(float64(s.Result.Total), pf.Coefficients)
				s.Risk = &r
			}
			outcomes[i] = stayOutcome{score: s, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sum := &model.PartitionSummary{Partition: p.Name, StaysFound: len(p.Files)}
	scores := make([]StayScore, 0, len(p.Files))
	for i, o := range outcomes {
		if o.err != nil {
			stay := filepath.Base(p.Files[i])
			log.Warn().Err(o.err).Str("partition", p.Name).Str("stay", stay).Msg("stay failed")
			sum.Errors = append(sum.Errors, model.StayError{Partition: p.Name, Stay: stay, Err: o.err})
			continue
		}
		if o.score.WindowMissing {
			sum.WindowMissing++
			log.Debug().Str("partition", p.Name).Str("stay", o.score.Stay).Msg("no data in scoring window, scored 0")
		}
		scores = append(scores, *o.score)
	}
	sum.StaysScored = len(scores)
	sum.Duration = time.Since(start)
	return scores, sum, nil
}

// ScoreRows converts scored stays into persistence rows.
func ScoreRows(pf *PreflightResult, partition string, scores []StayScore) []model.ScoreRow {
	rows := make([]model.ScoreRow, len(scores))
	for i, s := range scores {
		rows[i] = model.ScoreRow{
			RunID:         pf.RunID,
			Partition:     partition,
			Stay:          s.Stay,
			System:        pf.System.String(),
			Total:         s.Result.Total,
			Risk:          s.Risk,
			WindowMissing: s.WindowMissing,
		}
	}
	return rows
}

func outputPath(dir, partition string, sys severity.System) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s_scores.csv", partition, sys))
}
