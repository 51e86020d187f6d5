package batch

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/gyeh/icuscore/internal/config"
	"github.com/gyeh/icuscore/internal/severity"
)

// PartitionPlan is the dry-run view of one partition.
type PartitionPlan struct {
	Name          string
	Stays         int
	WindowMissing int
	Unreadable    int
	// Scored counts, per variable, the stays where it contributed points (not ABSENT).
	Scored map[string]int
	// Stays are kept only when explaining.
	Scores []StayScore
}

// PlanReport summarizes what a scoring run would produce without writing anything.
type PlanReport struct {
	System     severity.System
	Variables  []string
	Partitions []PartitionPlan
}

// Plan scores every stay in memory and reports per-partition counts and variable
// coverage. With explain set, per-stay breakdowns are kept in the report.
func Plan(ctx context.Context, log zerolog.Logger, cfg *config.Config) (*PlanReport, error) {
	pf, err := Preflight(log, cfg)
	if err != nil {
		return nil, &PipelineError{Phase: PhasePreflight, Err: err}
	}
	report := &PlanReport{System: pf.System}
	for _, r := range pf.Definition.Rules {
		report.Variables = append(report.Variables, r.Variable())
	}

	for _, p := range pf.Partitions {
		scores, ps, err := scorePartition(ctx, log, pf, p, cfg.Workers)
		if err != nil {
			return nil, &PipelineError{Phase: PhaseScore, Err: err}
		}
		pp := PartitionPlan{
			Name:          p.Name,
			Stays:         ps.StaysFound,
			WindowMissing: ps.WindowMissing,
			Unreadable:    len(ps.Errors),
			Scored:        make(map[string]int, len(report.Variables)),
		}
		for _, s := range scores {
			for _, v := range s.Result.Variables {
				if v.Points != severity.Absent {
					pp.Scored[v.Variable]++
				}
			}
		}
		if cfg.Explain {
			pp.Scores = scores
		}
		report.Partitions = append(report.Partitions, pp)
	}
	return report, nil
}
