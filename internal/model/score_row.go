package model

import "github.com/google/uuid"

// ScoreRow is one stay's scoring outcome, as written to the scores table and CSV.
type ScoreRow struct {
	RunID     uuid.UUID
	Partition string
	Stay      string
	System    string
	Total     int
	Risk      *float64
	// WindowMissing is set when the stay had no usable data and was scored 0.
	WindowMissing bool
}

// ScoreColumns returns the ordered column names for COPY into icu.stay_scores.
func ScoreColumns() []string {
	return []string{
		"run_id",
		"partition",
		"stay",
		"score_system",
		"total_score",
		"risk",
		"window_missing",
	}
}

// CopyValues returns the row values in the same order as ScoreColumns().
func (r *ScoreRow) CopyValues() []any {
	return []any{
		r.RunID,
		r.Partition,
		r.Stay,
		r.System,
		int32(r.Total),
		r.Risk,
		r.WindowMissing,
	}
}
