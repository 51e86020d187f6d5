package model

import "github.com/google/uuid"

// CoefficientRow is one resampling trial's fitted risk coefficients.
type CoefficientRow struct {
	TuneID       uuid.UUID
	System       string
	Trial        int
	Coefficients []float64
	TrainSize    int
	TestSize     int
	// TestBrier is the mean squared error of the fitted risk on the held-out split.
	TestBrier float64
	// SourceSHA256 identifies the scores file the trial was fitted on.
	SourceSHA256 string
}

// CoefficientColumns returns the ordered column names for COPY into icu.coefficient_sets.
func CoefficientColumns() []string {
	return []string{
		"tune_id",
		"score_system",
		"trial",
		"b0",
		"b1",
		"b2",
		"train_size",
		"test_size",
		"test_brier",
		"source_sha256",
	}
}

// CopyValues returns the row values in the same order as CoefficientColumns().
// Coefficients beyond the system's arity are written as NULL.
func (r *CoefficientRow) CopyValues() []any {
	b := make([]*float64, 3)
	for i := range b {
		if i < len(r.Coefficients) {
			v := r.Coefficients[i]
			b[i] = &v
		}
	}
	return []any{
		r.TuneID,
		r.System,
		int32(r.Trial),
		b[0],
		b[1],
		b[2],
		int32(r.TrainSize),
		int32(r.TestSize),
		r.TestBrier,
		r.SourceSHA256,
	}
}
