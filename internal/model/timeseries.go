package model

// Timeseries is one stay's full record in row order, column-oriented. Columns are
// keyed by canonical variable name (or the normalized header for unknown columns).
type Timeseries struct {
	Stay    string
	Path    string
	Hours   []float64
	Columns map[string][]string
}

// NumRows returns the number of timeseries rows.
func (t *Timeseries) NumRows() int {
	return len(t.Hours)
}
