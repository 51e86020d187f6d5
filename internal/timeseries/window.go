package timeseries

import (
	"github.com/gyeh/icuscore/internal/model"
	"github.com/gyeh/icuscore/internal/severity"
)

// WindowHours is the length of the scoring window after admission.
const WindowHours = 24.0

// Window selects the rows used for scoring: every row with hours in (0, 24], or,
// when there are none, the single most recent pre-admission row (hours < 0). It
// returns severity.ErrMissingRequiredWindow when neither exists.
func Window(ts *model.Timeseries) (severity.Window, error) {
	var rows []int
	for i, h := range ts.Hours {
		if h > 0 && h <= WindowHours {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		last := -1
		for i, h := range ts.Hours {
			if h < 0 && (last < 0 || h >= ts.Hours[last]) {
				last = i
			}
		}
		if last < 0 {
			return severity.Window{}, severity.ErrMissingRequiredWindow
		}
		rows = []int{last}
	}

	w := severity.Window{Columns: make(map[string]severity.Series, len(ts.Columns))}
	for name, col := range ts.Columns {
		s := make(severity.Series, 0, len(rows))
		for _, i := range rows {
			if i < len(col) {
				s = append(s, col[i])
			}
		}
		w.Columns[name] = s
	}
	return w, nil
}
