package severity

import "strings"

// Window is a stay's scoring window keyed by canonical variable name. Columns the
// stay did not record are simply absent from the map.
type Window struct {
	Columns map[string]Series
}

// Series returns the observations of variable, or nil.
func (w Window) Series(variable string) Series {
	if w.Columns == nil {
		return nil
	}
	return w.Columns[variable]
}

// VariableScore is one variable's outcome within a total.
type VariableScore struct {
	Variable string
	Kind     Kind
	Points   Points
	// Masked is set when a system override forced the variable to 0 points.
	Masked bool
}

// Result is a stay's total score with its per-variable breakdown.
type Result struct {
	System    System
	Total     int
	Variables []VariableScore
}

// AbsentVariables lists the variables that had no usable observation.
func (r *Result) AbsentVariables() []string {
	var out []string
	for _, v := range r.Variables {
		if v.Points == Absent {
			out = append(out, v.Variable)
		}
	}
	return out
}

// Aggregate scores every required variable over w and sums the contributions.
// Absent variables add 0.
func (d *Definition) Aggregate(w Window) *Result {
	res := &Result{System: d.System, Variables: make([]VariableScore, 0, len(d.Rules))}
	for _, rule := range d.Rules {
		vs := VariableScore{Variable: rule.Variable(), Kind: rule.Kind()}
		if d.masked(rule.Variable(), w) {
			vs.Points = 0
			vs.Masked = true
		} else {
			vs.Points = rule.Score(w.Series(rule.Variable()))
		}
		res.Total += vs.Points.Contribution()
		res.Variables = append(res.Variables, vs)
	}
	return res
}

func (d *Definition) masked(variable string, w Window) bool {
	for _, m := range d.Masks {
		if m.Target != variable {
			continue
		}
		for _, raw := range w.Series(m.By) {
			v := strings.ToUpper(strings.TrimSpace(raw))
			for _, want := range m.Values {
				if v == want {
					return true
				}
			}
		}
	}
	return false
}

// Aggregate computes the total score of system s over w.
func Aggregate(s System, w Window) (*Result, error) {
	d, err := s.Definition()
	if err != nil {
		return nil, err
	}
	return d.Aggregate(w), nil
}
