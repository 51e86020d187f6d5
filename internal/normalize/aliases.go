package normalize

// Aliases maps normalized column headers to canonical variable names.
type Aliases map[string]string

// Headers seen in MIMIC-III benchmark exports and the original CSV extracts.
var defaultAliases = map[string]string{
	"hours":                 "hours",
	"time":                  "hours",
	"hours_since_admission": "hours",

	"admission_type": "admission_type",
	"age":            "age",

	"glasgow_coma_scale_total":           "glasgow_coma_scale_total",
	"gcs":                                "glasgow_coma_scale_total",
	"gcs_total":                          "glasgow_coma_scale_total",
	"glasgow_coma_scale_verbal_response": "glasgow_coma_scale_verbal_response",
	"gcs_verbal":                         "glasgow_coma_scale_verbal_response",

	"heart_rate": "heart_rate",
	"hr":         "heart_rate",

	"mean_blood_pressure":    "mean_blood_pressure",
	"mean_arterial_pressure": "mean_blood_pressure",
	"map":                    "mean_blood_pressure",

	"prelos":      "prelos",
	"pre_icu_los": "prelos",

	"respiratory_rate": "respiratory_rate",
	"resp_rate":        "respiratory_rate",

	"temperature": "temperature",
	"temp":        "temperature",

	"urine_output": "urine_output",
	"urine":        "urine_output",

	"ventilated":             "ventilated",
	"ventilation":            "ventilated",
	"mechanical_ventilation": "ventilated",

	"bicarbonate":         "bicarbonate",
	"hco3":                "bicarbonate",
	"bilirubin":           "bilirubin",
	"bilirubin_total":     "bilirubin",
	"blood_urea_nitrogen": "blood_urea_nitrogen",
	"bun":                 "blood_urea_nitrogen",

	"icd9":       "icd9",
	"icd9_codes": "icd9",
	"icd_9":      "icd9",

	"potassium":               "potassium",
	"sodium":                  "sodium",
	"systolic_blood_pressure": "systolic_blood_pressure",
	"sbp":                     "systolic_blood_pressure",
	"white_blood_cell_count":  "white_blood_cell_count",
	"wbc":                     "white_blood_cell_count",
}

// DefaultAliases returns a fresh copy of the built-in alias map.
func DefaultAliases() Aliases {
	a := make(Aliases, len(defaultAliases))
	for k, v := range defaultAliases {
		a[k] = v
	}
	return a
}

// With returns a copy of a extended by extra (header → canonical). Extra entries win.
func (a Aliases) With(extra map[string]string) Aliases {
	out := make(Aliases, len(a)+len(extra))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range extra {
		out[NormalizeName(k)] = NormalizeName(v)
	}
	return out
}

// Resolve maps a raw header to its canonical variable name. Unknown headers come back
// normalized with ok=false.
func (a Aliases) Resolve(header string) (name string, ok bool) {
	n := NormalizeName(header)
	if c, found := a[n]; found {
		return c, true
	}
	return n, false
}
