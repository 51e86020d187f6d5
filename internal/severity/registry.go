package severity

import (
	"fmt"
	"math"
)

// Canonical variable names shared by the timeseries reader and the registry.
const (
	VarHours               = "hours"
	VarAdmissionType       = "admission_type"
	VarAge                 = "age"
	VarBicarbonate         = "bicarbonate"
	VarBilirubin           = "bilirubin"
	VarBloodUreaNitrogen   = "blood_urea_nitrogen"
	VarGCSTotal            = "glasgow_coma_scale_total"
	VarGCSVerbalResponse   = "glasgow_coma_scale_verbal_response"
	VarHeartRate           = "heart_rate"
	VarICD9                = "icd9"
	VarMeanBloodPressure   = "mean_blood_pressure"
	VarPotassium           = "potassium"
	VarPreICULengthOfStay  = "prelos"
	VarRespiratoryRate     = "respiratory_rate"
	VarSodium              = "sodium"
	VarSystolicBP          = "systolic_blood_pressure"
	VarTemperature         = "temperature"
	VarUrineOutput         = "urine_output"
	VarVentilated          = "ventilated"
	VarWhiteBloodCellCount = "white_blood_cell_count"
)

// Mask makes Target score as assessed-normal (0 points) whenever any observation of
// By equals one of Values.
type Mask struct {
	Target string
	By     string
	Values []string
}

// Definition is the immutable registry entry of one score system.
type Definition struct {
	System System
	// Rules are evaluated in order; each names one required variable.
	Rules []Rule
	// Masks are system-specific overrides applied by Aggregate.
	Masks []Mask

	defaults Coefficients
	risk     riskFunc
}

// Lookup returns the rule registered for variable.
func (d *Definition) Lookup(variable string) (Rule, error) {
	for _, r := range d.Rules {
		if r.Variable() == variable {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %q is not defined for %s", ErrUnknownVariable, variable, d.System)
}

// Inputs lists every canonical column the system reads, including mask inputs.
func (d *Definition) Inputs() []string {
	in := make([]string, 0, len(d.Rules)+len(d.Masks))
	for _, r := range d.Rules {
		in = append(in, r.Variable())
	}
	for _, m := range d.Masks {
		in = append(in, m.By)
	}
	return in
}

// Arity is the number of risk coefficients the system's formula takes.
func (d *Definition) Arity() int { return len(d.defaults) }

// DefaultCoefficients returns a copy of the published risk-function coefficients.
func (d *Definition) DefaultCoefficients() Coefficients {
	return append(Coefficients(nil), d.defaults...)
}

// Lookup resolves a variable's rule for the given system.
func Lookup(s System, variable string) (Rule, error) {
	d, err := s.Definition()
	if err != nil {
		return nil, err
	}
	return d.Lookup(variable)
}

// ScoreVariable scores one variable's observations under system s.
func ScoreVariable(s System, variable string, obs Series) (Points, error) {
	r, err := Lookup(s, variable)
	if err != nil {
		return Absent, err
	}
	return r.Score(obs), nil
}

var admissionTypes = map[string]int{
	"ELECTIVE":  0,
	"EMERGENCY": 6,
	"URGENT":    6,
}

// SAPS II comorbidity categories in priority order.
var saps2Diagnoses = []CodeCategory{
	{
		Name:   "hiv_aids",
		Points: 17,
		Ranges: []CodeRange{{"042", "0449"}},
	},
	{
		Name:   "hematologic_malignancy",
		Points: 10,
		Ranges: []CodeRange{
			{"20000", "20238"},
			{"20240", "20248"},
			{"20250", "20382"},
			{"20400", "20522"},
			{"20580", "20702"},
			{"20720", "20892"},
		},
		Exact: []string{"2386", "2733"},
	},
	{
		Name:   "metastatic_cancer",
		Points: 9,
		Ranges: []CodeRange{{"1960", "1991"}, {"20970", "20975"}},
		Exact:  []string{"20979", "78951"},
	},
}

var inf = math.Inf(1)

var registry = map[System]*Definition{
	OASIS: {
		System: OASIS,
		Rules: []Rule{
			CategoricalExact{Name: VarAdmissionType, Values: admissionTypes},
			NumericInterval{Name: VarAge, Table: mustTable(
				[]float64{-1, 24, 53, 77, 89, 200}, []int{0, 3, 6, 9, 7})},
			NumericInterval{Name: VarGCSTotal, Table: mustTable(
				[]float64{-1, 7, 13, 14, 15}, []int{10, 4, 3, 0})},
			NumericInterval{Name: VarHeartRate, Table: mustTable(
				[]float64{-1, 32, 88, 106, 125, 300}, []int{4, 0, 1, 3, 6})},
			NumericInterval{Name: VarMeanBloodPressure, Table: mustTable(
				[]float64{-1, 20.65, 51.0, 61.33, 143.44, 350}, []int{4, 3, 2, 0, 3})},
			NumericInterval{Name: VarPreICULengthOfStay, Table: mustTable(
				[]float64{-0.01, 0.17, 4.95, 24.0, 311.8, 3650.0}, []int{5, 3, 0, 2, 1})},
			NumericInterval{Name: VarRespiratoryRate, Table: mustTable(
				[]float64{-1, 5, 12, 22, 29, 43, 200}, []int{10, 1, 0, 1, 6, 9})},
			NumericInterval{Name: VarTemperature, Table: mustTable(
				[]float64{-1, 33.22, 35.93, 36.39, 36.89, 39.88, 80.0}, []int{3, 4, 2, 0, 2, 6})},
			CumulativeSum{Name: VarUrineOutput, Table: mustTable(
				[]float64{-1, 671.09, 1427, 2544.14, 6896.8, 20000}, []int{10, 5, 1, 0, 8})},
			VentilationFlag{Name: VarVentilated, Points: 9},
		},
		defaults: Coefficients{-6.1746, 0.1275},
		risk:     logistic,
	},
	SAPS2: {
		System: SAPS2,
		Rules: []Rule{
			CategoricalExact{Name: VarAdmissionType, Values: admissionTypes},
			NumericInterval{Name: VarAge, Table: mustTable(
				[]float64{-1, 40, 60, 70, 75, 80, 200}, []int{0, 7, 12, 15, 16, 18})},
			NumericInterval{Name: VarBicarbonate, Table: mustTable(
				[]float64{-1, 15, 20, 200}, []int{5, 3, 0})},
			NumericInterval{Name: VarBilirubin, Table: mustTable(
				[]float64{-1, 4, 6, 40}, []int{0, 4, 9})},
			NumericInterval{Name: VarBloodUreaNitrogen, Table: mustTable(
				[]float64{-1, 28, 84, 200}, []int{0, 6, 10})},
			NumericInterval{Name: VarGCSTotal, Table: mustTable(
				[]float64{-1, 5, 8, 10, 13, 15}, []int{26, 13, 7, 5, 0})},
			NumericInterval{Name: VarHeartRate, Table: mustTable(
				[]float64{-1, 40, 70, 120, 160, 300}, []int{11, 2, 0, 4, 7})},
			DiagnosisCodeRange{Name: VarICD9, Categories: saps2Diagnoses},
			NumericInterval{Name: VarPotassium, Table: mustTable(
				[]float64{-1, 3, 5, 50}, []int{3, 0, 3})},
			NumericInterval{Name: VarSodium, Table: mustTable(
				[]float64{-1, 125, 145, 300}, []int{5, 0, 1})},
			NumericInterval{Name: VarSystolicBP, Table: mustTable(
				[]float64{-1, 70, 100, 200, 500}, []int{13, 5, 0, 2})},
			NumericInterval{Name: VarTemperature, Table: mustTable(
				[]float64{-1, 39, inf}, []int{0, 3})},
			CumulativeSum{Name: VarUrineOutput, Table: mustTable(
				[]float64{-1, 500, 1000, inf}, []int{11, 4, 0})},
			NumericInterval{Name: VarWhiteBloodCellCount, Table: mustTable(
				[]float64{-1, 1, 20, 200}, []int{12, 0, 3})},
		},
		// Intubated patients cannot give a verbal response; their GCS is taken as normal.
		Masks: []Mask{{
			Target: VarGCSTotal,
			By:     VarGCSVerbalResponse,
			Values: []string{"1.0 ET/TRACH", "NO RESPONSE-ETT", "ET/TRACH"},
		}},
		defaults: Coefficients{-7.7631, 0.0737, 0.9971},
		risk:     logLogistic,
	},
}
