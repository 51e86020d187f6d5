package model

import (
	"strconv"
	"strings"
)

// TimeseriesRow mirrors the Parquet schema of a stay's timeseries file. Column names
// are the canonical variable names.
type TimeseriesRow struct {
	Hours float64 `parquet:"hours"`

	AdmissionType     *string  `parquet:"admission_type,optional"`
	Age               *float64 `parquet:"age,optional"`
	GCSTotal          *float64 `parquet:"glasgow_coma_scale_total,optional"`
	GCSVerbalResponse *string  `parquet:"glasgow_coma_scale_verbal_response,optional"`
	HeartRate         *float64 `parquet:"heart_rate,optional"`
	MeanBloodPressure *float64 `parquet:"mean_blood_pressure,optional"`
	PreICULOS         *float64 `parquet:"prelos,optional"`
	RespiratoryRate   *float64 `parquet:"respiratory_rate,optional"`
	Temperature       *float64 `parquet:"temperature,optional"`
	UrineOutput       *float64 `parquet:"urine_output,optional"`
	Ventilated        *int32   `parquet:"ventilated,optional"`

	// Labs
	Bicarbonate         *float64 `parquet:"bicarbonate,optional"`
	Bilirubin           *float64 `parquet:"bilirubin,optional"`
	BloodUreaNitrogen   *float64 `parquet:"blood_urea_nitrogen,optional"`
	Potassium           *float64 `parquet:"potassium,optional"`
	Sodium              *float64 `parquet:"sodium,optional"`
	SystolicBP          *float64 `parquet:"systolic_blood_pressure,optional"`
	WhiteBloodCellCount *float64 `parquet:"white_blood_cell_count,optional"`

	ICD9 []string `parquet:"icd9,list"`
}

// Values returns every variable column as its text form; nil values become "".
// Diagnosis codes are joined with ';'.
func (r *TimeseriesRow) Values() map[string]string {
	return map[string]string{
		"admission_type":                     str(r.AdmissionType),
		"age":                                num(r.Age),
		"glasgow_coma_scale_total":           num(r.GCSTotal),
		"glasgow_coma_scale_verbal_response": str(r.GCSVerbalResponse),
		"heart_rate":                         num(r.HeartRate),
		"mean_blood_pressure":                num(r.MeanBloodPressure),
		"prelos":                             num(r.PreICULOS),
		"respiratory_rate":                   num(r.RespiratoryRate),
		"temperature":                        num(r.Temperature),
		"urine_output":                       num(r.UrineOutput),
		"ventilated":                         flag(r.Ventilated),
		"bicarbonate":                        num(r.Bicarbonate),
		"bilirubin":                          num(r.Bilirubin),
		"blood_urea_nitrogen":                num(r.BloodUreaNitrogen),
		"potassium":                          num(r.Potassium),
		"sodium":                             num(r.Sodium),
		"systolic_blood_pressure":            num(r.SystolicBP),
		"white_blood_cell_count":             num(r.WhiteBloodCellCount),
		"icd9":                               strings.Join(r.ICD9, ";"),
	}
}

func str(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func num(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func flag(v *int32) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(int(*v))
}
