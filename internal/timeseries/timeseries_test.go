package timeseries

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	goparquet "github.com/parquet-go/parquet-go"

	"github.com/gyeh/icuscore/internal/model"
	"github.com/gyeh/icuscore/internal/normalize"
	"github.com/gyeh/icuscore/internal/severity"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDelimiter(t *testing.T) {
	cases := map[string]rune{
		"a.psv":      '|',
		"a.TSV":      '\t',
		"a.csv":      ',',
		"a.txt":      ',',
		"timeseries": ',',
	}
	for path, want := range cases {
		if got := Delimiter(path); got != want {
			t.Errorf("Delimiter(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestRead_CSVWithAliases(t *testing.T) {
	path := writeFile(t, "1234_episode1_timeseries.csv",
		"Hours,Heart Rate,Temp,Glasgow coma scale total,Capillary refill rate\n"+
			"-2.0,80,,15,0\n"+
			"1.5,100,37.1,,\n"+
			"30.0,140,39.0,,\n")

	ts, err := Read(path, normalize.DefaultAliases())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if ts.Stay != "1234_episode1_timeseries.csv" {
		t.Errorf("stay id: got %q", ts.Stay)
	}
	if ts.NumRows() != 3 {
		t.Fatalf("rows: got %d, want 3", ts.NumRows())
	}
	if got := ts.Columns[severity.VarHeartRate]; len(got) != 3 || got[1] != "100" {
		t.Errorf("heart rate column: %v", got)
	}
	if _, ok := ts.Columns[severity.VarTemperature]; !ok {
		t.Error("Temp should resolve to temperature")
	}
	if _, ok := ts.Columns["capillary_refill_rate"]; !ok {
		t.Error("unknown columns are kept under their normalized name")
	}
}

func TestRead_PipeDelimited(t *testing.T) {
	path := writeFile(t, "stay.psv", "hours|age|icd9\n1|30|042,1970\n")
	ts, err := Read(path, normalize.DefaultAliases())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := ts.Columns[severity.VarICD9]; len(got) != 1 || got[0] != "042,1970" {
		t.Errorf("icd9 column: %v", got)
	}
}

func TestRead_MissingHours(t *testing.T) {
	path := writeFile(t, "stay.csv", "Heart Rate\n80\n")
	if _, err := Read(path, normalize.DefaultAliases()); err == nil {
		t.Fatal("expected error for missing hours column")
	}
}

func TestRead_BadHours(t *testing.T) {
	path := writeFile(t, "stay.csv", "Hours,Heart Rate\nabc,80\n")
	if _, err := Read(path, normalize.DefaultAliases()); err == nil {
		t.Fatal("expected error for unparseable hours")
	}
}

func TestRead_DuplicateCanonical(t *testing.T) {
	path := writeFile(t, "stay.csv", "Hours,HR,Heart Rate\n1,80,81\n")
	if _, err := Read(path, normalize.DefaultAliases()); err == nil {
		t.Fatal("expected error when two headers map to the same variable")
	}
}

func TestRead_Parquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stay.parquet")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	age := 30.0
	hr := 100.0
	vent := int32(1)
	rows := []model.TimeseriesRow{
		{Hours: 1, Age: &age, HeartRate: &hr, Ventilated: &vent, ICD9: []string{"042"}},
		{Hours: 2},
	}
	w := goparquet.NewGenericWriter[model.TimeseriesRow](f)
	if _, err := w.Write(rows); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	f.Close()

	ts, err := Read(path, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if ts.NumRows() != 2 {
		t.Fatalf("rows: got %d", ts.NumRows())
	}
	if got := ts.Columns[severity.VarAge]; got[0] != "30" || got[1] != "" {
		t.Errorf("age column: %v", got)
	}
	if got := ts.Columns[severity.VarVentilated]; got[0] != "1" {
		t.Errorf("ventilated column: %v", got)
	}
	if got := ts.Columns[severity.VarICD9]; got[0] != "042" {
		t.Errorf("icd9 column: %v", got)
	}
}

func stay(hours []float64, hr []string) *model.Timeseries {
	return &model.Timeseries{Hours: hours, Columns: map[string][]string{severity.VarHeartRate: hr}}
}

func TestWindow_First24Hours(t *testing.T) {
	w, err := Window(stay([]float64{-3, 0, 0.5, 24, 24.5}, []string{"a", "b", "c", "d", "e"}))
	if err != nil {
		t.Fatal(err)
	}
	got := w.Series(severity.VarHeartRate)
	if len(got) != 2 || got[0] != "c" || got[1] != "d" {
		t.Errorf("window rows: got %v, want [c d]", got)
	}
}

func TestWindow_FallsBackToLastPreAdmissionRow(t *testing.T) {
	w, err := Window(stay([]float64{-5, -1, 0, 30}, []string{"a", "b", "c", "d"}))
	if err != nil {
		t.Fatal(err)
	}
	got := w.Series(severity.VarHeartRate)
	if len(got) != 1 || got[0] != "b" {
		t.Errorf("fallback row: got %v, want [b]", got)
	}
}

func TestWindow_Missing(t *testing.T) {
	for _, hours := range [][]float64{{25, 30}, {}, {0}} {
		hr := make([]string, len(hours))
		_, err := Window(stay(hours, hr))
		if !errors.Is(err, severity.ErrMissingRequiredWindow) {
			t.Errorf("hours %v: expected ErrMissingRequiredWindow, got %v", hours, err)
		}
	}
}
