// mkfixture writes a synthetic ICU dataset: one directory per partition holding
// stay timeseries files and a listfile.csv with in-hospital mortality labels drawn
// from the OASIS risk of each stay's first day.
// Usage: go run ./cmd/mkfixture --out testdata/icu --stays 200 --format csv
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	goparquet "github.com/parquet-go/parquet-go"

	"github.com/gyeh/icuscore/internal/model"
	"github.com/gyeh/icuscore/internal/severity"
)

var delimiters = map[string]rune{"csv": ',', "psv": '|', "tsv": '\t'}

func main() {
	out := flag.String("out", "testdata/icu", "output dataset root")
	stays := flag.Int("stays", 200, "stays per partition")
	format := flag.String("format", "csv", "stay file format: csv, psv, tsv or parquet")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if _, ok := delimiters[*format]; !ok && *format != "parquet" {
		fmt.Fprintf(os.Stderr, "unknown format %q\n", *format)
		os.Exit(1)
	}

	rng := rand.New(rand.NewPCG(*seed, 0))
	def, _ := severity.OASIS.Definition()
	coefs := def.DefaultCoefficients()

	for _, partition := range []string{"test", "train"} {
		dir := filepath.Join(*out, partition)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "create %s: %v\n", dir, err)
			os.Exit(1)
		}

		labels := [][]string{{"stay", "y_true"}}
		positives := 0
		for i := 0; i < *stays; i++ {
			rows := genStay(rng)
			name := fmt.Sprintf("%d_episode1_timeseries.%s", 10000+i, *format)
			if err := writeStay(filepath.Join(dir, name), *format, rows); err != nil {
				fmt.Fprintf(os.Stderr, "write %s: %v\n", name, err)
				os.Exit(1)
			}

			res := def.Aggregate(firstDay(rows))
			p, _ := def.Risk(float64(res.Total), coefs)
			y := 0
			if rng.Float64() < p {
				y = 1
				positives++
			}
			labels = append(labels, []string{name, strconv.Itoa(y)})
		}
		if err := writeCSV(filepath.Join(dir, "listfile.csv"), ',', labels); err != nil {
			fmt.Fprintf(os.Stderr, "write listfile: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s: %d stays, %d deaths → %s\n", partition, *stays, positives, dir)
	}
}

func ptr[T any](v T) *T { return &v }

// genStay draws a stay with hourly vitals over the first 30 hours and a few
// pre-admission rows. Each variable is missing with some probability.
func genStay(rng *rand.Rand) []model.TimeseriesRow {
	sick := rng.Float64()
	age := 18 + rng.Float64()*75
	admission := []string{"ELECTIVE", "EMERGENCY", "URGENT"}[rng.IntN(3)]
	vent := int32(0)
	if rng.Float64() < sick*0.6 {
		vent = 1
	}
	var codes []string
	if rng.Float64() < 0.05 {
		codes = []string{"042"}
	} else if rng.Float64() < 0.08 {
		codes = []string{"1970", "4019"}
	}

	maybe := func(pMissing float64, v float64) *float64 {
		if rng.Float64() < pMissing {
			return nil
		}
		return &v
	}

	var rows []model.TimeseriesRow
	for h := -2.0; h <= 30; h++ {
		r := model.TimeseriesRow{
			Hours:             h + rng.Float64()*0.5,
			HeartRate:         maybe(0.1, 70+rng.NormFloat64()*15+sick*40),
			MeanBloodPressure: maybe(0.2, 85+rng.NormFloat64()*12-sick*30),
			RespiratoryRate:   maybe(0.15, 16+rng.NormFloat64()*4+sick*12),
			Temperature:       maybe(0.5, 36.8+rng.NormFloat64()*0.6+sick*1.2),
			GCSTotal:          maybe(0.7, float64(15-rng.IntN(1+int(sick*12)))),
			UrineOutput:       maybe(0.6, 80+rng.Float64()*60-sick*60),
			SystolicBP:        maybe(0.2, 120+rng.NormFloat64()*20-sick*40),
		}
		if h == 0 {
			r.AdmissionType = ptr(admission)
			r.Age = ptr(age)
			r.PreICULOS = ptr(rng.Float64() * 48)
			r.ICD9 = codes
			r.Bicarbonate = maybe(0.3, 24-sick*10+rng.NormFloat64()*2)
			r.Bilirubin = maybe(0.5, 0.8+sick*5*rng.Float64())
			r.BloodUreaNitrogen = maybe(0.3, 15+sick*60*rng.Float64())
			r.Potassium = maybe(0.3, 4+rng.NormFloat64()*0.6)
			r.Sodium = maybe(0.3, 139+rng.NormFloat64()*4)
			r.WhiteBloodCellCount = maybe(0.3, 9+sick*15*rng.Float64())
		}
		if vent == 1 && h >= 0 {
			r.Ventilated = ptr(vent)
			r.GCSVerbalResponse = ptr("No Response-ETT")
		}
		rows = append(rows, r)
	}
	return rows
}

// firstDay builds the scoring window of rows in (0, 24].
func firstDay(rows []model.TimeseriesRow) severity.Window {
	cols := make(map[string]severity.Series)
	for i := range rows {
		if rows[i].Hours <= 0 || rows[i].Hours > 24 {
			continue
		}
		for k, v := range rows[i].Values() {
			cols[k] = append(cols[k], v)
		}
	}
	return severity.Window{Columns: cols}
}

func writeStay(path, format string, rows []model.TimeseriesRow) error {
	if format == "parquet" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w := goparquet.NewGenericWriter[model.TimeseriesRow](f)
		if _, err := w.Write(rows); err != nil {
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		return f.Close()
	}

	var names []string
	for k := range rows[0].Values() {
		names = append(names, k)
	}
	sort.Strings(names)
	records := [][]string{append([]string{"Hours"}, names...)}
	for i := range rows {
		vals := rows[i].Values()
		rec := []string{strconv.FormatFloat(rows[i].Hours, 'f', 2, 64)}
		for _, n := range names {
			rec = append(rec, vals[n])
		}
		records = append(records, rec)
	}
	return writeCSV(path, delimiters[format], records)
}

func writeCSV(path string, comma rune, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	w.Comma = comma
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return f.Close()
}
