package tune

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/gyeh/icuscore/internal/severity"
)

// ScoreEntry is one row of a batch scores file.
type ScoreEntry struct {
	Stay  string
	Score float64
}

// ReadScores reads a `stay,score[,risk]` file written by the batch scorer.
func ReadScores(path string) ([]ScoreEntry, error) {
	records, err := readTable(path, "stay", "score")
	if err != nil {
		return nil, err
	}
	out := make([]ScoreEntry, 0, len(records))
	for i, rec := range records {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: score %q: %w", path, i+2, rec[1], err)
		}
		out = append(out, ScoreEntry{Stay: rec[0], Score: v})
	}
	return out, nil
}

// ReadLabels reads a `stay,y_true` listfile into a stay → label map.
func ReadLabels(path string) (map[string]int, error) {
	records, err := readTable(path, "stay", "y_true")
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(records))
	for i, rec := range records {
		v, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil || (v != 0 && v != 1) {
			return nil, fmt.Errorf("%s row %d: label %q must be 0 or 1", path, i+2, rec[1])
		}
		out[rec[0]] = v
	}
	return out, nil
}

// Join pairs scores with labels by stay id. Stays without a label are returned in
// unlabeled and left out of the samples.
func Join(scores []ScoreEntry, labels map[string]int) (samples []Sample, unlabeled []string) {
	for _, s := range scores {
		y, ok := labels[s.Stay]
		if !ok {
			unlabeled = append(unlabeled, s.Stay)
			continue
		}
		samples = append(samples, Sample{Stay: s.Stay, Score: s.Score, Label: y})
	}
	return samples, unlabeled
}

func coefficientHeader(arity int) []string {
	h := make([]string, arity)
	for i := range h {
		h[i] = "b" + strconv.Itoa(i)
	}
	return h
}

// WriteCoefficients writes one `b0,b1[,b2]` row per successful trial, in trial order.
func WriteCoefficients(path string, arity int, trials []Trial) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create coefficient dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(coefficientHeader(arity)); err != nil {
		return 0, err
	}
	n := 0
	for _, t := range Succeeded(trials) {
		row := make([]string, len(t.Coefficients))
		for i, c := range t.Coefficients {
			row[i] = strconv.FormatFloat(c, 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return n, err
		}
		n++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return n, fmt.Errorf("write %s: %w", path, err)
	}
	return n, f.Close()
}

// ReadCoefficients reads a coefficient table written by WriteCoefficients.
func ReadCoefficients(path string) ([]severity.Coefficients, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}
	var out []severity.Coefficients
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		c := make(severity.Coefficients, len(header))
		for i, cell := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %s: %w", path, line, header[i], err)
			}
			c[i] = v
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", path, severity.ErrInvalidCoefficients)
	}
	return out, nil
}

// Stat is the spread of one coefficient across trials.
type Stat struct {
	Name   string
	Mean   float64
	StdDev float64
}

// Summarize returns per-coefficient mean and sample standard deviation.
func Summarize(sets []severity.Coefficients) []Stat {
	if len(sets) == 0 {
		return nil
	}
	arity := len(sets[0])
	out := make([]Stat, arity)
	col := make([]float64, len(sets))
	for j := 0; j < arity; j++ {
		for i, c := range sets {
			col[i] = c[j]
		}
		out[j].Name = "b" + strconv.Itoa(j)
		if len(col) == 1 {
			out[j].Mean = col[0]
			continue
		}
		out[j].Mean, out[j].StdDev = stat.MeanStdDev(col, nil)
	}
	return out
}

// Mean is the element-wise mean of sets, the coefficient set the risk transform uses.
func Mean(sets []severity.Coefficients) severity.Coefficients {
	stats := Summarize(sets)
	if stats == nil {
		return nil
	}
	out := make(severity.Coefficients, len(stats))
	for i, s := range stats {
		out[i] = s.Mean
	}
	return out
}

func readTable(path string, want ...string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}
	idx := make([]int, len(want))
	for i, name := range want {
		idx[i] = -1
		for j, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return nil, fmt.Errorf("%s: missing column %q", path, name)
		}
	}

	var out [][]string
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		row := make([]string, len(want))
		for i, j := range idx {
			if j >= len(rec) {
				return nil, fmt.Errorf("%s line %d: missing %s", path, line, want[i])
			}
			row[i] = rec[j]
		}
		out = append(out, row)
	}
	return out, nil
}
