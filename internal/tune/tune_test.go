package tune

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/gyeh/icuscore/internal/config"
	"github.com/gyeh/icuscore/internal/severity"
)

// synthetic draws n stays whose outcome follows risk(score) under c.
func synthetic(n int, sys severity.System, c severity.Coefficients, seed uint64) []Sample {
	def, _ := sys.Definition()
	rng := rand.New(rand.NewPCG(seed, 1))
	out := make([]Sample, n)
	for i := range out {
		score := float64(rng.IntN(80))
		p, _ := def.Risk(score, c)
		y := 0
		if rng.Float64() < p {
			y = 1
		}
		out[i] = Sample{Stay: "s" + strconv.Itoa(i), Score: score, Label: y}
	}
	return out
}

func TestStratifiedSplit(t *testing.T) {
	labels := make([]int, 100)
	for i := range 20 {
		labels[i*5] = 1
	}
	train, test, err := StratifiedSplit(labels, 0.1, 7)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(test) != 10 || len(train) != 90 {
		t.Fatalf("sizes: train %d, test %d", len(train), len(test))
	}
	seen := make(map[int]bool)
	pos := 0
	for _, i := range append(append([]int(nil), train...), test...) {
		if seen[i] {
			t.Fatalf("index %d appears twice", i)
		}
		seen[i] = true
	}
	for _, i := range test {
		pos += labels[i]
	}
	if pos != 2 {
		t.Errorf("held-out positives: got %d, want 2", pos)
	}

	train2, test2, _ := StratifiedSplit(labels, 0.1, 7)
	for i := range test {
		if test[i] != test2[i] {
			t.Fatal("same seed must give the same split")
		}
	}
	if len(train2) != len(train) {
		t.Fatal("same seed must give the same split")
	}
}

func TestStratifiedSplit_SeedsDiffer(t *testing.T) {
	labels := make([]int, 200)
	for i := range 50 {
		labels[i] = 1
	}
	_, a, _ := StratifiedSplit(labels, 0.1, 0)
	_, b, _ := StratifiedSplit(labels, 0.1, 1)
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
		}
	}
	if same {
		t.Error("different seeds produced identical held-out sets")
	}
}

func TestStratifiedSplit_Errors(t *testing.T) {
	cases := map[string][]int{
		"single class":     {0, 0, 0, 0, 0, 0},
		"lone positive":    {0, 0, 0, 0, 0, 1},
		"too few for both": {0, 1, 0, 1},
	}
	for name, labels := range cases {
		t.Run(name, func(t *testing.T) {
			frac := 0.1
			if name == "too few for both" {
				frac = 0.9
			}
			_, _, err := StratifiedSplit(labels, frac, 0)
			var se *StratificationError
			if !errors.As(err, &se) || !errors.Is(err, ErrStratification) {
				t.Fatalf("expected StratificationError, got %v", err)
			}
		})
	}
}

func logLoss(x []float64, y []int, b severity.Coefficients) float64 {
	loss := 0.5 * b[1] * b[1]
	for i := range x {
		z := b[0] + b[1]*x[i]
		if y[i] == 1 {
			loss += softplus(-z)
		} else {
			loss += softplus(z)
		}
	}
	return loss
}

func TestFitLogistic_RecoversParameters(t *testing.T) {
	truth := severity.Coefficients{-4, 0.1}
	samples := synthetic(4000, severity.OASIS, truth, 3)
	x, y := gather(samples, seq(len(samples)))

	got, err := FitLogistic(x, y)
	if err != nil {
		t.Fatalf("FitLogistic: %v", err)
	}
	if math.Abs(got[1]-truth[1]) > 0.03 || math.Abs(got[0]-truth[0]) > 1 {
		t.Errorf("fit %v too far from %v", got, truth)
	}
	if logLoss(x, y, got) > logLoss(x, y, truth)+1e-6 {
		t.Errorf("fitted loss %v exceeds loss at truth %v", logLoss(x, y, got), logLoss(x, y, truth))
	}
}

func TestFitCurve_ImprovesOnStart(t *testing.T) {
	def, _ := severity.SAPS2.Definition()
	samples := synthetic(1500, severity.SAPS2, severity.Coefficients{-6, 0.05, 0.5}, 5)
	x, y := gather(samples, seq(len(samples)))

	start := def.DefaultCoefficients()
	got, err := FitCurve(def.RiskFunc(), x, y, start)
	if err != nil {
		t.Fatalf("FitCurve: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("arity: got %d", len(got))
	}
	sse := func(c severity.Coefficients) float64 {
		var s float64
		for i := range x {
			d := def.RiskFunc()(x[i], c) - float64(y[i])
			s += d * d
		}
		return s
	}
	if sse(got) > sse(start) {
		t.Errorf("fit SSE %v worse than start %v", sse(got), sse(start))
	}
	if start[0] != -7.7631 {
		t.Error("start coefficients were modified")
	}
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestTune_DeterministicAndOrdered(t *testing.T) {
	samples := synthetic(400, severity.OASIS, severity.Coefficients{-4, 0.1}, 11)
	opts := Options{Trials: 10, TestFraction: 0.1, Workers: 4}

	a, err := Tune(context.Background(), severity.OASIS, samples, opts)
	if err != nil {
		t.Fatalf("Tune: %v", err)
	}
	b, err := Tune(context.Background(), severity.OASIS, samples, Options{Trials: 10, TestFraction: 0.1, Workers: 1})
	if err != nil {
		t.Fatalf("Tune: %v", err)
	}
	if len(a) != 10 {
		t.Fatalf("trials: got %d", len(a))
	}
	for i := range a {
		if a[i].Index != i || a[i].Seed != uint64(i) {
			t.Errorf("trial %d out of order: %+v", i, a[i])
		}
		if a[i].Err != nil {
			t.Fatalf("trial %d: %v", i, a[i].Err)
		}
		if a[i].TestSize != 40 || a[i].TrainSize != 360 {
			t.Errorf("trial %d sizes: %d/%d", i, a[i].TrainSize, a[i].TestSize)
		}
		for j := range a[i].Coefficients {
			if a[i].Coefficients[j] != b[i].Coefficients[j] {
				t.Errorf("trial %d not reproducible: %v vs %v", i, a[i].Coefficients, b[i].Coefficients)
			}
		}
		if a[i].TestBrier <= 0 || a[i].TestBrier >= 1 {
			t.Errorf("trial %d brier %v out of range", i, a[i].TestBrier)
		}
	}
}

func TestTune_SAPS2(t *testing.T) {
	samples := synthetic(300, severity.SAPS2, severity.Coefficients{-7.7631, 0.0737, 0.9971}, 2)
	trials, err := Tune(context.Background(), severity.SAPS2, samples, Options{Trials: 3, TestFraction: 0.1, Workers: 2})
	if err != nil {
		t.Fatalf("Tune: %v", err)
	}
	for _, tr := range Succeeded(trials) {
		if len(tr.Coefficients) != 3 {
			t.Errorf("trial %d arity %d", tr.Index, len(tr.Coefficients))
		}
	}
}

func TestTune_StratificationError(t *testing.T) {
	samples := []Sample{{Stay: "a", Score: 1}, {Stay: "b", Score: 2}, {Stay: "c", Score: 3}}
	_, err := Tune(context.Background(), severity.OASIS, samples, DefaultOptions())
	if !errors.Is(err, ErrStratification) {
		t.Fatalf("expected ErrStratification, got %v", err)
	}
}

func TestTune_Errors(t *testing.T) {
	if _, err := Tune(context.Background(), severity.OASIS, nil, DefaultOptions()); !errors.Is(err, ErrNoSamples) {
		t.Errorf("empty samples: got %v", err)
	}
	if _, err := Tune(context.Background(), severity.System(99), []Sample{{}}, DefaultOptions()); !errors.Is(err, severity.ErrUnrecognizedScoreSystem) {
		t.Errorf("bad system: got %v", err)
	}
	bad := []Sample{{Stay: "a", Label: 2}}
	if _, err := Tune(context.Background(), severity.OASIS, bad, DefaultOptions()); err == nil {
		t.Error("expected error for non-binary label")
	}
}

func TestTune_TrialFailureIsolated(t *testing.T) {
	orig := fitters[severity.OASIS]
	t.Cleanup(func() { fitters[severity.OASIS] = orig })
	fitters[severity.OASIS] = func(*severity.Definition, []float64, []int) (severity.Coefficients, error) {
		return nil, errors.New("boom")
	}

	samples := synthetic(200, severity.OASIS, severity.Coefficients{-4, 0.1}, 4)
	trials, err := Tune(context.Background(), severity.OASIS, samples, Options{Trials: 4, TestFraction: 0.1, Workers: 2})
	if err != nil {
		t.Fatalf("Tune: %v", err)
	}
	if len(trials) != 4 {
		t.Fatalf("trials: got %d", len(trials))
	}
	for _, tr := range trials {
		if tr.Err == nil || tr.Coefficients != nil {
			t.Errorf("trial %d should carry its error: %+v", tr.Index, tr)
		}
	}
	if len(Succeeded(trials)) != 0 {
		t.Error("no trial should succeed")
	}
}

func TestCoefficientsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coefs", "oasis.csv")
	trials := []Trial{
		{Index: 0, Coefficients: severity.Coefficients{-6, 0.1}},
		{Index: 1, Err: errors.New("failed")},
		{Index: 2, Coefficients: severity.Coefficients{-4, 0.3}},
	}
	n, err := WriteCoefficients(path, 2, trials)
	if err != nil {
		t.Fatalf("WriteCoefficients: %v", err)
	}
	if n != 2 {
		t.Errorf("rows written: got %d", n)
	}
	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "b0,b1\n") {
		t.Errorf("header: %q", data)
	}

	sets, err := ReadCoefficients(path)
	if err != nil {
		t.Fatalf("ReadCoefficients: %v", err)
	}
	mean := Mean(sets)
	if math.Abs(mean[0]+5) > 1e-12 || math.Abs(mean[1]-0.2) > 1e-12 {
		t.Errorf("mean: got %v", mean)
	}
	stats := Summarize(sets)
	if stats[0].Name != "b0" || math.Abs(stats[0].StdDev-math.Sqrt2) > 1e-9 {
		t.Errorf("b0 stats: %+v", stats[0])
	}
}

func TestReadCoefficients_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saps2.csv")
	os.WriteFile(path, []byte("b0,b1,b2\n"), 0644)
	if _, err := ReadCoefficients(path); !errors.Is(err, severity.ErrInvalidCoefficients) {
		t.Errorf("expected ErrInvalidCoefficients, got %v", err)
	}
}

func TestJoin(t *testing.T) {
	dir := t.TempDir()
	scores := filepath.Join(dir, "train_oasis_scores.csv")
	list := filepath.Join(dir, "listfile.csv")
	os.WriteFile(scores, []byte("stay,score\na.csv,10\nb.csv,30\nc.csv,5\n"), 0644)
	os.WriteFile(list, []byte("stay,y_true\nb.csv,1\na.csv,0\n"), 0644)

	s, err := ReadScores(scores)
	if err != nil {
		t.Fatal(err)
	}
	l, err := ReadLabels(list)
	if err != nil {
		t.Fatal(err)
	}
	samples, unlabeled := Join(s, l)
	if len(samples) != 2 || samples[1].Stay != "b.csv" || samples[1].Label != 1 || samples[1].Score != 30 {
		t.Errorf("samples: %+v", samples)
	}
	if len(unlabeled) != 1 || unlabeled[0] != "c.csv" {
		t.Errorf("unlabeled: %v", unlabeled)
	}
}

func TestReadLabels_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listfile.csv")
	os.WriteFile(path, []byte("stay,y_true\na.csv,2\n"), 0644)
	if _, err := ReadLabels(path); err == nil {
		t.Fatal("expected error for label 2")
	}
}

func writeTrainingSet(t *testing.T, samples []Sample) (scoresDir, listFile string) {
	t.Helper()
	scoresDir = t.TempDir()
	var sb, lb strings.Builder
	sb.WriteString("stay,score\n")
	lb.WriteString("stay,y_true\n")
	for _, s := range samples {
		sb.WriteString(s.Stay + "," + strconv.FormatFloat(s.Score, 'f', -1, 64) + "\n")
		lb.WriteString(s.Stay + "," + strconv.Itoa(s.Label) + "\n")
	}
	if err := os.WriteFile(ScoresPath(scoresDir, severity.OASIS), []byte(sb.String()), 0644); err != nil {
		t.Fatal(err)
	}
	listFile = filepath.Join(scoresDir, "listfile.csv")
	if err := os.WriteFile(listFile, []byte(lb.String()), 0644); err != nil {
		t.Fatal(err)
	}
	return scoresDir, listFile
}

func TestRun(t *testing.T) {
	samples := synthetic(300, severity.OASIS, severity.Coefficients{-4, 0.1}, 9)
	scoresDir, listFile := writeTrainingSet(t, samples)
	coefsDir := t.TempDir()

	cfg := &config.Config{System: "oasis", ScoresDir: scoresDir, ListFile: listFile, CoefsDir: coefsDir, Workers: 2}
	sum, err := Run(context.Background(), zerolog.Nop(), cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Samples != 300 || sum.RowsWritten != 10 || len(sum.Stats) != 2 {
		t.Errorf("summary: %+v", sum)
	}
	if sum.ScoresSHA256 == "" {
		t.Error("scores hash missing")
	}

	cfg.CoefsPath = CoefficientsPath(coefsDir, severity.OASIS)
	def, _ := severity.OASIS.Definition()
	c, src, err := Resolve(cfg, def)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if src != cfg.CoefsPath || len(c) != 2 || c[0] != sum.Stats[0].Mean {
		t.Errorf("resolved %v from %s", c, src)
	}
}

func TestResolve_Fallbacks(t *testing.T) {
	def, _ := severity.SAPS2.Definition()
	c, src, err := Resolve(&config.Config{}, def)
	if err != nil || src != "published" || c[0] != -7.7631 {
		t.Errorf("published: %v %s %v", c, src, err)
	}
	cfg := &config.Config{Coefficients: map[string][]float64{"saps2": {-1, 0.1, 0.2}}}
	c, src, err = Resolve(cfg, def)
	if err != nil || src != "profile" || c[0] != -1 {
		t.Errorf("profile: %v %s %v", c, src, err)
	}
}

func TestResolve_ArityMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oasis.csv")
	os.WriteFile(path, []byte("b0,b1\n-6,0.1\n"), 0644)
	def, _ := severity.SAPS2.Definition()
	if _, _, err := Resolve(&config.Config{CoefsPath: path}, def); !errors.Is(err, severity.ErrInvalidCoefficients) {
		t.Errorf("expected ErrInvalidCoefficients, got %v", err)
	}
}
