package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gyeh/icuscore/internal/config"
	"github.com/gyeh/icuscore/internal/normalize"
	"github.com/gyeh/icuscore/internal/severity"
	"github.com/gyeh/icuscore/internal/tune"
)

// ListFileName is the per-partition label file, never scored as a stay.
const ListFileName = "listfile.csv"

// Partition is one dataset split and its stay files in name order.
type Partition struct {
	Name  string
	Dir   string
	Files []string
}

// PreflightResult holds all context resolved before any stay is scored.
type PreflightResult struct {
	RunID      uuid.UUID
	System     severity.System
	Definition *severity.Definition
	Aliases    normalize.Aliases
	// Coefficients is nil unless risk output was requested.
	Coefficients severity.Coefficients
	CoefSource   string
	Partitions   []Partition
}

// Preflight resolves the score system, risk coefficients and the stay files of
// every partition.
func Preflight(log zerolog.Logger, cfg *config.Config) (*PreflightResult, error) {
	start := time.Now()

	sys, err := cfg.ScoreSystem()
	if err != nil {
		return nil, err
	}
	def, err := sys.Definition()
	if err != nil {
		return nil, err
	}
	pf := &PreflightResult{
		RunID:      uuid.New(),
		System:     sys,
		Definition: def,
		Aliases:    cfg.AliasMap(),
	}
	if cfg.WithRisk {
		pf.Coefficients, pf.CoefSource, err = tune.Resolve(cfg, def)
		if err != nil {
			return nil, fmt.Errorf("resolve coefficients: %w", err)
		}
	}

	total := 0
	for _, name := range cfg.Partitions {
		dir := filepath.Join(cfg.DataRoot, name)
		files, err := ListStays(dir)
		if err != nil {
			return nil, fmt.Errorf("partition %s: %w", name, err)
		}
		pf.Partitions = append(pf.Partitions, Partition{Name: name, Dir: dir, Files: files})
		total += len(files)
	}

	ev := log.Info().
		Str("system", sys.String()).
		Str("data_root", cfg.DataRoot).
		Strs("partitions", cfg.Partitions).
		Int("stays", total)
	if pf.Coefficients != nil {
		ev = ev.Floats64("coefficients", pf.Coefficients).Str("coef_source", pf.CoefSource)
	}
	ev.Dur("duration", time.Since(start)).Msg("preflight complete")
	return pf, nil
}

// ListStays returns the stay files of a partition directory sorted by name.
// Subdirectories, hidden files and the listfile are skipped.
func ListStays(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list stays: %w", err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.EqualFold(name, ListFileName) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}
