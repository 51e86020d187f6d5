package batch

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// WriteScores writes a `stay,score[,risk]` file in the order given.
func WriteScores(path string, scores []StayScore, withRisk bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	defer os.Remove(tmp)

	w := csv.NewWriter(f)
	header := []string{"stay", "score"}
	if withRisk {
		header = append(header, "risk")
	}
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	for _, s := range scores {
		rec := []string{s.Stay, strconv.Itoa(s.Result.Total)}
		if withRisk {
			r := ""
			if s.Risk != nil {
				r = strconv.FormatFloat(*s.Risk, 'g', -1, 64)
			}
			rec = append(rec, r)
		}
		if err := w.Write(rec); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
