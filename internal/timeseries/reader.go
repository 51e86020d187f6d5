package timeseries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gyeh/icuscore/internal/model"
	"github.com/gyeh/icuscore/internal/normalize"
)

// Delimiter infers the field separator from the file extension: .psv is pipe,
// .tsv is tab, anything else is comma.
func Delimiter(path string) rune {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".psv":
		return '|'
	case ".tsv":
		return '\t'
	default:
		return ','
	}
}

// IsParquet reports whether path names a Parquet stay file.
func IsParquet(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".parquet")
}

// Read loads a stay's timeseries. Headers of delimited files pass through aliases;
// Parquet files are read with canonical column names. The stay id is the file name.
func Read(path string, aliases normalize.Aliases) (*model.Timeseries, error) {
	var (
		ts  *model.Timeseries
		err error
	)
	if IsParquet(path) {
		ts, err = readParquet(path)
	} else {
		ts, err = readDelimited(path, aliases)
	}
	if err != nil {
		return nil, err
	}
	ts.Stay = filepath.Base(path)
	ts.Path = path
	return ts, nil
}

func readDelimited(path string, aliases normalize.Aliases) (*model.Timeseries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open timeseries: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = Delimiter(path)
	r.ReuseRecord = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty timeseries file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	names, hoursIdx, err := ResolveHeader(header, aliases)
	if err != nil {
		return nil, err
	}

	ts := &model.Timeseries{Columns: make(map[string][]string, len(names))}
	for row := 1; ; row++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		h, err := strconv.ParseFloat(strings.TrimSpace(record[hoursIdx]), 64)
		if err != nil || math.IsNaN(h) {
			return nil, fmt.Errorf("row %d: invalid %s value %q", row, names[hoursIdx], record[hoursIdx])
		}
		ts.Hours = append(ts.Hours, h)
		for i, v := range record {
			if i == hoursIdx {
				continue
			}
			ts.Columns[names[i]] = append(ts.Columns[names[i]], v)
		}
	}
	return ts, nil
}
