package timeseries

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/gyeh/icuscore/internal/model"
)

// ParquetReader wraps a parquet GenericReader for streaming TimeseriesRow records.
type ParquetReader struct {
	file   *os.File
	reader *parquet.GenericReader[model.TimeseriesRow]
}

// OpenParquet opens a Parquet stay file and returns a streaming reader.
func OpenParquet(path string) (*ParquetReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat parquet file: %w", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	r := parquet.NewGenericReader[model.TimeseriesRow](pf)
	return &ParquetReader{file: f, reader: r}, nil
}

// NumRows returns the total number of rows in the Parquet file.
func (r *ParquetReader) NumRows() int64 {
	return r.reader.NumRows()
}

// Read reads up to len(rows) records into the provided slice.
// Returns the number of rows read and io.EOF when done.
func (r *ParquetReader) Read(rows []model.TimeseriesRow) (int, error) {
	n, err := r.reader.Read(rows)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("read parquet rows: %w", err)
	}
	return n, err
}

// Schema returns the Parquet schema for validation.
func (r *ParquetReader) Schema() *parquet.Schema {
	return r.reader.Schema()
}

// Close releases all resources.
func (r *ParquetReader) Close() error {
	if err := r.reader.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

const readBatchSize = 256

func readParquet(path string) (*model.Timeseries, error) {
	r, err := OpenParquet(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if err := ValidateSchema(r.Schema()); err != nil {
		return nil, err
	}

	ts := &model.Timeseries{
		Hours:   make([]float64, 0, r.NumRows()),
		Columns: make(map[string][]string),
	}
	buf := make([]model.TimeseriesRow, readBatchSize)
	for {
		n, readErr := r.Read(buf)
		for i := 0; i < n; i++ {
			ts.Hours = append(ts.Hours, buf[i].Hours)
			for name, v := range buf[i].Values() {
				ts.Columns[name] = append(ts.Columns[name], v)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, readErr
		}
	}
	return ts, nil
}
