package model

import "time"

// StayError records a stay that could not be scored.
type StayError struct {
	Partition string
	Stay      string
	Err       error
}

func (e StayError) Error() string {
	return e.Partition + "/" + e.Stay + ": " + e.Err.Error()
}

func (e StayError) Unwrap() error {
	return e.Err
}

// PartitionSummary captures the outcome of scoring one partition.
type PartitionSummary struct {
	Partition     string
	OutputPath    string
	StaysFound    int
	StaysScored   int
	WindowMissing int
	Errors        []StayError
	Duration      time.Duration
}

// RunSummary captures metrics from a single scoring run.
type RunSummary struct {
	RunID         string
	System        string
	DataRoot      string
	Partitions    []PartitionSummary
	RowsPersisted int64
	DurationTotal time.Duration
}

// Failed returns every per-stay failure across partitions.
func (s *RunSummary) Failed() []StayError {
	var out []StayError
	for _, p := range s.Partitions {
		out = append(out, p.Errors...)
	}
	return out
}

// Scored returns the number of stays with a written score.
func (s *RunSummary) Scored() int {
	n := 0
	for _, p := range s.Partitions {
		n += p.StaysScored
	}
	return n
}
