package severity

import (
	"fmt"
	"math"
	"sort"
)

// Bucket is one right-closed interval (previous upper, Upper] and its points.
type Bucket struct {
	Upper  float64
	Points int
}

// IntervalTable maps a numeric value to points through contiguous right-closed
// intervals starting just above Lower.
type IntervalTable struct {
	Lower   float64
	Buckets []Bucket
}

// NewIntervalTable builds a table from n+1 strictly increasing boundaries and n points.
func NewIntervalTable(bounds []float64, points []int) (IntervalTable, error) {
	if len(bounds) < 2 {
		return IntervalTable{}, fmt.Errorf("interval table needs at least 2 boundaries, got %d", len(bounds))
	}
	if len(points) != len(bounds)-1 {
		return IntervalTable{}, fmt.Errorf("interval table has %d boundaries but %d point values", len(bounds), len(points))
	}
	for i := 1; i < len(bounds); i++ {
		if !(bounds[i] > bounds[i-1]) {
			return IntervalTable{}, fmt.Errorf("boundaries not strictly increasing at index %d (%v <= %v)", i, bounds[i], bounds[i-1])
		}
	}
	t := IntervalTable{Lower: bounds[0], Buckets: make([]Bucket, len(points))}
	for i, p := range points {
		t.Buckets[i] = Bucket{Upper: bounds[i+1], Points: p}
	}
	return t, nil
}

func mustTable(bounds []float64, points []int) IntervalTable {
	t, err := NewIntervalTable(bounds, points)
	if err != nil {
		panic(err)
	}
	return t
}

// Points returns the points of the interval containing v. ok is false when v is NaN
// or falls outside (Lower, last Upper].
func (t IntervalTable) Points(v float64) (points int, ok bool) {
	if math.IsNaN(v) || v <= t.Lower || len(t.Buckets) == 0 {
		return 0, false
	}
	i := sort.Search(len(t.Buckets), func(i int) bool { return t.Buckets[i].Upper >= v })
	if i == len(t.Buckets) {
		return 0, false
	}
	return t.Buckets[i].Points, true
}

// Bounds returns the boundary list the table was built from.
func (t IntervalTable) Bounds() []float64 {
	b := make([]float64, 0, len(t.Buckets)+1)
	b = append(b, t.Lower)
	for _, bk := range t.Buckets {
		b = append(b, bk.Upper)
	}
	return b
}
