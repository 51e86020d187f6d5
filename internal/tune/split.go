package tune

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

// ErrStratification is wrapped by every StratificationError.
var ErrStratification = errors.New("cannot stratify split")

// StratificationError reports a split that cannot keep both outcome classes on
// both sides.
type StratificationError struct {
	Counts map[int]int
	Reason string
}

func (e *StratificationError) Error() string {
	return fmt.Sprintf("%s: %s (class counts %v)", ErrStratification, e.Reason, e.Counts)
}

func (e *StratificationError) Unwrap() error {
	return ErrStratification
}

// StratifiedSplit partitions sample indices into train and held-out sets with the
// held-out share of each class proportional to testFraction. The same labels, fraction
// and seed always yield the same split. Returned indices are sorted.
func StratifiedSplit(labels []int, testFraction float64, seed uint64) (train, test []int, err error) {
	byClass := make(map[int][]int)
	for i, y := range labels {
		byClass[y] = append(byClass[y], i)
	}
	counts := make(map[int]int, len(byClass))
	classes := make([]int, 0, len(byClass))
	for c, idx := range byClass {
		counts[c] = len(idx)
		classes = append(classes, c)
	}
	sort.Ints(classes)

	n := len(labels)
	if len(classes) < 2 {
		return nil, nil, &StratificationError{Counts: counts, Reason: "need both outcome classes"}
	}
	for _, c := range classes {
		if counts[c] < 2 {
			return nil, nil, &StratificationError{Counts: counts, Reason: fmt.Sprintf("class %d has fewer than 2 members", c)}
		}
	}
	nTest := int(math.Ceil(testFraction * float64(n)))
	if nTest < len(classes) || n-nTest < len(classes) {
		return nil, nil, &StratificationError{Counts: counts, Reason: fmt.Sprintf("held-out size %d of %d cannot hold every class", nTest, n)}
	}

	rng := rand.New(rand.NewPCG(seed, 0))
	for _, c := range classes {
		idx := append([]int(nil), byClass[c]...)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		k := int(math.Round(float64(nTest) * float64(len(idx)) / float64(n)))
		k = max(1, min(k, len(idx)-1))
		test = append(test, idx[:k]...)
		train = append(train, idx[k:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}
