package severity

import (
	"fmt"
	"strings"
)

// System identifies a supported severity score.
type System int

const (
	OASIS System = iota + 1
	SAPS2
)

// AllSystems lists the supported systems in canonical order.
var AllSystems = []System{OASIS, SAPS2}

// String returns the lowercase name used on the command line and in file names.
func (s System) String() string {
	switch s {
	case OASIS:
		return "oasis"
	case SAPS2:
		return "saps2"
	default:
		return fmt.Sprintf("System(%d)", int(s))
	}
}

// ParseSystem resolves a system name such as "oasis" or "SAPS2".
func ParseSystem(name string) (System, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, s := range AllSystems {
		if s.String() == n {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q (want one of oasis, saps2)", ErrUnrecognizedScoreSystem, name)
}

// Definition returns the immutable registry entry for s.
func (s System) Definition() (*Definition, error) {
	d, ok := registry[s]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnrecognizedScoreSystem, s)
	}
	return d, nil
}
