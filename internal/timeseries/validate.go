package timeseries

import (
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/gyeh/icuscore/internal/normalize"
	"github.com/gyeh/icuscore/internal/severity"
)

// ValidateSchema checks that a Parquet stay file carries the time column.
func ValidateSchema(schema *parquet.Schema) error {
	for _, field := range schema.Fields() {
		if strings.ToLower(field.Name()) == severity.VarHours {
			return nil
		}
	}
	return fmt.Errorf("missing required column: %s", severity.VarHours)
}

// ResolveHeader maps raw headers to canonical names and returns the index of the
// time column. Duplicate canonical names are rejected.
func ResolveHeader(header []string, aliases normalize.Aliases) (names []string, hoursIdx int, err error) {
	names = make([]string, len(header))
	hoursIdx = -1
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name, _ := aliases.Resolve(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i)
		}
		if j, dup := seen[name]; dup {
			return nil, -1, fmt.Errorf("columns %q and %q both map to %q", header[j], h, name)
		}
		seen[name] = i
		names[i] = name
		if name == severity.VarHours {
			hoursIdx = i
		}
	}
	if hoursIdx < 0 {
		return nil, -1, fmt.Errorf("missing required column: %s", severity.VarHours)
	}
	return names, hoursIdx, nil
}
