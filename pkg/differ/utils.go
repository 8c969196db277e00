package differ

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/gowebpki/jcs"
)

// equalValues compares two decoded values by their RFC 8785 canonical JSON,
// so map ordering and 15 vs 15.0 do not matter.
func equalValues(a, b any) bool {
	ca, errA := canonical(a)
	cb, errB := canonical(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return string(ca) == string(cb)
}

func canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}

func unionFieldNames(a, b map[string]any) []string {
	seen := make(map[string]bool, len(a)+len(b))
	for k := range a {
		seen[k] = true
	}
	for k := range b {
		seen[k] = true
	}

	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// equalKeySets reports whether a and b hold the same keys in any order.
func equalKeySets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	aCopy := make([]string, len(a))
	bCopy := make([]string, len(b))
	copy(aCopy, a)
	copy(bCopy, b)

	sort.Strings(aCopy)
	sort.Strings(bCopy)

	for i := range aCopy {
		if aCopy[i] != bCopy[i] {
			return false
		}
	}
	return true
}

func generateSummary(result *DiffResult) string {
	if !result.HasChanges() && len(result.OnlyInTarget) == 0 {
		return fmt.Sprintf("No differences found (%d unchanged)", len(result.Unchanged))
	}

	parts := []string{}

	if len(result.OnlyInSource) > 0 {
		parts = append(parts, fmt.Sprintf("%d only in source", len(result.OnlyInSource)))
	}
	if len(result.Changed) > 0 {
		parts = append(parts, fmt.Sprintf("%d changed", len(result.Changed)))
	}
	if len(result.OnlyInTarget) > 0 {
		parts = append(parts, fmt.Sprintf("%d only in target", len(result.OnlyInTarget)))
	}

	return fmt.Sprintf("%s (%d unchanged)", strings.Join(parts, ", "), len(result.Unchanged))
}
