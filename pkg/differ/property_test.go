package differ

import (
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/wonderfulspam/suitesync/pkg/catalog"
)

// buildItems turns generated slot numbers into unique items. The salt flips
// the "type" field on some keys so both sides can disagree.
func buildItems(slots []int, salt int) []catalog.Item {
	seen := map[int]bool{}
	items := []catalog.Item{}
	for _, slot := range slots {
		if seen[slot] {
			continue
		}
		seen[slot] = true
		key := strconv.Itoa(slot)
		items = append(items, catalog.Item{
			Key:     key,
			Enabled: slot%3 != 0,
			Fields: map[string]any{
				"id":   key,
				"type": (slot * salt) % 2,
			},
		})
	}
	return items
}

func TestCompareProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	slots := gen.SliceOf(gen.IntRange(0, 25))
	salt := gen.IntRange(1, 4)

	properties.Property("diff is symmetric-complementary", prop.ForAll(
		func(aSlots, bSlots []int, aSalt, bSalt int) bool {
			a := buildItems(aSlots, aSalt)
			b := buildItems(bSlots, bSalt)

			ab, err := Compare(catalog.EVars, a, b)
			if err != nil {
				return false
			}
			ba, err := Compare(catalog.EVars, b, a)
			if err != nil {
				return false
			}

			return equalKeySets(ab.OnlyInSource, ba.OnlyInTarget) &&
				equalKeySets(ab.OnlyInTarget, ba.OnlyInSource) &&
				equalKeySets(ab.Changed, ba.Changed) &&
				equalKeySets(ab.Unchanged, ba.Unchanged)
		},
		slots, slots, salt, salt,
	))

	properties.Property("buckets partition the key union", prop.ForAll(
		func(aSlots, bSlots []int, aSalt, bSalt int) bool {
			a := buildItems(aSlots, aSalt)
			b := buildItems(bSlots, bSalt)

			result, err := Compare(catalog.EVars, a, b)
			if err != nil {
				return false
			}

			union := map[string]bool{}
			for _, item := range a {
				union[item.Key] = true
			}
			for _, item := range b {
				union[item.Key] = true
			}

			total := len(result.OnlyInSource) + len(result.OnlyInTarget) + len(result.Changed) + len(result.Unchanged)
			buckets := result.Buckets()
			if total != len(union) || len(buckets) != len(union) {
				return false
			}
			for key := range union {
				if _, ok := buckets[key]; !ok {
					return false
				}
			}
			return true
		},
		slots, slots, salt, salt,
	))

	properties.Property("comparing a side with itself finds nothing", prop.ForAll(
		func(aSlots []int, aSalt int) bool {
			a := buildItems(aSlots, aSalt)
			result, err := Compare(catalog.EVars, a, a)
			return err == nil && !result.HasChanges() && len(result.OnlyInTarget) == 0
		},
		slots, salt,
	))

	properties.TestingRun(t)
}
