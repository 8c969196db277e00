// Package differ computes the structural difference between the source and
// target item lists of one category.
package differ

import (
	"github.com/wonderfulspam/suitesync/pkg/catalog"
	"github.com/wonderfulspam/suitesync/pkg/syncerr"
)

// Compare partitions the keys of source and target into the four buckets. A
// key that appears twice on one side fails with a malformed snapshot error.
func Compare(category catalog.Category, source, target []catalog.Item) (*DiffResult, error) {
	sourceByKey, err := indexItems(category, "source", source)
	if err != nil {
		return nil, err
	}
	targetByKey, err := indexItems(category, "target", target)
	if err != nil {
		return nil, err
	}

	result := &DiffResult{
		Category:           category,
		OnlyInSource:       []string{},
		OnlyInTarget:       []string{},
		Changed:            []string{},
		Unchanged:          []string{},
		SourceEnabledCount: catalog.EnabledCount(source),
		TargetEnabledCount: catalog.EnabledCount(target),
		Changes:            map[string][]FieldChange{},
		Names:              map[string]string{},
		SourceItems:        catalog.CloneItems(source),
		TargetItems:        catalog.CloneItems(target),
	}

	for _, item := range source {
		if item.Name != "" {
			result.Names[item.Key] = item.Name
		}

		other, existsInTarget := targetByKey[item.Key]
		if !existsInTarget {
			result.OnlyInSource = append(result.OnlyInSource, item.Key)
			continue
		}

		changes := compareFields(item.Fields, other.Fields)
		if len(changes) > 0 {
			result.Changed = append(result.Changed, item.Key)
			result.Changes[item.Key] = changes
		} else {
			result.Unchanged = append(result.Unchanged, item.Key)
		}
	}

	for _, item := range target {
		if _, existsInSource := sourceByKey[item.Key]; existsInSource {
			continue
		}
		result.OnlyInTarget = append(result.OnlyInTarget, item.Key)
		if item.Name != "" {
			result.Names[item.Key] = item.Name
		}
	}

	return result, nil
}

func indexItems(category catalog.Category, side string, items []catalog.Item) (map[string]catalog.Item, error) {
	byKey := make(map[string]catalog.Item, len(items))
	for _, item := range items {
		if _, dup := byKey[item.Key]; dup {
			return nil, syncerr.MalformedSnapshot(string(category), side, item.Key)
		}
		byKey[item.Key] = item
	}
	return byKey, nil
}

// compareFields lists the differing fields of two records, sorted by name. A
// null value and a missing field are the same thing.
func compareFields(source, target map[string]any) []FieldChange {
	var changes []FieldChange

	for _, field := range unionFieldNames(source, target) {
		sourceValue := source[field]
		targetValue := target[field]

		switch {
		case sourceValue == nil && targetValue == nil:
			continue
		case targetValue == nil:
			changes = append(changes, FieldChange{
				Type:   DiffTypeAdded,
				Field:  field,
				Source: sourceValue,
			})
		case sourceValue == nil:
			changes = append(changes, FieldChange{
				Type:   DiffTypeRemoved,
				Field:  field,
				Target: targetValue,
			})
		case !equalValues(sourceValue, targetValue):
			changes = append(changes, FieldChange{
				Type:   DiffTypeModified,
				Field:  field,
				Source: sourceValue,
				Target: targetValue,
			})
		}
	}

	return changes
}
