package differ

import (
	"time"

	"github.com/wonderfulspam/suitesync/pkg/catalog"
)

// ComparisonReport is an ad hoc comparison of two environments, one diff per
// category. Nothing is written.
type ComparisonReport struct {
	Source     string                           `json:"source" yaml:"source"`
	Target     string                           `json:"target" yaml:"target"`
	ComparedAt time.Time                        `json:"compared_at" yaml:"compared_at"`
	Categories []catalog.Category               `json:"categories" yaml:"categories"`
	Results    map[catalog.Category]*DiffResult `json:"results" yaml:"results"`
	Errors     map[catalog.Category]string      `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// HasChanges reports whether any category differs.
func (r *ComparisonReport) HasChanges() bool {
	for _, result := range r.Results {
		if result.HasChanges() || len(result.OnlyInTarget) > 0 {
			return true
		}
	}
	return false
}

// CompareSnapshots diffs every requested category of a against b. A category
// missing from either snapshot or failing to diff is recorded in Errors and
// the others still compare. Empty categories means every category a holds.
func CompareSnapshots(a, b *catalog.Snapshot, categories []catalog.Category) *ComparisonReport {
	if len(categories) == 0 {
		categories = a.Categories()
	}
	categories = catalog.Ordered(categories)

	report := &ComparisonReport{
		Source:     a.Environment(),
		Target:     b.Environment(),
		ComparedAt: time.Now().UTC(),
		Categories: categories,
		Results:    make(map[catalog.Category]*DiffResult, len(categories)),
		Errors:     map[catalog.Category]string{},
	}

	for _, category := range categories {
		switch {
		case !a.Has(category):
			report.Errors[category] = "not captured for " + a.Environment()
			continue
		case !b.Has(category):
			report.Errors[category] = "not captured for " + b.Environment()
			continue
		}

		result, err := Compare(category, a.Items(category), b.Items(category))
		if err != nil {
			report.Errors[category] = err.Error()
			continue
		}
		report.Results[category] = result
	}

	return report
}
