package renderer

import (
	"bytes"
	"fmt"

	"github.com/wonderfulspam/suitesync/pkg/catalog"
	"github.com/wonderfulspam/suitesync/pkg/differ"
)

// FormatComparison formats an environment comparison for display
func (r *Renderer) FormatComparison(comparison *differ.ComparisonReport, format string) (string, error) {
	return r.render(comparison, format, func() string { return r.formatComparisonTable(comparison) })
}

func (r *Renderer) formatComparisonTable(comparison *differ.ComparisonReport) string {
	var buf bytes.Buffer

	heading(&buf, fmt.Sprintf("Comparison: %s -> %s", comparison.Source, comparison.Target), '=')

	for _, category := range comparison.Categories {
		label := catalog.MustDescribe(category).Label
		buf.WriteString("\n")

		if msg, failed := comparison.Errors[category]; failed {
			buf.WriteString(fmt.Sprintf("%s: ⚠ %s\n", label, msg))
			continue
		}
		result, ok := comparison.Results[category]
		if !ok {
			continue
		}

		buf.WriteString(fmt.Sprintf("%s: %s\n", label, result.Summary()))
		buf.WriteString(fmt.Sprintf("  enabled: %d in %s, %d in %s\n",
			result.SourceEnabledCount, comparison.Source,
			result.TargetEnabledCount, comparison.Target))

		for _, key := range result.OnlyInSource {
			buf.WriteString(fmt.Sprintf("  + %s\n", displayKey(result, key)))
		}
		for _, key := range result.Changed {
			buf.WriteString(fmt.Sprintf("  ~ %s\n", displayKey(result, key)))
			if !r.Verbose {
				continue
			}
			for _, change := range result.Changes[key] {
				buf.WriteString(fmt.Sprintf("      %s: %v -> %v\n", change.Field, change.Source, change.Target))
			}
		}
		for _, key := range result.OnlyInTarget {
			buf.WriteString(fmt.Sprintf("  - %s (only in %s)\n", displayKey(result, key), comparison.Target))
		}
	}

	if !comparison.HasChanges() && len(comparison.Errors) == 0 {
		buf.WriteString("\nEnvironments are identical for the compared categories.\n")
	}

	return buf.String()
}

func displayKey(result *differ.DiffResult, key string) string {
	if name, ok := result.Names[key]; ok && name != "" && name != key {
		return fmt.Sprintf("%s (%s)", key, name)
	}
	return key
}
