package renderer

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wonderfulspam/suitesync/pkg/catalog"
	"github.com/wonderfulspam/suitesync/pkg/syncer"
)

// FormatReport formats a sync report for display
func (r *Renderer) FormatReport(report *syncer.Report, format string) (string, error) {
	return r.render(report, format, func() string { return r.formatReportTable(report) })
}

func (r *Renderer) formatReportTable(report *syncer.Report) string {
	var buf bytes.Buffer

	title := "Sync Report"
	if report.Policy.DryRun {
		title = "Sync Report (dry run)"
	}
	heading(&buf, title, '=')
	buf.WriteString("\n")

	buf.WriteString(fmt.Sprintf("  Run:     %s\n", report.RunID))
	buf.WriteString(fmt.Sprintf("  Source:  %s\n", report.Source))
	buf.WriteString(fmt.Sprintf("  Targets: %s\n", strings.Join(report.Targets, ", ")))
	buf.WriteString(fmt.Sprintf("  Started: %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST")))
	if d := report.Duration(); d > 0 {
		buf.WriteString(fmt.Sprintf("  Took:    %s\n", d.Round(time.Millisecond)))
	}
	buf.WriteString(fmt.Sprintf("  Policy:  include_disabled=%t changed_only=%t\n",
		report.Policy.IncludeDisabled, report.Policy.ChangedOnly))

	if len(report.Backups) > 0 {
		buf.WriteString("\nBackups:\n")
		buf.WriteString("--------\n")
		targets := make([]string, 0, len(report.Backups))
		for target := range report.Backups {
			targets = append(targets, target)
		}
		sort.Strings(targets)
		for _, target := range targets {
			buf.WriteString(fmt.Sprintf("  %s: %s\n", target, report.Backups[target]))
		}
	}

	buf.WriteString("\nResults:\n")
	buf.WriteString("--------\n")
	for _, entry := range report.Entries {
		label := catalog.MustDescribe(entry.Category).Label
		buf.WriteString(fmt.Sprintf("  [%s] %-24s %-12s ", statusSymbol(entry.Status), label, entry.Target))

		switch entry.Status {
		case syncer.StatusFailed:
			buf.WriteString(fmt.Sprintf("failed: %s\n", entry.Error))
		case syncer.StatusInSync:
			buf.WriteString(fmt.Sprintf("in sync (%d skipped)\n", entry.Counts.Skipped))
		default:
			verb := "created"
			if entry.Status == syncer.StatusPlanned {
				verb = "to create"
			}
			buf.WriteString(fmt.Sprintf("%d %s, %d updated, %d skipped", entry.Counts.Created, verb, entry.Counts.Updated, entry.Counts.Skipped))
			if entry.Counts.Carried > 0 {
				buf.WriteString(fmt.Sprintf(", %d carried", entry.Counts.Carried))
			}
			if entry.Counts.Retained > 0 {
				buf.WriteString(fmt.Sprintf(", %d retained", entry.Counts.Retained))
			}
			buf.WriteString("\n")
		}

		if entry.Status == syncer.StatusPlanned || r.Verbose {
			r.writePreview(&buf, entry)
		}
	}

	summary := report.Summary()
	buf.WriteString("\nSummary:\n")
	buf.WriteString("--------\n")
	buf.WriteString(fmt.Sprintf("  %s\n", summary))
	if report.Aborted != "" {
		buf.WriteString(fmt.Sprintf("  Aborted: %s\n", report.Aborted))
	}

	return buf.String()
}

func (r *Renderer) writePreview(buf *bytes.Buffer, entry syncer.Entry) {
	for _, item := range entry.Preview {
		line := fmt.Sprintf("      %s %s", actionSymbol(string(item.Action)), item.Key)
		if item.Name != "" && item.Name != item.Key {
			line += fmt.Sprintf(" (%s)", item.Name)
		}
		if len(item.Fields) > 0 {
			line += " " + formatFields(item.Fields)
		}
		buf.WriteString(line + "\n")
	}
	if entry.PreviewMore > 0 {
		buf.WriteString(fmt.Sprintf("      ... and %d more\n", entry.PreviewMore))
	}
}

func formatFields(fields map[string]any) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%v", name, fields[name]))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func statusSymbol(status string) string {
	switch status {
	case syncer.StatusWritten:
		return "✓"
	case syncer.StatusPlanned:
		return "~"
	case syncer.StatusInSync:
		return "="
	case syncer.StatusFailed:
		return "⚠"
	default:
		return "?"
	}
}

func actionSymbol(action string) string {
	switch action {
	case "create":
		return "+"
	case "update":
		return "~"
	default:
		return " "
	}
}
