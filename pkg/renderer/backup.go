package renderer

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wonderfulspam/suitesync/pkg/backup"
	"github.com/wonderfulspam/suitesync/pkg/catalog"
	"github.com/wonderfulspam/suitesync/pkg/history"
)

// FormatRestore formats a restore result for display
func (r *Renderer) FormatRestore(result *backup.RestoreResult, format string) (string, error) {
	return r.render(result, format, func() string {
		var buf bytes.Buffer

		title := "Restore"
		if result.DryRun {
			title = "Restore (dry run)"
		}
		heading(&buf, title, '=')
		buf.WriteString(fmt.Sprintf("\n  Artifact: %s\n", result.ArtifactID))
		buf.WriteString(fmt.Sprintf("  Captured: %s from %s\n\n", result.CapturedAt.Format("2006-01-02 15:04:05 MST"), result.Environment))

		for _, o := range result.Outcomes {
			label := catalog.MustDescribe(o.Category).Label
			line := fmt.Sprintf("  [%s] %-24s %-12s %s", restoreSymbol(o.Status), label, o.Target, o.Status)
			switch o.Status {
			case backup.RestoreFailed:
				line += ": " + o.Error
			case backup.RestoreAbsent:
				line += " (not in artifact)"
			default:
				line += fmt.Sprintf(" (%d items)", o.Items)
				if len(o.Leftover) > 0 {
					line += fmt.Sprintf(", left in place: %s", strings.Join(o.Leftover, ", "))
				}
			}
			buf.WriteString(line + "\n")
		}

		buf.WriteString(fmt.Sprintf("\n  %d of %d failed\n", result.Failed(), len(result.Outcomes)))
		return buf.String()
	})
}

func restoreSymbol(status string) string {
	switch status {
	case backup.RestoreRestored:
		return "✓"
	case backup.RestorePlanned:
		return "~"
	case backup.RestoreFailed:
		return "⚠"
	default:
		return "-"
	}
}

// FormatArtifact formats a loaded artifact's metadata and item counts.
func (r *Renderer) FormatArtifact(artifact *backup.Artifact, format string) (string, error) {
	type summary struct {
		ID          string                   `json:"id" yaml:"id"`
		Environment string                   `json:"environment" yaml:"environment"`
		CapturedAt  string                   `json:"captured_at" yaml:"captured_at"`
		ToolVersion string                   `json:"tool_version" yaml:"tool_version"`
		Company     string                   `json:"company,omitempty" yaml:"company,omitempty"`
		Digest      string                   `json:"digest" yaml:"digest"`
		Items       map[catalog.Category]int `json:"items" yaml:"items"`
	}

	s := summary{
		ID:          artifact.ID,
		Environment: artifact.Environment,
		CapturedAt:  artifact.CapturedAt.Format("2006-01-02T15:04:05Z07:00"),
		ToolVersion: artifact.ToolVersion,
		Company:     artifact.Company,
		Digest:      artifact.Digest,
		Items:       map[catalog.Category]int{},
	}
	for c, items := range artifact.Categories {
		s.Items[c] = len(items)
	}

	return r.render(s, format, func() string {
		var buf bytes.Buffer
		heading(&buf, "Backup "+s.ID, '=')
		buf.WriteString(fmt.Sprintf("\n  Environment: %s\n", s.Environment))
		buf.WriteString(fmt.Sprintf("  Captured:    %s\n", s.CapturedAt))
		buf.WriteString(fmt.Sprintf("  Version:     %s\n", s.ToolVersion))
		if s.Company != "" {
			buf.WriteString(fmt.Sprintf("  Company:     %s\n", s.Company))
		}
		buf.WriteString(fmt.Sprintf("  Digest:      %s\n\n", s.Digest))
		for _, c := range catalog.All() {
			if n, ok := s.Items[c]; ok {
				buf.WriteString(fmt.Sprintf("  %-24s %d\n", catalog.MustDescribe(c).Label, n))
			}
		}
		return buf.String()
	})
}

// FormatBackups formats a list of artifact references.
func (r *Renderer) FormatBackups(refs []string, format string) (string, error) {
	if refs == nil {
		refs = []string{}
	}
	return r.render(refs, format, func() string {
		if len(refs) == 0 {
			return "No backups found.\n"
		}
		var buf bytes.Buffer
		heading(&buf, fmt.Sprintf("Backups (%d)", len(refs)), '-')
		for _, ref := range refs {
			if r.Verbose {
				buf.WriteString("  " + ref + "\n")
			} else {
				buf.WriteString("  " + filepath.Base(ref) + "\n")
			}
		}
		return buf.String()
	})
}

// FormatRuns formats journal entries, newest first.
func (r *Renderer) FormatRuns(runs []history.Run, format string) (string, error) {
	if runs == nil {
		runs = []history.Run{}
	}
	return r.render(runs, format, func() string {
		if len(runs) == 0 {
			return "No sync runs recorded.\n"
		}
		var buf bytes.Buffer
		heading(&buf, "Sync History", '=')
		buf.WriteString("\n")
		for _, run := range runs {
			mode := "live"
			if run.DryRun {
				mode = "dry-run"
			}
			buf.WriteString(fmt.Sprintf("  %s  %s  %-7s %s -> %v  %d ok, %d failed\n",
				run.StartedAt.Format("2006-01-02 15:04:05"), run.RunID, mode,
				run.Source, run.Targets, run.Successful, run.Failed))
			if run.Aborted != "" {
				buf.WriteString(fmt.Sprintf("      aborted: %s\n", run.Aborted))
			}
		}
		return buf.String()
	})
}
