package syncer

import (
	"fmt"
	"time"

	"github.com/wonderfulspam/suitesync/pkg/catalog"
	"github.com/wonderfulspam/suitesync/pkg/differ"
	"github.com/wonderfulspam/suitesync/pkg/scope"
)

// Entry statuses.
const (
	StatusPlanned = "planned"
	StatusWritten = "written"
	StatusInSync  = "in_sync"
	StatusFailed  = "failed"
)

// PreviewLimit is how many actionable items a dry-run preview lists.
const PreviewLimit = 10

type Counts struct {
	Created  int `json:"created" yaml:"created"`
	Updated  int `json:"updated" yaml:"updated"`
	Skipped  int `json:"skipped" yaml:"skipped"`
	Failed   int `json:"failed" yaml:"failed"`
	Carried  int `json:"carried,omitempty" yaml:"carried,omitempty"`
	Retained int `json:"retained,omitempty" yaml:"retained,omitempty"`
}

// PreviewItem is one item a write would create or update.
type PreviewItem struct {
	Key    string         `json:"key" yaml:"key"`
	Name   string         `json:"name,omitempty" yaml:"name,omitempty"`
	Action scope.Action   `json:"action" yaml:"action"`
	Fields map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Entry is the outcome of one (category, target) pair.
type Entry struct {
	Category  catalog.Category   `json:"category" yaml:"category"`
	Target    string             `json:"target" yaml:"target"`
	Status    string             `json:"status" yaml:"status"`
	Counts    Counts             `json:"counts" yaml:"counts"`
	Error     string             `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorKind string             `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Diff      *differ.DiffResult `json:"diff,omitempty" yaml:"diff,omitempty"`
	Preview   []PreviewItem      `json:"preview,omitempty" yaml:"preview,omitempty"`
	// PreviewMore counts actionable items left out of Preview.
	PreviewMore int `json:"preview_more,omitempty" yaml:"preview_more,omitempty"`
}

// Failed reports whether the entry failed.
func (e Entry) Failed() bool {
	return e.Status == StatusFailed
}

// Report is the structured result of one sync run.
type Report struct {
	RunID      string             `json:"run_id" yaml:"run_id"`
	Source     string             `json:"source" yaml:"source"`
	Targets    []string           `json:"targets" yaml:"targets"`
	Categories []catalog.Category `json:"categories" yaml:"categories"`
	Policy     scope.Policy       `json:"policy" yaml:"policy"`
	StartedAt  time.Time          `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time          `json:"finished_at" yaml:"finished_at"`
	// Backups maps each checkpointed target to its artifact reference.
	Backups map[string]string `json:"backups,omitempty" yaml:"backups,omitempty"`
	Entries []Entry           `json:"entries" yaml:"entries"`
	// Aborted carries the fatal error that stopped the run early.
	Aborted string `json:"aborted,omitempty" yaml:"aborted,omitempty"`
}

// Summary totals a report.
type Summary struct {
	Entries    int `json:"entries" yaml:"entries"`
	Successful int `json:"successful" yaml:"successful"`
	Failed     int `json:"failed" yaml:"failed"`
	Created    int `json:"created" yaml:"created"`
	Updated    int `json:"updated" yaml:"updated"`
	Skipped    int `json:"skipped" yaml:"skipped"`
}

func (r *Report) Summary() Summary {
	s := Summary{Entries: len(r.Entries)}
	for _, e := range r.Entries {
		if e.Failed() {
			s.Failed++
		} else {
			s.Successful++
		}
		s.Created += e.Counts.Created
		s.Updated += e.Counts.Updated
		s.Skipped += e.Counts.Skipped
	}
	return s
}

// Entry returns the entry for (category, target), if any.
func (r *Report) Entry(category catalog.Category, target string) (Entry, bool) {
	for _, e := range r.Entries {
		if e.Category == category && e.Target == target {
			return e, true
		}
	}
	return Entry{}, false
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (s Summary) String() string {
	return fmt.Sprintf("%d successful, %d failed (%d created, %d updated, %d skipped)",
		s.Successful, s.Failed, s.Created, s.Updated, s.Skipped)
}

func countsOf(selection *scope.Selection) Counts {
	c := selection.Counts()
	return Counts{
		Created:  c.Created,
		Updated:  c.Updated,
		Skipped:  c.Skipped,
		Carried:  c.Carried,
		Retained: c.Retained,
	}
}

func buildPreview(selection *scope.Selection, desc catalog.Descriptor) ([]PreviewItem, int) {
	actionable := selection.Actionable()
	limit := len(actionable)
	if limit > PreviewLimit {
		limit = PreviewLimit
	}

	preview := make([]PreviewItem, 0, limit)
	for _, entry := range actionable[:limit] {
		item := PreviewItem{Key: entry.Key, Name: entry.Name, Action: entry.Action}
		for _, field := range desc.PreviewFields {
			v, ok := entry.Item.Fields[field]
			if !ok || v == nil {
				continue
			}
			if item.Fields == nil {
				item.Fields = map[string]any{}
			}
			item.Fields[field] = v
		}
		preview = append(preview, item)
	}
	return preview, len(actionable) - limit
}
