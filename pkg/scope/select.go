package scope

import (
	"github.com/wonderfulspam/suitesync/pkg/catalog"
	"github.com/wonderfulspam/suitesync/pkg/differ"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

const (
	ReasonDisabled  = "disabled"
	ReasonUnchanged = "unchanged"
)

// Entry is one source item with the action decided for it.
type Entry struct {
	Key    string       `json:"key" yaml:"key"`
	Name   string       `json:"name,omitempty" yaml:"name,omitempty"`
	Action Action       `json:"action" yaml:"action"`
	Reason string       `json:"reason,omitempty" yaml:"reason,omitempty"`
	Item   catalog.Item `json:"-" yaml:"-"`
	// Carried marks a skipped item that still rides in the payload of a
	// category-wide save.
	Carried bool `json:"carried,omitempty" yaml:"carried,omitempty"`
}

type Counts struct {
	Created  int `json:"created" yaml:"created"`
	Updated  int `json:"updated" yaml:"updated"`
	Skipped  int `json:"skipped" yaml:"skipped"`
	Carried  int `json:"carried,omitempty" yaml:"carried,omitempty"`
	Retained int `json:"retained,omitempty" yaml:"retained,omitempty"`
}

// Selection is the outcome of filtering one diff.
type Selection struct {
	Category catalog.Category `json:"category" yaml:"category"`
	Entries  []Entry          `json:"entries" yaml:"entries"`
	// Payload is what gets written, in source order. Empty means no write.
	Payload []catalog.Item `json:"-" yaml:"-"`
	// Retained are target items a category-wide save resends unmodified so
	// that replacing the whole list does not drop them.
	Retained []catalog.Item `json:"-" yaml:"-"`
}

// Counts tallies the entries by action.
func (s *Selection) Counts() Counts {
	var c Counts
	for _, e := range s.Entries {
		switch e.Action {
		case ActionCreate:
			c.Created++
		case ActionUpdate:
			c.Updated++
		case ActionSkip:
			c.Skipped++
			if e.Carried {
				c.Carried++
			}
		}
	}
	c.Retained = len(s.Retained)
	return c
}

// Writes reports whether the selection needs a write.
func (s *Selection) Writes() bool {
	return len(s.Payload) > 0
}

// WriteSet is the full list sent to the remote: the payload followed by the
// retained target items.
func (s *Selection) WriteSet() []catalog.Item {
	if len(s.Retained) == 0 {
		return s.Payload
	}
	out := make([]catalog.Item, 0, len(s.Payload)+len(s.Retained))
	out = append(out, s.Payload...)
	return append(out, s.Retained...)
}

// Actionable returns the create and update entries.
func (s *Selection) Actionable() []Entry {
	var out []Entry
	for _, e := range s.Entries {
		if e.Action != ActionSkip {
			out = append(out, e)
		}
	}
	return out
}

// Select applies policy to diff. Keys only in the target never appear in the
// entries or the payload. Entries follow source order.
//
// Full-set categories replace the whole list on save, so once anything is
// written the payload carries every unchanged in-scope item, whatever
// ChangedOnly says, and every other target item is retained verbatim.
func Select(diff *differ.DiffResult, desc catalog.Descriptor, policy Policy) *Selection {
	selection := &Selection{
		Category: diff.Category,
		Entries:  make([]Entry, 0, len(diff.SourceItems)),
		Payload:  []catalog.Item{},
	}

	buckets := diff.Buckets()
	writes := false

	for _, item := range diff.SourceItems {
		entry := Entry{Key: item.Key, Name: item.Name, Item: item}

		switch {
		case !policy.IncludeDisabled && !item.Enabled:
			entry.Action = ActionSkip
			entry.Reason = ReasonDisabled
		case buckets[item.Key] == differ.BucketOnlyInSource:
			entry.Action = ActionCreate
			writes = true
		case buckets[item.Key] == differ.BucketChanged:
			entry.Action = ActionUpdate
			writes = true
		default:
			entry.Action = ActionSkip
			entry.Reason = ReasonUnchanged
		}

		selection.Entries = append(selection.Entries, entry)
	}

	if !writes {
		return selection
	}

	carry := !desc.Idempotent

	for i := range selection.Entries {
		entry := &selection.Entries[i]
		switch {
		case entry.Action != ActionSkip:
			selection.Payload = append(selection.Payload, entry.Item.Clone())
		case carry && entry.Reason == ReasonUnchanged:
			entry.Carried = true
			selection.Payload = append(selection.Payload, entry.Item.Clone())
		}
	}

	if carry {
		sent := make(map[string]bool, len(selection.Payload))
		for _, item := range selection.Payload {
			sent[item.Key] = true
		}
		for _, item := range diff.TargetItems {
			if !sent[item.Key] {
				selection.Retained = append(selection.Retained, item.Clone())
			}
		}
	}

	return selection
}
