package differ

import "github.com/wonderfulspam/suitesync/pkg/catalog"

type DiffType string

const (
	DiffTypeAdded    DiffType = "added"
	DiffTypeRemoved  DiffType = "removed"
	DiffTypeModified DiffType = "modified"
)

// FieldChange is one differing attribute of an item present on both sides.
// Added means the field is only set on the source, Removed only on the target.
type FieldChange struct {
	Type   DiffType `json:"type" yaml:"type"`
	Field  string   `json:"field" yaml:"field"`
	Source any      `json:"source,omitempty" yaml:"source,omitempty"`
	Target any      `json:"target,omitempty" yaml:"target,omitempty"`
}

// Bucket is the partition a key falls into.
type Bucket string

const (
	BucketOnlyInSource Bucket = "only_in_source"
	BucketOnlyInTarget Bucket = "only_in_target"
	BucketChanged      Bucket = "changed"
	BucketUnchanged    Bucket = "unchanged"
)

type DiffResult struct {
	Category catalog.Category `json:"category" yaml:"category"`

	OnlyInSource []string `json:"only_in_source" yaml:"only_in_source"`
	OnlyInTarget []string `json:"only_in_target" yaml:"only_in_target"`
	Changed      []string `json:"changed" yaml:"changed"`
	Unchanged    []string `json:"unchanged" yaml:"unchanged"`

	SourceEnabledCount int `json:"source_enabled_count" yaml:"source_enabled_count"`
	TargetEnabledCount int `json:"target_enabled_count" yaml:"target_enabled_count"`

	Changes map[string][]FieldChange `json:"changes,omitempty" yaml:"changes,omitempty"`
	Names   map[string]string        `json:"names,omitempty" yaml:"names,omitempty"`

	// SourceItems are the source side items in source order, used to build
	// the write payload.
	SourceItems []catalog.Item `json:"-" yaml:"-"`
	// TargetItems are the target side items in target order.
	TargetItems []catalog.Item `json:"-" yaml:"-"`
}

// HasChanges reports whether anything on the source side differs from the
// target. Keys only in the target do not count: they are never written.
func (r *DiffResult) HasChanges() bool {
	return len(r.OnlyInSource) > 0 || len(r.Changed) > 0
}

// Buckets maps every key of the union to its partition.
func (r *DiffResult) Buckets() map[string]Bucket {
	out := make(map[string]Bucket, len(r.OnlyInSource)+len(r.OnlyInTarget)+len(r.Changed)+len(r.Unchanged))
	for _, k := range r.OnlyInSource {
		out[k] = BucketOnlyInSource
	}
	for _, k := range r.OnlyInTarget {
		out[k] = BucketOnlyInTarget
	}
	for _, k := range r.Changed {
		out[k] = BucketChanged
	}
	for _, k := range r.Unchanged {
		out[k] = BucketUnchanged
	}
	return out
}

func (r *DiffResult) Summary() string {
	return generateSummary(r)
}
