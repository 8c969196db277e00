// Package catalog models the configuration entities synchronized between report
// suites: the fixed set of entity categories, the per-category identity rules and
// the items and snapshots the engine works on.
package catalog

import (
	"sort"
	"strings"
	"time"

	"github.com/wonderfulspam/suitesync/pkg/syncerr"
)

// Category is one of the fixed configuration domains of a report suite.
type Category string

const (
	EVars                 Category = "evars"
	Props                 Category = "props"
	Events                Category = "events"
	InternalURLFilters    Category = "internal_url_filters"
	MarketingChannels     Category = "marketing_channels"
	MarketingChannelRules Category = "marketing_channel_rules"
	ListVariables         Category = "list_variables"
)

var declaredOrder = []Category{
	EVars,
	Props,
	Events,
	InternalURLFilters,
	MarketingChannels,
	MarketingChannelRules,
	ListVariables,
}

// All returns every category in the fixed declared processing order.
func All() []Category {
	out := make([]Category, len(declaredOrder))
	copy(out, declaredOrder)
	return out
}

func (c Category) String() string {
	return string(c)
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := descriptors[c]
	return ok
}

// ParseCategory resolves a user supplied category name. Both the canonical
// snake_case names and the CamelCase spellings are accepted, case-insensitively.
func ParseCategory(name string) (Category, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.NewReplacer("-", "", "_", "", " ", "").Replace(normalized)

	for _, c := range declaredOrder {
		canonical := strings.ReplaceAll(string(c), "_", "")
		if canonical == normalized || canonical == normalized+"s" {
			return c, nil
		}
	}
	return "", syncerr.UnknownCategory(name)
}

// ParseCategories resolves every name, failing on the first unknown one. An
// empty input yields All().
func ParseCategories(names []string) ([]Category, error) {
	if len(names) == 0 {
		return All(), nil
	}

	seen := make(map[Category]bool, len(names))
	out := make([]Category, 0, len(names))
	for _, name := range names {
		c, err := ParseCategory(name)
		if err != nil {
			return nil, err
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return Ordered(out), nil
}

// Ordered returns cats sorted into the declared processing order.
func Ordered(cats []Category) []Category {
	rank := make(map[Category]int, len(declaredOrder))
	for i, c := range declaredOrder {
		rank[c] = i
	}

	out := make([]Category, len(cats))
	copy(out, cats)
	sort.SliceStable(out, func(i, j int) bool {
		return rank[out[i]] < rank[out[j]]
	})
	return out
}

// Item is one configurable unit within a category, e.g. one eVar.
type Item struct {
	Key     string         `json:"key" yaml:"key"`
	Enabled bool           `json:"enabled" yaml:"enabled"`
	Name    string         `json:"name,omitempty" yaml:"name,omitempty"`
	Fields  map[string]any `json:"fields" yaml:"fields"`
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	out := i
	if i.Fields != nil {
		out.Fields = cloneValue(i.Fields).(map[string]any)
	}
	return out
}

// CloneItems deep copies a list of items.
func CloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

// EnabledCount counts the enabled items in a list.
func EnabledCount(items []Item) int {
	n := 0
	for _, item := range items {
		if item.Enabled {
			n++
		}
	}
	return n
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = cloneValue(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = cloneValue(val)
		}
		return s
	default:
		return v
	}
}

// Snapshot is the configuration of one environment captured at one instant.
// It is immutable: constructors and accessors copy the items.
type Snapshot struct {
	environment string
	capturedAt  time.Time
	categories  map[Category][]Item
}

// NewSnapshot captures the given items for env.
func NewSnapshot(env string, capturedAt time.Time, categories map[Category][]Item) *Snapshot {
	s := &Snapshot{
		environment: env,
		capturedAt:  capturedAt.UTC(),
		categories:  make(map[Category][]Item, len(categories)),
	}
	for c, items := range categories {
		cloned := CloneItems(items)
		if cloned == nil {
			cloned = []Item{}
		}
		s.categories[c] = cloned
	}
	return s
}

func (s *Snapshot) Environment() string   { return s.environment }
func (s *Snapshot) CapturedAt() time.Time { return s.capturedAt }

// Has reports whether the snapshot contains category c.
func (s *Snapshot) Has(c Category) bool {
	_, ok := s.categories[c]
	return ok
}

// Items returns a copy of the items captured for c.
func (s *Snapshot) Items(c Category) []Item {
	return CloneItems(s.categories[c])
}

// Categories lists the captured categories in declared order.
func (s *Snapshot) Categories() []Category {
	cats := make([]Category, 0, len(s.categories))
	for c := range s.categories {
		cats = append(cats, c)
	}
	return Ordered(cats)
}

// Map returns a deep copy of the captured categories.
func (s *Snapshot) Map() map[Category][]Item {
	out := make(map[Category][]Item, len(s.categories))
	for c, items := range s.categories {
		out[c] = CloneItems(items)
	}
	return out
}
