package differ

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/wonderfulspam/suitesync/pkg/catalog"
	"github.com/wonderfulspam/suitesync/pkg/syncerr"
)

func evar(key, name string, enabled bool, extra map[string]any) catalog.Item {
	fields := map[string]any{
		"id":      key,
		"name":    name,
		"enabled": enabled,
	}
	for k, v := range extra {
		fields[k] = v
	}
	return catalog.Item{Key: key, Name: name, Enabled: enabled, Fields: fields}
}

func TestCompare_NoChanges(t *testing.T) {
	items := []catalog.Item{
		evar("1", "Page Name", true, map[string]any{"type": "text_string"}),
		evar("2", "Campaign", true, nil),
	}

	result, err := Compare(catalog.EVars, items, items)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.HasChanges() {
		t.Error("Expected no changes, but HasChanges is true")
	}

	if len(result.Unchanged) != 2 {
		t.Errorf("Expected 2 unchanged keys, got %d", len(result.Unchanged))
	}

	if result.Summary() != "No differences found (2 unchanged)" {
		t.Errorf("Unexpected summary '%s'", result.Summary())
	}
}

func TestCompare_OnlyInSource(t *testing.T) {
	source := []catalog.Item{evar("15", "Campaign ID", true, nil)}

	result, err := Compare(catalog.EVars, source, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(result.OnlyInSource) != 1 || result.OnlyInSource[0] != "15" {
		t.Errorf("Expected only_in_source = [15], got %v", result.OnlyInSource)
	}

	if result.Names["15"] != "Campaign ID" {
		t.Errorf("Expected name 'Campaign ID', got '%s'", result.Names["15"])
	}

	if !result.HasChanges() {
		t.Error("Expected changes, but HasChanges is false")
	}
}

func TestCompare_ChangedField(t *testing.T) {
	source := []catalog.Item{evar("10", "Search", true, map[string]any{"description": "internal search term"})}
	target := []catalog.Item{evar("10", "Search", true, map[string]any{"description": "search"})}

	result, err := Compare(catalog.EVars, source, target)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(result.Changed) != 1 || result.Changed[0] != "10" {
		t.Fatalf("Expected changed = [10], got %v", result.Changed)
	}

	if len(result.Unchanged) != 0 {
		t.Errorf("Expected no unchanged keys, got %v", result.Unchanged)
	}

	changes := result.Changes["10"]
	if len(changes) != 1 {
		t.Fatalf("Expected 1 field change, got %d", len(changes))
	}

	if changes[0].Type != DiffTypeModified || changes[0].Field != "description" {
		t.Errorf("Expected modified description, got %s %s", changes[0].Type, changes[0].Field)
	}
}

func TestCompare_FieldPresentOnOneSide(t *testing.T) {
	source := []catalog.Item{evar("3", "Login", true, map[string]any{"merchandising": "product_syntax"})}
	target := []catalog.Item{evar("3", "Login", true, map[string]any{"allocation": "most_recent"})}

	result, err := Compare(catalog.EVars, source, target)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	changes := result.Changes["3"]
	if len(changes) != 2 {
		t.Fatalf("Expected 2 field changes, got %d", len(changes))
	}

	// sorted by field name
	if changes[0].Field != "allocation" || changes[0].Type != DiffTypeRemoved {
		t.Errorf("Expected allocation removed, got %s %s", changes[0].Field, changes[0].Type)
	}
	if changes[1].Field != "merchandising" || changes[1].Type != DiffTypeAdded {
		t.Errorf("Expected merchandising added, got %s %s", changes[1].Field, changes[1].Type)
	}
}

func TestCompare_NullEqualsAbsent(t *testing.T) {
	source := []catalog.Item{evar("4", "Null", true, map[string]any{"description": nil})}
	target := []catalog.Item{evar("4", "Null", true, nil)}

	result, err := Compare(catalog.EVars, source, target)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(result.Unchanged) != 1 {
		t.Errorf("Expected null and absent to compare equal, got changes %v", result.Changes)
	}
}

func TestCompare_OrderAndNumberRepresentation(t *testing.T) {
	source := []catalog.Item{evar("5", "Nested", true, map[string]any{
		"expiration": map[string]any{"type": "visit", "days": 15},
	})}
	target := []catalog.Item{evar("5", "Nested", true, map[string]any{
		"expiration": map[string]any{"days": 15.0, "type": "visit"},
	})}

	result, err := Compare(catalog.EVars, source, target)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(result.Unchanged) != 1 {
		t.Errorf("Expected key order and 15 vs 15.0 to be ignored, got changes %v", result.Changes)
	}
}

func TestCompare_DuplicateKey(t *testing.T) {
	source := []catalog.Item{evar("7", "A", true, nil), evar("7", "B", true, nil)}

	_, err := Compare(catalog.EVars, source, nil)
	if err == nil {
		t.Fatal("Expected malformed snapshot error")
	}

	if !errors.Is(err, syncerr.ErrMalformedSnapshot) {
		t.Errorf("Expected ErrMalformedSnapshot, got %v", err)
	}

	if !strings.Contains(err.Error(), "source") || !strings.Contains(err.Error(), `"7"`) {
		t.Errorf("Expected error to name side and key, got '%s'", err.Error())
	}
}

func TestCompare_EmptySource(t *testing.T) {
	target := []catalog.Item{evar("1", "A", true, nil), evar("2", "B", false, nil)}

	result, err := Compare(catalog.EVars, []catalog.Item{}, target)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !equalKeySets(result.OnlyInTarget, []string{"1", "2"}) {
		t.Errorf("Expected only_in_target = [1 2], got %v", result.OnlyInTarget)
	}

	if result.HasChanges() {
		t.Error("Keys only in target must not count as changes")
	}
}

func TestCompare_EnabledCountsIgnoreBuckets(t *testing.T) {
	source := []catalog.Item{
		evar("1", "A", true, nil),
		evar("2", "B", false, nil),
		evar("3", "C", true, nil),
	}
	target := []catalog.Item{
		evar("1", "A", true, nil),
		evar("9", "Z", true, nil),
	}

	result, err := Compare(catalog.EVars, source, target)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.SourceEnabledCount != 2 {
		t.Errorf("Expected source_enabled_count 2, got %d", result.SourceEnabledCount)
	}
	if result.TargetEnabledCount != 2 {
		t.Errorf("Expected target_enabled_count 2, got %d", result.TargetEnabledCount)
	}
}

func TestCompare_BucketsPartitionKeys(t *testing.T) {
	source := []catalog.Item{
		evar("1", "A", true, nil),
		evar("2", "B", true, map[string]any{"type": "counter"}),
		evar("3", "C", true, nil),
	}
	target := []catalog.Item{
		evar("2", "B", true, map[string]any{"type": "text_string"}),
		evar("3", "C", true, nil),
		evar("4", "D", true, nil),
	}

	result, err := Compare(catalog.EVars, source, target)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	buckets := result.Buckets()
	expected := map[string]Bucket{
		"1": BucketOnlyInSource,
		"2": BucketChanged,
		"3": BucketUnchanged,
		"4": BucketOnlyInTarget,
	}

	if len(buckets) != len(expected) {
		t.Fatalf("Expected %d keys, got %d", len(expected), len(buckets))
	}
	for key, want := range expected {
		if buckets[key] != want {
			t.Errorf("Key %s: expected %s, got %s", key, want, buckets[key])
		}
	}

	if result.Summary() != "1 only in source, 1 changed, 1 only in target (1 unchanged)" {
		t.Errorf("Unexpected summary '%s'", result.Summary())
	}
}

func TestCompare_SourceOrderPreserved(t *testing.T) {
	source := []catalog.Item{
		evar("30", "C", true, nil),
		evar("10", "A", true, nil),
		evar("20", "B", true, nil),
	}

	result, err := Compare(catalog.EVars, source, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := []string{"30", "10", "20"}
	for i, key := range want {
		if result.OnlyInSource[i] != key {
			t.Errorf("Position %d: expected %s, got %s", i, key, result.OnlyInSource[i])
		}
	}

	if len(result.SourceItems) != 3 || result.SourceItems[0].Key != "30" {
		t.Errorf("Expected source items in source order, got %v", result.SourceItems)
	}
}
