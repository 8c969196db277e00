package differ

import "testing"

func TestEqualKeySets(t *testing.T) {
	tests := []struct {
		a, b     []string
		expected bool
	}{
		{[]string{"a", "b", "c"}, []string{"a", "b", "c"}, true},
		{[]string{"a", "b", "c"}, []string{"c", "b", "a"}, true},
		{[]string{"a", "b"}, []string{"a", "b", "c"}, false},
		{[]string{}, []string{}, true},
		{nil, []string{}, true},
		{[]string{"a"}, []string{"b"}, false},
	}

	for _, test := range tests {
		result := equalKeySets(test.a, test.b)
		if result != test.expected {
			t.Errorf("equalKeySets(%v, %v) = %v, expected %v", test.a, test.b, result, test.expected)
		}
	}
}

func TestEqualValues(t *testing.T) {
	tests := []struct {
		name     string
		a, b     any
		expected bool
	}{
		{"same string", "x", "x", true},
		{"int and float", 15, 15.0, true},
		{"different numbers", 15, 16, false},
		{"map order", map[string]any{"a": 1, "b": 2}, map[string]any{"b": 2, "a": 1}, true},
		{"list order matters", []any{1, 2}, []any{2, 1}, false},
		{"string vs number", "15", 15, false},
		{"bool", true, false, false},
	}

	for _, test := range tests {
		if got := equalValues(test.a, test.b); got != test.expected {
			t.Errorf("%s: equalValues(%v, %v) = %v, expected %v", test.name, test.a, test.b, got, test.expected)
		}
	}
}

func TestGenerateSummary(t *testing.T) {
	result := &DiffResult{Unchanged: []string{"1", "2"}}
	if summary := generateSummary(result); summary != "No differences found (2 unchanged)" {
		t.Errorf("Unexpected summary '%s'", summary)
	}

	result = &DiffResult{
		OnlyInSource: []string{"1", "2"},
		Changed:      []string{"3"},
	}
	if summary := generateSummary(result); summary != "2 only in source, 1 changed (0 unchanged)" {
		t.Errorf("Unexpected summary '%s'", summary)
	}

	result = &DiffResult{OnlyInTarget: []string{"9"}}
	if summary := generateSummary(result); summary != "1 only in target (0 unchanged)" {
		t.Errorf("Unexpected summary '%s'", summary)
	}
}
