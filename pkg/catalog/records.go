package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FromRecords converts raw API records of one category into items, applying
// the category's identity rule. Duplicate keys are left for the differ to
// reject.
func FromRecords(d Descriptor, records []any) ([]Item, error) {
	items := make([]Item, 0, len(records))

	for i, raw := range records {
		var fields map[string]any

		if d.Scalar() {
			if m, ok := raw.(map[string]any); ok {
				fields = m
			} else {
				fields = map[string]any{d.ValueField: raw}
			}
		} else {
			m, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s record %d: expected object, got %T", d.Category, i, raw)
			}
			fields = m
		}

		item := Item{
			Enabled: true,
			Fields:  fields,
		}

		if d.Indexed() {
			item.Key = strconv.Itoa(i)
		} else {
			key, ok := fields[d.KeyField]
			if !ok || key == nil {
				return nil, fmt.Errorf("%s record %d: missing key field %q", d.Category, i, d.KeyField)
			}
			item.Key = FormatValue(key)
		}

		if d.EnabledField != "" {
			item.Enabled = truthy(fields[d.EnabledField])
		}

		switch {
		case d.Scalar():
			item.Name = FormatValue(fields[d.ValueField])
		case fields["name"] != nil:
			item.Name = FormatValue(fields["name"])
		}

		items = append(items, item.Clone())
	}

	return items, nil
}

// ToRecords converts items back into the API representation.
func ToRecords(d Descriptor, items []Item) []any {
	records := make([]any, 0, len(items))
	for _, item := range items {
		cloned := item.Clone()
		if d.Scalar() && len(cloned.Fields) == 1 {
			if v, ok := cloned.Fields[d.ValueField]; ok {
				records = append(records, v)
				continue
			}
		}
		if cloned.Fields == nil {
			cloned.Fields = map[string]any{}
		}
		records = append(records, cloned.Fields)
	}
	return records
}

// CloneRecords deep copies raw API records.
func CloneRecords(records []any) []any {
	if records == nil {
		return nil
	}
	return cloneValue(records).([]any)
}

// FormatValue renders a decoded JSON scalar as a stable string. Whole numbers
// lose their fractional part so that 15 and 15.0 produce the same key.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "enabled":
			return true
		}
		return false
	case float64:
		return t != 0
	case int:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	default:
		return true
	}
}
