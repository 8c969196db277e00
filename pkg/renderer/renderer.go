package renderer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Formats lists the supported output formats.
func Formats() []string {
	return []string{FormatTable, FormatJSON, FormatYAML}
}

// Renderer turns reports into text for the terminal or for other tools.
type Renderer struct {
	// Verbose adds per-item detail to table output.
	Verbose bool
}

// New creates a new Renderer instance
func New(verbose bool) *Renderer {
	return &Renderer{Verbose: verbose}
}

// render encodes v as json or yaml, or calls table for table output.
func (r *Renderer) render(v any, format string, table func() string) (string, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil

	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return "", err
		}
		if err := enc.Close(); err != nil {
			return "", err
		}
		return buf.String(), nil

	case FormatTable, "":
		return table(), nil

	default:
		return "", fmt.Errorf("unsupported format: %s (supported: table, json, yaml)", format)
	}
}

func heading(buf *bytes.Buffer, title string, underline rune) {
	buf.WriteString(title + "\n")
	for range title {
		buf.WriteRune(underline)
	}
	buf.WriteString("\n")
}
