package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Texter is implemented by values with a human-readable rendering.
type Texter interface {
	Text() string
}

// Formats lists the accepted --format values.
var Formats = []string{"json", "yaml", "text"}

// Write writes output in the requested format.
//
// Supported formats:
// - json (default)
// - yaml
// - text (values implementing Texter; others fall back to yaml)
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return WriteJSON(w, v, pretty)
	case "yaml", "yml":
		return WriteYAML(w, v)
	case "text":
		if t, ok := v.(Texter); ok {
			_, err := io.WriteString(w, strings.TrimRight(t.Text(), "\n")+"\n")
			return err
		}
		return WriteYAML(w, v)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteJSON writes strict JSON output for CLI commands.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}

func WriteYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
