package display

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// OutputFormat selects how structured results are rendered
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// ValidOutputFormat reports whether the string names a supported format
func ValidOutputFormat(format string) bool {
	switch OutputFormat(format) {
	case FormatTable, FormatJSON, FormatYAML:
		return true
	}
	return false
}

// RenderStructured marshals a result to the writer in the requested format.
// The table format is handled by the caller; asking for it here is an error.
func RenderStructured(writer io.Writer, format OutputFormat, value interface{}) error {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render JSON output: %w", err)
		}
		_, err = fmt.Fprintln(writer, string(data))
		return err
	case FormatYAML:
		data, err := yaml.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to render YAML output: %w", err)
		}
		_, err = fmt.Fprint(writer, string(data))
		return err
	default:
		return fmt.Errorf("format %q is not a structured output format", format)
	}
}

// FormatBytes renders a byte count for humans, e.g. "1.2 MB"
func FormatBytes(size int64) string {
	if size < 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(size))
}

// FormatCount renders a row or table count with thousands separators
func FormatCount(count int) string {
	return humanize.Comma(int64(count))
}

// FormatDuration renders a duration rounded to a readable precision
func FormatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return d.Round(time.Second).String()
	case d >= time.Second:
		return d.Round(10 * time.Millisecond).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}
