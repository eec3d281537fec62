// Package output handles CLI output serialization.
package output

import (
	"fmt"
	"io"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
	// FormatRaw passes upstream payloads through byte-for-byte, useful
	// when the consumer wants exactly what the origin's API returned.
	FormatRaw Format = "raw"
)

// ParseFormat validates a format name from a CLI flag.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatJSONL, FormatYAML, FormatRaw:
		return Format(s), nil
	}
	return "", fmt.Errorf("unsupported output format: %q", s)
}

// Writer handles output serialization.
type Writer interface {
	// Write outputs a single result.
	Write(data any) error

	// Flush ensures all buffered data is written.
	Flush() error
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format) (Writer, error) {
	switch format {
	case FormatJSON:
		return &jsonWriter{w: w, pretty: true}, nil
	case FormatJSONL:
		return &jsonWriter{w: w}, nil
	case FormatYAML:
		return &yamlWriter{w: w}, nil
	case FormatRaw:
		return &rawWriter{w: w}, nil
	}
	return nil, fmt.Errorf("unsupported output format: %q", format)
}
