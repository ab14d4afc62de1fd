// Package jsonutil provides JSON formatting helpers used to keep
// git-theta's on-disk documents byte-stable across runs.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalIndentWithNewline is like json.MarshalIndent but adds a trailing
// newline, matching the POSIX text-file convention the metadata document
// and config file rely on for clean diffs.
func MarshalIndentWithNewline(v any, prefix, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent(prefix, indent)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding JSON: %w", err)
	}
	return buf.Bytes(), nil
}
