package fileutil

import (
	"encoding/json"
	"io"
	"os"
)

// PrintJSON writes value to stdout as indented JSON.
func PrintJSON(value any) error {
	return WriteJSON(os.Stdout, value)
}

// WriteJSON writes value to w with two-space indentation. HTML characters
// are left alone because the output is read by tools, not browsers.
func WriteJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(value)
}
