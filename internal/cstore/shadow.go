package cstore

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// Dir is the store directory created at the project root.
	Dir = ".cstore"
	// Ext is appended to every hashed path segment.
	Ext = ".lg"

	metaSeparator = "---"
)

// Shadow is the parsed content of one shadow file.
type Shadow struct {
	Hashes []string
	Meta   []string
}

// ShadowPath maps file to its shadow under root/.cstore. Every segment of
// the path relative to root, directories included, is replaced by its
// HashName. A relative file is taken relative to root.
func ShadowPath(root, file string) (string, error) {
	if !filepath.IsAbs(file) {
		file = filepath.Join(root, file)
	}
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s against %s: %w", file, root, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is not inside project root %s", file, root)
	}

	parts := strings.Split(rel, string(filepath.Separator))
	out := make([]string, 0, len(parts)+2)
	out = append(out, root, Dir)
	for _, part := range parts {
		out = append(out, HashName(part))
	}
	return filepath.Join(out...), nil
}

// Parse splits shadow content into line hashes and metadata lines. Empty
// metadata lines are dropped; the hash list is kept as written.
func Parse(content string) Shadow {
	head, tail, found := strings.Cut(content, "\n"+metaSeparator+"\n")
	shadow := Shadow{Hashes: strings.Split(head, "\n")}
	if !found {
		return shadow
	}
	for _, line := range strings.Split(tail, "\n") {
		if line != "" {
			shadow.Meta = append(shadow.Meta, line)
		}
	}
	return shadow
}

// Serialize renders a shadow file. The separator is written only when meta
// is not empty.
func Serialize(hashes, meta []string) string {
	body := strings.Join(hashes, "\n")
	if len(meta) == 0 {
		return body
	}
	return body + "\n" + metaSeparator + "\n" + strings.Join(meta, "\n")
}

func (s Shadow) String() string {
	return Serialize(s.Hashes, s.Meta)
}
