package cstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DriftReport compares a shadow with the current source of its file.
type DriftReport struct {
	File string `json:"file"`
	// Missing is set when no shadow exists; only SourceLines is filled then.
	Missing     bool  `json:"missing,omitempty"`
	StoredLines int   `json:"stored_lines"`
	SourceLines int   `json:"source_lines"`
	Changed     []int `json:"changed,omitempty"`
	// Stale lists metadata lines that point past the end of the source.
	Stale []string `json:"stale,omitempty"`
}

// Drifted reports whether the source no longer matches its shadow.
func (r DriftReport) Drifted() bool {
	return r.Missing || r.StoredLines != r.SourceLines || len(r.Changed) > 0
}

// Drift reports which lines of file changed since its shadow was written.
// Stored markers are never moved or repaired.
func (s *Store) Drift(file string) (DriftReport, error) {
	report := DriftReport{File: file}

	src := file
	if !filepath.IsAbs(src) {
		src = filepath.Join(s.Root, src)
	}
	content, err := os.ReadFile(src)
	if err != nil {
		return report, fmt.Errorf("failed to read %s: %w", file, err)
	}
	current := LineHashes(string(content))
	report.SourceLines = len(current)

	shadow, err := s.Read(file)
	if errors.Is(err, fs.ErrNotExist) {
		report.Missing = true
		return report, nil
	}
	if err != nil {
		return report, fmt.Errorf("failed to read shadow of %s: %w", file, err)
	}
	report.StoredLines = len(shadow.Hashes)

	for i, hash := range current {
		if i >= len(shadow.Hashes) || shadow.Hashes[i] != hash {
			report.Changed = append(report.Changed, i+1)
		}
	}
	for _, meta := range shadow.Meta {
		var line int
		if _, err := fmt.Sscanf(meta, "%d:", &line); err == nil && line > len(current) {
			report.Stale = append(report.Stale, meta)
		}
	}
	return report, nil
}
