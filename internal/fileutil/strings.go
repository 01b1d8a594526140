package fileutil

import "strings"

func DedupeStrings(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

// CountLines returns the number of "\n"-separated lines in content. A
// trailing newline ends one more, empty, line, matching how markers and
// shadow hashes number lines.
func CountLines(content string) int {
	return strings.Count(content, "\n") + 1
}
