package marker

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Kind is the role of a marked line in a timed region.
type Kind int

const (
	Entry Kind = iota
	Break
	Exit
)

func (k Kind) String() string {
	switch k {
	case Entry:
		return "entry"
	case Break:
		return "break"
	case Exit:
		return "exit"
	default:
		return "unknown"
	}
}

// Code returns the short tag used in probe output and store metadata.
func (k Kind) Code() string {
	switch k {
	case Entry:
		return "EN"
	case Break:
		return "BR"
	case Exit:
		return "EX"
	default:
		return "??"
	}
}

// ParseKind maps an inline directive name (entry, en, break, br, exit, ex)
// to a Kind. Matching is case-insensitive.
func ParseKind(name string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "entry", "en":
		return Entry, true
	case "break", "br":
		return Break, true
	case "exit", "ex":
		return Exit, true
	default:
		return 0, false
	}
}

// ParseCode maps EN/BR/EX back to a Kind. Matching is exact.
func ParseCode(code string) (Kind, bool) {
	switch code {
	case "EN":
		return Entry, true
	case "BR":
		return Break, true
	case "EX":
		return Exit, true
	default:
		return 0, false
	}
}

// Set maps 1-based line numbers to marker kinds for one file.
type Set map[int]Kind

// Lines returns the marked line numbers in ascending order.
func (s Set) Lines() []int {
	lines := make([]int, 0, len(s))
	for line := range s {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines
}

func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for line, kind := range s {
		if got, ok := other[line]; !ok || got != kind {
			return false
		}
	}
	return true
}

// Count returns how many lines carry the given kind.
func (s Set) Count(kind Kind) int {
	n := 0
	for _, k := range s {
		if k == kind {
			n++
		}
	}
	return n
}

// Tags serializes the set into store metadata lines: entries first, then
// breaks, then exits, each group in ascending line order.
func (s Set) Tags() []string {
	lines := s.Lines()
	tags := make([]string, 0, len(lines))
	for _, kind := range []Kind{Entry, Break, Exit} {
		for _, line := range lines {
			if s[line] == kind {
				tags = append(tags, fmt.Sprintf("%d:%s", line, kind.Code()))
			}
		}
	}
	return tags
}

var (
	directivePattern = regexp.MustCompile(`#lg=(\w+)[_ ]`)
	childPattern     = regexp.MustCompile(`#lgs=(\S+)`)
)

// FromSource collects markers declared with inline #lg=<kind>_ directives.
// Only the first directive on a line counts.
func FromSource(src string) Set {
	set := make(Set)
	for i, line := range strings.Split(src, "\n") {
		match := directivePattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		if kind, ok := ParseKind(match[1]); ok {
			set[i+1] = kind
		}
	}
	return set
}

// FromMeta parses store metadata lines of the form "line:KIND". Lines with
// an unparsable line number or an unknown kind are skipped.
func FromMeta(meta []string) Set {
	set := make(Set)
	for _, tag := range meta {
		lineStr, code, _ := strings.Cut(tag, ":")
		line, err := strconv.Atoi(strings.TrimSpace(lineStr))
		if err != nil {
			continue
		}
		if kind, ok := ParseCode(strings.TrimSpace(code)); ok {
			set[line] = kind
		}
	}
	return set
}

// Merge overlays store-derived markers onto code-derived ones. A store entry
// replaces any code entry on the same line.
func Merge(code, store Set) Set {
	merged := make(Set, len(code)+len(store))
	for line, kind := range code {
		merged[line] = kind
	}
	for line, kind := range store {
		merged[line] = kind
	}
	return merged
}

// Resolve returns the merged marker set for a source text and the metadata
// section of its shadow file (nil when there is none).
func Resolve(src string, meta []string) Set {
	return Merge(FromSource(src), FromMeta(meta))
}

// ChildScripts returns the absolute paths named by #lgs=<path> directives,
// resolved against dir, deduplicated in first-seen order.
func ChildScripts(src, dir string) []string {
	seen := make(map[string]bool)
	paths := make([]string, 0)
	for _, line := range strings.Split(src, "\n") {
		for _, match := range childPattern.FindAllStringSubmatch(line, -1) {
			path := match[1]
			if !filepath.IsAbs(path) {
				path = filepath.Join(dir, path)
			}
			path = filepath.Clean(path)
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			if seen[path] {
				continue
			}
			seen[path] = true
			paths = append(paths, path)
		}
	}
	return paths
}

func (k Kind) MarshalText() ([]byte, error) {
	if k < Entry || k > Exit {
		return nil, fmt.Errorf("invalid marker kind %d", int(k))
	}
	return []byte(k.Code()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	if kind, ok := ParseCode(string(text)); ok {
		*k = kind
		return nil
	}
	if kind, ok := ParseKind(string(text)); ok {
		*k = kind
		return nil
	}
	return fmt.Errorf("unknown marker kind %q", string(text))
}
