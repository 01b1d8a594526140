package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// FileName is the per-project rules file read by Load.
const FileName = ".lgignore"

// Defaults are excluded from every walk. A later "!" rule in the user
// rules can bring a path back.
var Defaults = []string{
	".git/",
	"node_modules/",
	".cstore/",
}

type rule struct {
	pattern  string
	re       *regexp.Regexp
	negated  bool
	dirOnly  bool
	anchored bool
	nested   bool
}

// Matcher applies gitignore-like rules; the last matching rule decides.
type Matcher struct {
	rules []rule
}

// NewMatcher builds a matcher from Defaults followed by userRules.
func NewMatcher(userRules []string) *Matcher {
	all := make([]string, 0, len(Defaults)+len(userRules))
	all = append(all, Defaults...)
	all = append(all, userRules...)

	m := &Matcher{rules: make([]rule, 0, len(all))}
	for _, line := range all {
		if parsed, ok := parseRule(line); ok {
			m.rules = append(m.rules, parsed)
		}
	}
	return m
}

// Load reads root/.lgignore and returns a matcher for it, with extra rules
// applied after the file's. A missing file yields the defaults plus extra.
func Load(root string, extra ...string) (*Matcher, error) {
	lines, err := ReadRules(filepath.Join(root, FileName))
	if err != nil {
		return nil, err
	}
	return NewMatcher(append(lines, extra...)), nil
}

// ReadRules returns the non-empty lines of path, or nil when it does not
// exist.
func ReadRules(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}

// ShouldIgnore reports whether relPath (slash or OS separated, relative to
// the project root) is excluded.
func (m *Matcher) ShouldIgnore(relPath string, isDir bool) bool {
	if m == nil {
		return false
	}
	relPath = normalizePath(relPath)
	ignored := false
	for _, r := range m.rules {
		if r.matches(relPath, isDir) {
			ignored = !r.negated
		}
	}
	return ignored
}

func parseRule(line string) (rule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false
	}

	var r rule
	if rest, ok := strings.CutPrefix(line, "!"); ok {
		r.negated = true
		line = rest
	}
	if rest, ok := strings.CutPrefix(line, "/"); ok {
		r.anchored = true
		line = rest
	}
	if rest, ok := strings.CutSuffix(line, "/"); ok {
		r.dirOnly = true
		line = rest
	}

	line = normalizePath(line)
	if line == "" {
		return rule{}, false
	}
	r.pattern = line
	r.nested = strings.Contains(line, "/")
	r.re = regexp.MustCompile("^" + globToRegex(line) + "$")
	return r, true
}

func (r rule) matches(relPath string, isDir bool) bool {
	if r.dirOnly {
		return r.matchesDirectory(relPath, isDir)
	}
	if r.anchored {
		return r.re.MatchString(relPath)
	}

	parts := strings.Split(relPath, "/")
	if r.nested {
		for i := range parts {
			if r.re.MatchString(strings.Join(parts[i:], "/")) {
				return true
			}
		}
		return false
	}
	for _, segment := range parts {
		if r.re.MatchString(segment) {
			return true
		}
	}
	return false
}

func (r rule) matchesDirectory(relPath string, isDir bool) bool {
	if relPath == r.pattern || strings.HasPrefix(relPath, r.pattern+"/") {
		return true
	}
	if r.anchored {
		return false
	}

	parts := strings.Split(relPath, "/")
	// The last segment is a directory only when the caller says so.
	dirs := len(parts) - 1
	if isDir {
		dirs = len(parts)
	}
	for i := 0; i < dirs; i++ {
		if !r.nested && r.re.MatchString(parts[i]) {
			return true
		}
		if r.nested && r.re.MatchString(strings.Join(parts[:i+1], "/")) {
			return true
		}
	}
	return false
}

func globToRegex(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case ch == '*' && i+1 < len(pattern) && pattern[i+1] == '*':
			b.WriteString(".*")
			i++
		case ch == '*':
			b.WriteString("[^/]*")
		case ch == '?':
			b.WriteString("[^/]")
		default:
			if strings.IndexByte(`.+()|[]{}^$\`, ch) >= 0 {
				b.WriteByte('\\')
			}
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func normalizePath(path string) string {
	path = filepath.ToSlash(path)
	path = strings.TrimPrefix(path, "./")
	return strings.TrimPrefix(path, "/")
}
