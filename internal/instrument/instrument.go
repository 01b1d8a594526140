package instrument

import (
	"regexp"
	"strings"

	"github.com/loadgic/loadgic/internal/languages"
	"github.com/loadgic/loadgic/internal/marker"
)

// ContinuationIndent is added to a continuation clause's own indentation
// for the probe placed inside its body.
const ContinuationIndent = "    "

var (
	standalonePattern   = regexp.MustCompile(`^\s*#lg=\w+[_ ]\s*$`)
	continuationPattern = regexp.MustCompile(`^\s*(elif|else|except|finally|case)\b.*:\s*(#.*)?$`)
	indentPattern       = regexp.MustCompile(`^\s*`)
)

// IsStandaloneDirective reports whether line holds nothing but a #lg=
// directive.
func IsStandaloneDirective(line string) bool {
	return standalonePattern.MatchString(line)
}

// IsContinuation reports whether line opens a clause that continues a
// previous block (elif, else, except, finally, case) and therefore cannot
// be preceded by an injected statement. This is a keyword heuristic, not a
// parser: clauses split across lines or written without a trailing colon
// are not recognized.
func IsContinuation(line string) bool {
	return continuationPattern.MatchString(line)
}

// Indent returns the leading whitespace of line.
func Indent(line string) string {
	return indentPattern.FindString(line)
}

// Source returns src rewritten so that every line in markers is preceded
// (or, for continuation clauses, followed) by the language's probe
// statement. Unmarked lines are copied verbatim. When the language has a
// preamble and traceFile is not empty the preamble is inserted as the first
// line, or as the second when the first line is a shebang.
func Source(src string, lang languages.Language, markers marker.Set, label, traceFile string) string {
	lines := strings.Split(src, "\n")
	out := make([]string, 0, len(lines)+len(markers)+1)

	start := 0
	if traceFile != "" {
		if preamble, ok := lang.Preamble(traceFile); ok {
			if strings.HasPrefix(lines[0], "#!") {
				out = append(out, lines[0])
				start = 1
			}
			out = append(out, preamble)
		}
	}

	for i := start; i < len(lines); i++ {
		line := lines[i]
		lineNum := i + 1
		kind, ok := markers[lineNum]
		if !ok {
			out = append(out, line)
			continue
		}

		probe := lang.Probe(kind, lineNum, label)
		switch {
		case IsContinuation(line):
			out = append(out, line, Indent(line)+ContinuationIndent+probe)
		case IsStandaloneDirective(line):
			// Indentation comes from the next line; none at end of file.
			next := ""
			if i+1 < len(lines) {
				next = lines[i+1]
			}
			out = append(out, Indent(next)+probe, line)
		default:
			out = append(out, Indent(line)+probe, line)
		}
	}

	return strings.Join(out, "\n")
}
