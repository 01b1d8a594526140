package languages

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/loadgic/loadgic/internal/marker"
)

// ErrUnsupported is returned when no registered language matches a file.
var ErrUnsupported = errors.New("unsupported file type")

// Language is the closed set of languages the runner can instrument.
type Language int

const (
	JavaScript Language = iota
	TypeScript
	Python
	Shell
	Go
	Rust
)

// All lists every registered language in resolution order.
var All = []Language{JavaScript, TypeScript, Python, Shell, Go, Rust}

func (l Language) String() string {
	switch l {
	case JavaScript:
		return "javascript"
	case TypeScript:
		return "typescript"
	case Python:
		return "python"
	case Shell:
		return "shell"
	case Go:
		return "go"
	case Rust:
		return "rust"
	default:
		return "unknown"
	}
}

// Extensions returns the lowercase file extensions handled by l. Shell
// also claims the empty extension.
func (l Language) Extensions() []string {
	switch l {
	case JavaScript:
		return []string{".js", ".mjs"}
	case TypeScript:
		return []string{".ts"}
	case Python:
		return []string{".py"}
	case Shell:
		return []string{".sh", ".bash", ""}
	case Go:
		return []string{".go"}
	case Rust:
		return []string{".rs"}
	default:
		return nil
	}
}

// Command returns the program and argument vector that execute file.
func (l Language) Command(file string, args []string) (string, []string) {
	switch l {
	case JavaScript:
		return "node", append([]string{file}, args...)
	case TypeScript:
		return "npx", append([]string{"tsx", file}, args...)
	case Python:
		return "python3", append([]string{file}, args...)
	case Shell:
		return "bash", append([]string{file}, args...)
	case Go:
		return "go", append([]string{"run", file}, args...)
	case Rust:
		// cargo resolves the crate from the working directory, not from file.
		return "cargo", append([]string{"run", "--quiet", "--"}, args...)
	default:
		return "", nil
	}
}

// Probe returns a single statement that writes one probe line for a marker
// hit to the language's trace channel.
func (l Language) Probe(kind marker.Kind, line int, label string) string {
	code := kind.Code()
	label = sanitizeLabel(label)
	switch l {
	case JavaScript, TypeScript:
		return fmt.Sprintf(`require('fs').writeSync(global._lgFd||9,'[LG:%s:%d:'+(Date.now()/1000)+':%s]\n');`, code, line, label)
	case Python:
		return fmt.Sprintf(`__import__('os').write(globals().get('__lgfd',9),f'[LG:%s:%d:{__import__("time").time()}:%s]\n'.encode())`, code, line, label)
	case Shell:
		return fmt.Sprintf(`>&9 echo "[LG:%s:%d:$EPOCHREALTIME:%s]"`, code, line, label)
	case Go:
		return fmt.Sprintf(`fmt.Fprintf(os.Stderr, "[LG:%s:%d:%%.6f:%s]\n", float64(time.Now().UnixNano())/1e9)`, code, line, label)
	case Rust:
		return fmt.Sprintf(`eprintln!("[LG:%s:%d:{}:%s]", std::time::SystemTime::now().duration_since(std::time::UNIX_EPOCH).unwrap().as_secs_f64());`, code, line, label)
	default:
		return ""
	}
}

// Preamble returns setup code that opens traceFile as the private probe
// channel. Languages that probe straight to stderr report false.
func (l Language) Preamble(traceFile string) (string, bool) {
	switch l {
	case JavaScript, TypeScript:
		return fmt.Sprintf(`global._lgFd=require('fs').openSync('%s','w');`, traceFile), true
	case Python:
		return fmt.Sprintf(`import os;globals()['__lgfd']=os.open('%s',os.O_WRONLY|os.O_CREAT|os.O_TRUNC,0o644)`, traceFile), true
	case Shell:
		return fmt.Sprintf(`exec 9>%s`, traceFile), true
	default:
		return "", false
	}
}

// HasPreamble reports whether l redirects probes into a trace file.
func (l Language) HasPreamble() bool {
	_, ok := l.Preamble("")
	return ok
}

// Resolve detects the language of path. Extension matching is exact and
// case-insensitive. Files without an extension consult the shebang on the
// first line of content and fall back to Shell.
func Resolve(path string, content []byte) (Language, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" && len(content) > 0 {
		if lang, ok := ResolveShebang(content); ok {
			return lang, nil
		}
	}
	for _, lang := range All {
		for _, candidate := range lang.Extensions() {
			if ext == candidate {
				return lang, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupported, ext)
}

// ResolveShebang matches the interpreter named on a #! first line.
func ResolveShebang(content []byte) (Language, bool) {
	first, _, _ := strings.Cut(string(content), "\n")
	if !strings.HasPrefix(first, "#!") {
		return 0, false
	}
	switch {
	case strings.Contains(first, "node"):
		return JavaScript, true
	case strings.Contains(first, "python"):
		return Python, true
	case strings.Contains(first, "bash"), strings.Contains(first, "/sh"):
		return Shell, true
	default:
		return 0, false
	}
}

// sanitizeLabel keeps a source label from terminating the probe's string
// literal or the bracketed probe line early.
func sanitizeLabel(label string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ']', '\'', '"', '\\', '\n', '\r', '{', '}', '$', '`', '%':
			return '_'
		}
		return r
	}, label)
}
