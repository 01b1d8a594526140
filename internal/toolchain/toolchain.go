package toolchain

import (
	"os/exec"

	"github.com/loadgic/loadgic/internal/languages"
)

const (
	ReasonNotPresent = "language_not_present"
	ReasonNotFound   = "runtime_not_found"
)

// Capability says whether files of one language can be run here.
type Capability struct {
	Present   bool   `json:"present"`
	Runtime   string `json:"runtime"`
	Path      string `json:"path,omitempty"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Runtime returns the program a language's run recipe invokes.
func Runtime(lang languages.Language) string {
	name, _ := lang.Command("", nil)
	return name
}

// DetectPresence marks every language that has at least one file in paths.
// Extension-less files count as shell scripts without reading them.
func DetectPresence(paths []string) map[languages.Language]bool {
	presence := make(map[languages.Language]bool, len(languages.All))
	for _, lang := range languages.All {
		presence[lang] = false
	}
	for _, path := range paths {
		if lang, err := languages.Resolve(path, nil); err == nil {
			presence[lang] = true
		}
	}
	return presence
}

// Probe looks up each language's runtime on PATH.
func Probe(presence map[languages.Language]bool) map[languages.Language]Capability {
	return ProbeWithLookPath(presence, exec.LookPath)
}

// ProbeWithLookPath is Probe with an injectable lookup. Runtimes are probed
// for every language; Present only records whether the project uses it.
func ProbeWithLookPath(presence map[languages.Language]bool, lookPath func(file string) (string, error)) map[languages.Language]Capability {
	capabilities := make(map[languages.Language]Capability, len(languages.All))
	for _, lang := range languages.All {
		capability := Capability{Present: presence[lang], Runtime: Runtime(lang)}
		if path, err := lookPath(capability.Runtime); err == nil {
			capability.Available = true
			capability.Path = path
		} else if capability.Present {
			capability.Reason = ReasonNotFound
		}
		if !capability.Present && capability.Reason == "" {
			capability.Reason = ReasonNotPresent
		}
		capabilities[lang] = capability
	}
	return capabilities
}

// Missing lists the languages the project uses whose runtime is absent.
func Missing(capabilities map[languages.Language]Capability) []languages.Language {
	var out []languages.Language
	for _, lang := range languages.All {
		if c := capabilities[lang]; c.Present && !c.Available {
			out = append(out, lang)
		}
	}
	return out
}
