package toolchain

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/loadgic/loadgic/internal/languages"
)

func TestDetectPresence(t *testing.T) {
	presence := DetectPresence([]string{
		"scripts/build.sh",
		"src/app.py",
		"web/index.mjs",
		"README.md",
		"bin/tool",
	})

	for _, lang := range []languages.Language{languages.Shell, languages.Python, languages.JavaScript} {
		if !presence[lang] {
			t.Fatalf("expected %s to be present", lang)
		}
	}
	for _, lang := range []languages.Language{languages.TypeScript, languages.Go, languages.Rust} {
		if presence[lang] {
			t.Fatalf("expected %s to be absent", lang)
		}
	}
}

func TestProbeWithLookPath(t *testing.T) {
	presence := map[languages.Language]bool{
		languages.Python: true,
		languages.Shell:  true,
		languages.Go:     false,
	}
	capabilities := ProbeWithLookPath(presence, func(file string) (string, error) {
		switch file {
		case "bash", "go":
			return "/mock/bin/" + file, nil
		default:
			return "", errors.New("not found")
		}
	})

	if c := capabilities[languages.Shell]; !c.Available || c.Path != "/mock/bin/bash" || c.Reason != "" {
		t.Fatalf("expected shell available via bash, got %#v", c)
	}
	if c := capabilities[languages.Python]; c.Available || c.Runtime != "python3" || c.Reason != ReasonNotFound {
		t.Fatalf("expected python3 missing, got %#v", c)
	}
	if c := capabilities[languages.Go]; !c.Available || c.Reason != ReasonNotPresent {
		t.Fatalf("expected go available but unused, got %#v", c)
	}
	if diff := cmp.Diff([]languages.Language{languages.Python}, Missing(capabilities)); diff != "" {
		t.Fatalf("unexpected missing runtimes (-want +got):\n%s", diff)
	}
}

func TestRuntimeNames(t *testing.T) {
	want := map[languages.Language]string{
		languages.JavaScript: "node",
		languages.TypeScript: "npx",
		languages.Python:     "python3",
		languages.Shell:      "bash",
		languages.Go:         "go",
		languages.Rust:       "cargo",
	}
	for lang, name := range want {
		if got := Runtime(lang); got != name {
			t.Fatalf("%s: expected runtime %s, got %s", lang, name, got)
		}
	}
}
