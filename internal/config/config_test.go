package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("LOADGIC_DEBUG", "")
	t.Setenv("DEBUG", "")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("unexpected defaults (-want +got):\n%s", diff)
	}
}

func TestLoadParsesFile(t *testing.T) {
	t.Setenv("LOADGIC_DEBUG", "")
	t.Setenv("DEBUG", "")
	root := t.TempDir()
	content := `check_syntax: true
env:
  APP_MODE: test
ignore:
  - dist/
watch:
  debounce: 40ms
`
	if err := os.WriteFile(filepath.Join(root, FileName), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := &Config{
		CheckSyntax: true,
		Env:         map[string]string{"APP_MODE": "test"},
		Ignore:      []string{"dist/"},
		Watch:       WatchConfig{Debounce: Duration(40 * time.Millisecond)},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("unexpected config (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("watch:\n  debounce: soon\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(root); err == nil {
		t.Fatalf("expected parse error for invalid duration")
	}
}

func TestDebugEnvOverrides(t *testing.T) {
	cases := []struct {
		loadgic, debug string
		want           bool
	}{
		{loadgic: "1", want: true},
		{loadgic: "false", debug: "true", want: false},
		{debug: "true", want: true},
		{debug: "TRUE", want: true},
		{debug: "1", want: false},
	}
	for _, tc := range cases {
		t.Setenv("LOADGIC_DEBUG", tc.loadgic)
		t.Setenv("DEBUG", tc.debug)
		if got := DebugFromEnv(); got != tc.want {
			t.Fatalf("LOADGIC_DEBUG=%q DEBUG=%q: expected %v, got %v", tc.loadgic, tc.debug, tc.want, got)
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("LOADGIC_DEBUG", "")
	t.Setenv("DEBUG", "")
	root := t.TempDir()
	cfg := Default()
	cfg.Env["X"] = "1"
	cfg.Watch.Debounce = Duration(time.Second)
	if err := cfg.Save(root); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}
