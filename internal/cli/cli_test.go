package cli

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/loadgic/loadgic/internal/cstore"
	"github.com/loadgic/loadgic/internal/ignore"
	"github.com/loadgic/loadgic/internal/languages"
	"github.com/loadgic/loadgic/internal/marker"
	"github.com/loadgic/loadgic/internal/runner"
	"github.com/loadgic/loadgic/internal/workspace"
	"github.com/spf13/cobra"
)

const jobScript = `echo start
sleep 0.01
echo mid #lg=break_
echo end
`

func TestMarkCyclesAndClearsStoredMarkers(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "job.sh")
	mustWriteFile(t, file, jobScript)

	withWorkingDir(t, root, func() {
		store := cstore.New(root)
		steps := []struct {
			args []string
			want []string
		}{
			{args: []string{"job.sh", "2"}, want: []string{"2:EN"}},
			{args: []string{"job.sh", "4"}, want: []string{"2:EN", "4:BR"}},
			{args: []string{"job.sh", "2"}, want: []string{"2:BR", "4:BR"}},
			{args: []string{"job.sh", "4", "exit"}, want: []string{"2:BR", "4:EX"}},
			{args: []string{"job.sh", "1", "entry"}, want: []string{"1:EN", "2:BR", "4:EX"}},
			{args: []string{"job.sh", "2", "clear"}, want: []string{"1:EN", "4:EX"}},
		}
		for _, step := range steps {
			captureStdout(t, func() {
				if err := RunMark(newMarkCmdForTest(), step.args); err != nil {
					t.Fatalf("RunMark %v failed: %v", step.args, err)
				}
			})
			if diff := cmp.Diff(step.want, store.ReadMeta(file)); diff != "" {
				t.Fatalf("after mark %v (-want +got):\n%s", step.args, diff)
			}
		}
	})
}

func TestMarkCycleRespectsSourceEntry(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "job.sh")
	mustWriteFile(t, file, "echo start #lg=entry_\necho mid\necho end\n")

	withWorkingDir(t, root, func() {
		captureStdout(t, func() {
			if err := RunMark(newMarkCmdForTest(), []string{"job.sh", "2"}); err != nil {
				t.Fatalf("RunMark failed: %v", err)
			}
		})
		if diff := cmp.Diff([]string{"2:BR"}, cstore.New(root).ReadMeta(file)); diff != "" {
			t.Fatalf("expected a break beside the source entry (-want +got):\n%s", diff)
		}
	})
}

func TestMarkRejectsInvalidInput(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "job.sh"), jobScript)

	withWorkingDir(t, root, func() {
		err := RunMark(newMarkCmdForTest(), []string{"job.sh", "99"})
		if !errors.Is(err, marker.ErrInvalidLine) {
			t.Fatalf("expected ErrInvalidLine, got %v", err)
		}
		if err := RunMark(newMarkCmdForTest(), []string{"job.sh", "1", "pause"}); err == nil {
			t.Fatalf("expected unknown action to fail")
		}
		if err := RunMark(newMarkCmdForTest(), []string{"job.sh", "one"}); err == nil {
			t.Fatalf("expected non-numeric line to fail")
		}
		mustWriteFile(t, filepath.Join(root, "notes.txt"), "x\n")
		if err := RunMark(newMarkCmdForTest(), []string{"notes.txt", "1"}); !errors.Is(err, languages.ErrUnsupported) {
			t.Fatalf("expected ErrUnsupported for .txt, got %v", err)
		}
	})
	assertNotExists(t, filepath.Join(root, cstore.Dir))
}

func TestMarkersJSONShowsMergedSets(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "job.sh"), jobScript)

	withWorkingDir(t, root, func() {
		for _, args := range [][]string{{"job.sh", "1", "entry"}, {"job.sh", "3", "exit"}} {
			captureStdout(t, func() {
				if err := RunMark(newMarkCmdForTest(), args); err != nil {
					t.Fatalf("RunMark %v failed: %v", args, err)
				}
			})
		}

		cmd := newMarkersCmdForTest()
		mustSetFlag(t, cmd, "json", "true")
		stdout := captureStdout(t, func() {
			if err := RunMarkers(cmd, []string{"job.sh"}); err != nil {
				t.Fatalf("RunMarkers failed: %v", err)
			}
		})

		var summary MarkersSummary
		if err := json.Unmarshal([]byte(stdout), &summary); err != nil {
			t.Fatalf("failed to decode markers output: %v\noutput=%s", err, stdout)
		}
		want := MarkersSummary{
			File:     filepath.Join(root, "job.sh"),
			Language: languages.Shell.String(),
			Code:     []string{"3:BR"},
			Store:    []string{"1:EN", "3:EX"},
			Merged:   []string{"1:EN", "3:EX"},
			State:    marker.State{Entry: 1, Exits: []int{3}},
		}
		if diff := cmp.Diff(want, summary); diff != "" {
			t.Fatalf("unexpected markers summary (-want +got):\n%s", diff)
		}
	})
}

func TestInstrumentPrintsProbes(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "job.sh"), jobScript)

	withWorkingDir(t, root, func() {
		cmd := newInstrumentCmdForTest()
		mustSetFlag(t, cmd, "trace-file", "/tmp/trace.lg")
		stdout := captureStdout(t, func() {
			if err := RunInstrument(cmd, []string{"job.sh"}); err != nil {
				t.Fatalf("RunInstrument failed: %v", err)
			}
		})

		lines := strings.Split(stdout, "\n")
		if lines[0] != "exec 9>/tmp/trace.lg" {
			t.Fatalf("expected preamble first, got %q", lines[0])
		}
		if !strings.Contains(stdout, `[LG:BR:3:$EPOCHREALTIME:job.sh]`) {
			t.Fatalf("expected break probe for line 3, got:\n%s", stdout)
		}
		if !strings.Contains(stdout, "echo mid #lg=break_") {
			t.Fatalf("expected directive line to be kept, got:\n%s", stdout)
		}
	})
}

func TestStoreInitWritesIgnoreFileAndStore(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "job.sh"), jobScript)
	mustWriteFile(t, filepath.Join(root, "dist", "bundle.js"), "console.log(1)\n")

	withWorkingDir(t, root, func() {
		cmd := newStoreCmdForTest()
		mustSetFlag(t, cmd, "json", "true")
		stdout := captureStdout(t, func() {
			if err := RunStoreInit(cmd, nil); err != nil {
				t.Fatalf("RunStoreInit failed: %v", err)
			}
		})
		var first StoreSummary
		if err := json.Unmarshal([]byte(stdout), &first); err != nil {
			t.Fatalf("failed to decode init output: %v\noutput=%s", err, stdout)
		}
		if !first.Generated || first.Files != 2 {
			t.Fatalf("expected store generated for job.sh and .lgignore, got %+v", first)
		}
		assertExists(t, filepath.Join(root, ignore.FileName))

		shadow, err := cstore.ShadowPath(root, filepath.Join(root, "job.sh"))
		if err != nil {
			t.Fatalf("ShadowPath failed: %v", err)
		}
		assertExists(t, shadow)
		skipped, err := cstore.ShadowPath(root, filepath.Join(root, "dist", "bundle.js"))
		if err != nil {
			t.Fatalf("ShadowPath failed: %v", err)
		}
		assertNotExists(t, skipped)

		stdout = captureStdout(t, func() {
			if err := RunStoreInit(cmd, nil); err != nil {
				t.Fatalf("second RunStoreInit failed: %v", err)
			}
		})
		var second StoreSummary
		if err := json.Unmarshal([]byte(stdout), &second); err != nil {
			t.Fatalf("failed to decode second init output: %v\noutput=%s", err, stdout)
		}
		if second.Generated {
			t.Fatalf("expected existing store to be kept, got %+v", second)
		}
	})
}

func TestStoreDriftReportsEditedFiles(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "job.sh")
	mustWriteFile(t, file, jobScript)

	withWorkingDir(t, root, func() {
		captureStdout(t, func() {
			if err := RunStoreGenerate(newStoreCmdForTest(), nil); err != nil {
				t.Fatalf("RunStoreGenerate failed: %v", err)
			}
		})
		mustWriteFile(t, file, strings.Replace(jobScript, "sleep 0.01", "sleep 0.02", 1))

		cmd := newStoreCmdForTest()
		mustSetFlag(t, cmd, "json", "true")
		stdout := captureStdout(t, func() {
			if err := RunStoreDrift(cmd, nil); err != nil {
				t.Fatalf("RunStoreDrift failed: %v", err)
			}
		})
		var summary DriftSummary
		if err := json.Unmarshal([]byte(stdout), &summary); err != nil {
			t.Fatalf("failed to decode drift output: %v\noutput=%s", err, stdout)
		}
		if summary.Checked != 1 || summary.Drifted != 1 {
			t.Fatalf("expected one drifted file, got %+v", summary)
		}
		if diff := cmp.Diff([]int{2}, summary.Reports[0].Changed); diff != "" {
			t.Fatalf("unexpected changed lines (-want +got):\n%s", diff)
		}
	})
}

func TestDoctorReportsMissingAndHealthyStore(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "job.sh"), jobScript)

	withWorkingDir(t, root, func() {
		doctorCmd := newDoctorCmdForTest()
		mustSetFlag(t, doctorCmd, "json", "true")

		var missing DoctorSummary
		stdout := captureStdout(t, func() {
			if err := RunDoctor(doctorCmd, nil); err != nil {
				t.Fatalf("RunDoctor failed: %v", err)
			}
		})
		if err := json.Unmarshal([]byte(stdout), &missing); err != nil {
			t.Fatalf("failed to decode doctor output: %v\noutput=%s", err, stdout)
		}
		if missing.Healthy || missing.StoreExists {
			t.Fatalf("expected unhealthy doctor without store, got %+v", missing)
		}
		if !containsString(missing.Suggestions, "run loadgic cstore init") {
			t.Fatalf("expected cstore init suggestion, got %#v", missing.Suggestions)
		}
		if !missing.Toolchain[languages.Shell.String()].Present {
			t.Fatalf("expected shell to be detected, got %#v", missing.Toolchain)
		}

		captureStdout(t, func() {
			if err := RunStoreGenerate(newStoreCmdForTest(), nil); err != nil {
				t.Fatalf("RunStoreGenerate failed: %v", err)
			}
		})
		var current DoctorSummary
		stdout = captureStdout(t, func() {
			if err := RunDoctor(doctorCmd, nil); err != nil {
				t.Fatalf("RunDoctor after generate failed: %v", err)
			}
		})
		if err := json.Unmarshal([]byte(stdout), &current); err != nil {
			t.Fatalf("failed to decode doctor output: %v\noutput=%s", err, stdout)
		}
		if !current.StoreExists || !current.Clean || current.Drifted != 0 {
			t.Fatalf("expected clean store after generate, got %+v", current)
		}
	})
}

func TestTreeAndCat(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "src", "main.py"), "print(1)\n")
	mustWriteFile(t, filepath.Join(root, "README.md"), "# demo\n")
	mustWriteFile(t, filepath.Join(root, "node_modules", "x.js"), "")

	withWorkingDir(t, root, func() {
		stdout := captureStdout(t, func() {
			if err := RunTree(newTreeCmdForTest(), nil); err != nil {
				t.Fatalf("RunTree failed: %v", err)
			}
		})
		want := filepath.Base(root) + "/\n├── src/\n│   └── main.py\n└── README.md\n"
		if stdout != want {
			t.Fatalf("unexpected tree:\n%s\nwant:\n%s", stdout, want)
		}

		stdout = captureStdout(t, func() {
			if err := RunCat(newCatCmdForTest(), []string{"src/main.py"}); err != nil {
				t.Fatalf("RunCat failed: %v", err)
			}
		})
		if stdout != "print(1)\n" {
			t.Fatalf("unexpected cat output %q", stdout)
		}

		if err := RunCat(newCatCmdForTest(), []string{"../outside.txt"}); !errors.Is(err, workspace.ErrOutsideRoot) {
			t.Fatalf("expected ErrOutsideRoot, got %v", err)
		}
	})
}

func TestRunPropagatesExitCodeAndMetrics(t *testing.T) {
	requireBash(t)
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "job.sh"), "#lg=entry_\necho $LG_MODE\n#lg=exit_\nexit 4\n")
	mustWriteFile(t, filepath.Join(root, ".loadgic.yaml"), "env:\n  LG_MODE: config\n")

	withWorkingDir(t, root, func() {
		cmd := newRunCmdForTest()
		mustSetFlag(t, cmd, "json", "true")
		mustSetFlag(t, cmd, "env", "LG_MODE=flag")

		var runErr error
		stdout := captureStdout(t, func() {
			runErr = RunFile(cmd, []string{"job.sh"})
		})

		var exitErr *ExitCodeError
		if !errors.As(runErr, &exitErr) || exitErr.Code != 4 {
			t.Fatalf("expected exit code 4, got %v", runErr)
		}
		var result runner.Result
		if err := json.Unmarshal([]byte(stdout), &result); err != nil {
			t.Fatalf("failed to decode run output: %v\noutput=%s", err, stdout)
		}
		if result.ExitCode != 4 || result.Summary.Entries != 1 || result.Summary.Exits != 1 {
			t.Fatalf("unexpected run result %+v", result)
		}
	})
}

func TestParseEnvAssignments(t *testing.T) {
	env, err := ParseEnvAssignments([]string{"A=1", "B=x=y", "A=2", "EMPTY="})
	if err != nil {
		t.Fatalf("ParseEnvAssignments failed: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"A": "2", "B": "x=y", "EMPTY": ""}, env); diff != "" {
		t.Fatalf("unexpected env (-want +got):\n%s", diff)
	}
	for _, bad := range []string{"NOVALUE", "=1"} {
		if _, err := ParseEnvAssignments([]string{bad}); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestFormatMetricWithoutColor(t *testing.T) {
	got := formatMetric(newPalette(false), languages.Metric{Marker: marker.Break, Line: 7, Time: 1.5, Source: "job.sh"})
	if got != "[BR] job.sh:7 @1.500000" {
		t.Fatalf("unexpected metric line %q", got)
	}
}

func TestOptionalFlagsWithoutRegistration(t *testing.T) {
	cmd := &cobra.Command{}
	if v, err := OptionalBoolFlag(cmd, "json", true); err != nil || !v {
		t.Fatalf("expected fallback true, got %v %v", v, err)
	}
	if v, err := OptionalStringFlag(cmd, "cwd"); err != nil || v != "" {
		t.Fatalf("expected empty string, got %q %v", v, err)
	}
	if v, err := OptionalStringArrayFlag(cmd, "env"); err != nil || v != nil {
		t.Fatalf("expected nil slice, got %#v %v", v, err)
	}
}

func TestRootCommandRegistersCommands(t *testing.T) {
	root := NewRootCommand("1.2.3")
	for _, path := range [][]string{
		{"run"}, {"instrument"}, {"markers"}, {"mark"},
		{"cstore", "init"}, {"cstore", "generate"}, {"cstore", "drift"},
		{"tree"}, {"cat"}, {"watch"}, {"doctor"}, {"version"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Fatalf("expected command %v to be registered, got %v (%v)", path, cmd, err)
		}
	}

	root.SetArgs([]string{"version"})
	stdout := captureStdout(t, func() {
		if err := root.Execute(); err != nil {
			t.Fatalf("version failed: %v", err)
		}
	})
	if stdout != "loadgic 1.2.3\n" {
		t.Fatalf("unexpected version output %q", stdout)
	}
}

func newRunCmdForTest() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("cwd", "", "")
	cmd.Flags().StringArray("env", nil, "")
	cmd.Flags().Bool("no-store", false, "")
	cmd.Flags().Bool("check-syntax", false, "")
	cmd.Flags().Bool("json", false, "")
	return cmd
}

func newInstrumentCmdForTest() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().Bool("check", false, "")
	cmd.Flags().Bool("no-store", false, "")
	cmd.Flags().String("trace-file", "", "")
	cmd.Flags().Bool("json", false, "")
	return cmd
}

func newMarkCmdForTest() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().Bool("json", false, "")
	return cmd
}

func newMarkersCmdForTest() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().Bool("json", false, "")
	return cmd
}

func newStoreCmdForTest() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().Bool("json", false, "")
	return cmd
}

func newDoctorCmdForTest() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().Bool("json", false, "")
	return cmd
}

func newTreeCmdForTest() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().Bool("json", false, "")
	return cmd
}

func newCatCmdForTest() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().Bool("json", false, "")
	return cmd
}

func withWorkingDir(t *testing.T, dir string, fn func()) {
	t.Helper()

	originalWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get cwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	defer func() {
		_ = os.Chdir(originalWD)
	}()

	fn()
}

func assertExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}

func assertNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Fatalf("expected %s to not exist", path)
	} else if !os.IsNotExist(err) {
		t.Fatalf("expected %s to be absent: %v", path, err)
	}
}

func mustSetFlag(t *testing.T, cmd *cobra.Command, key, value string) {
	t.Helper()
	if err := cmd.Flags().Set(key, value); err != nil {
		t.Fatalf("failed to set --%s=%s: %v", key, value, err)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	original := os.Stdout
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create stdout pipe: %v", err)
	}
	os.Stdout = writer
	defer func() {
		os.Stdout = original
		_ = writer.Close()
		_ = reader.Close()
	}()

	fn()

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close stdout writer: %v", err)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("failed to read captured stdout: %v", err)
	}
	return string(data)
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

func requireBash(t *testing.T) {
	t.Helper()
	path, err := exec.LookPath("bash")
	if err != nil {
		t.Skip("bash not available")
	}
	out, err := exec.Command(path, "-c", `echo -n "$EPOCHREALTIME"`).Output()
	if err != nil || len(out) == 0 {
		t.Skip("bash without EPOCHREALTIME")
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
}
