package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/loadgic/loadgic/internal/fileutil"
	"github.com/loadgic/loadgic/internal/languages"
	"github.com/loadgic/loadgic/internal/toolchain"
	"github.com/spf13/cobra"
)

// RunDoctor checks that the store exists and is current and that every
// language used in the project has its runtime on PATH.
func RunDoctor(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	proj, err := loadProject(cmd)
	if err != nil {
		return err
	}

	store := proj.store()
	summary := DoctorSummary{
		Mode:        "doctor",
		RootPath:    proj.Root,
		StoreDir:    store.Path(),
		StoreExists: store.Exists(),
		Toolchain:   map[string]toolchain.Capability{},
	}

	files, err := projectFiles(proj)
	if err != nil {
		return err
	}
	summary.Files = len(files)

	capabilities := toolchain.Probe(toolchain.DetectPresence(files))
	for lang, capability := range capabilities {
		summary.Toolchain[lang.String()] = capability
	}
	for _, lang := range toolchain.Missing(capabilities) {
		runtime := capabilities[lang].Runtime
		summary.Missing = append(summary.Missing, fmt.Sprintf("%s runtime (%s)", lang, runtime))
		summary.Suggestions = append(summary.Suggestions, fmt.Sprintf("install %s to run %s files", runtime, lang))
	}

	if !summary.StoreExists {
		summary.Missing = append(summary.Missing, ".cstore")
		summary.Suggestions = append(summary.Suggestions, "run loadgic cstore init")
	} else {
		for _, file := range files {
			report, err := store.Drift(file)
			if err != nil || !report.Drifted() {
				continue
			}
			summary.Drifted++
			summary.DriftedFiles = append(summary.DriftedFiles, relativeTo(proj.Root, file))
		}
		if summary.Drifted > 0 {
			summary.Suggestions = append(summary.Suggestions, "run loadgic cstore drift")
		}
	}
	summary.Clean = summary.StoreExists && summary.Drifted == 0

	summary.Missing = fileutil.DedupeStrings(summary.Missing)
	sort.Strings(summary.Missing)
	summary.Suggestions = fileutil.DedupeStrings(summary.Suggestions)
	sort.Strings(summary.Suggestions)
	summary.Healthy = summary.StoreExists && len(summary.Missing) == 0

	if asJSON {
		return fileutil.PrintJSON(summary)
	}

	status := "issues"
	if summary.Healthy {
		status = "ok"
	}
	fmt.Printf("doctor: %s\n", status)
	fmt.Printf("store: present=%t clean=%t files=%d drifted=%d\n", summary.StoreExists, summary.Clean, summary.Files, summary.Drifted)
	if len(summary.DriftedFiles) > 0 {
		fmt.Printf("drifted files (%d): %s\n", len(summary.DriftedFiles), SummarizePaths(summary.DriftedFiles, 8))
	}
	runtimes := make([]string, 0, len(languages.All))
	for _, lang := range languages.All {
		capability := capabilities[lang]
		if !capability.Present {
			continue
		}
		state := "ok"
		if !capability.Available {
			state = "missing"
		}
		runtimes = append(runtimes, fmt.Sprintf("%s=%s(%s)", lang, state, filepath.Base(capability.Runtime)))
	}
	if len(runtimes) > 0 {
		fmt.Printf("runtimes: %s\n", strings.Join(runtimes, " "))
	}
	if len(summary.Missing) > 0 {
		fmt.Printf("missing (%d): %s\n", len(summary.Missing), strings.Join(summary.Missing, ", "))
	}
	for _, suggestion := range summary.Suggestions {
		fmt.Printf("next: %s\n", suggestion)
	}
	return nil
}
