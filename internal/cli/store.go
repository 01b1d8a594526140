package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/loadgic/loadgic/internal/cstore"
	"github.com/loadgic/loadgic/internal/fileutil"
	"github.com/loadgic/loadgic/internal/ignore"
	"github.com/loadgic/loadgic/internal/workspace"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultIgnoreTemplate = `# Paths loadgic skips when building .cstore and watching the tree.
# .git/, node_modules/ and .cstore/ are always skipped.
dist/
build/
`

// RunStoreInit writes a starter .lgignore and generates the store unless it
// already exists.
func RunStoreInit(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	root, err := resolveProjectRoot(cmd)
	if err != nil {
		return err
	}
	wrote, err := fileutil.WriteIfMissing(filepath.Join(root, ignore.FileName), []byte(defaultIgnoreTemplate), 0644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", ignore.FileName, err)
	}
	if wrote && !asJSON {
		fmt.Printf("wrote %s\n", filepath.Join(root, ignore.FileName))
	}

	proj, err := loadProject(cmd)
	if err != nil {
		return err
	}
	store := proj.store()
	if store.Exists() {
		return printStoreSummary(StoreSummary{Mode: "init", RootPath: proj.Root, StoreDir: store.Path()}, asJSON)
	}
	return generateStore(cmd, proj, "init", asJSON)
}

// RunStoreGenerate rebuilds the store from scratch. Stored markers are lost.
func RunStoreGenerate(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	proj, err := loadProject(cmd)
	if err != nil {
		return err
	}
	return generateStore(cmd, proj, "generate", asJSON)
}

func generateStore(cmd *cobra.Command, proj *project, mode string, asJSON bool) error {
	store := proj.store()
	stats, err := store.Generate(commandContext(cmd), newGenerateProgress("cstore", asJSON))
	if err != nil {
		return err
	}
	return printStoreSummary(StoreSummary{
		Mode:       mode,
		RootPath:   proj.Root,
		StoreDir:   stats.Path,
		Generated:  true,
		Files:      stats.Files,
		Skipped:    stats.Skipped,
		DurationMS: stats.Duration.Milliseconds(),
	}, asJSON)
}

func printStoreSummary(summary StoreSummary, asJSON bool) error {
	if asJSON {
		return fileutil.PrintJSON(summary)
	}
	if !summary.Generated {
		fmt.Printf("%s: store already present at %s\n", summary.Mode, summary.StoreDir)
		return nil
	}
	fmt.Printf("%s: files=%d skipped=%d duration=%dms\n", summary.Mode, summary.Files, summary.Skipped, summary.DurationMS)
	fmt.Printf("output: %s\n", summary.StoreDir)
	return nil
}

// RunStoreDrift compares shadows with the current sources. With no
// arguments every non-ignored file under the root is checked.
func RunStoreDrift(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	proj, err := loadProject(cmd)
	if err != nil {
		return err
	}

	files := args
	if len(files) == 0 {
		files, err = projectFiles(proj)
		if err != nil {
			return err
		}
	}

	store := proj.store()
	summary := DriftSummary{Mode: "drift", RootPath: proj.Root, Reports: make([]cstore.DriftReport, 0)}
	start := time.Now()
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", file, err)
		}
		report, err := store.Drift(abs)
		if err != nil {
			return err
		}
		summary.Checked++
		if report.Drifted() || len(report.Stale) > 0 {
			summary.Drifted++
			summary.Reports = append(summary.Reports, report)
		}
	}
	logger.Debug("checked drift", zap.Int("files", summary.Checked), zap.Duration("duration", time.Since(start)))

	if asJSON {
		return fileutil.PrintJSON(summary)
	}
	fmt.Printf("drift: checked=%d drifted=%d\n", summary.Checked, summary.Drifted)
	for _, report := range summary.Reports {
		rel := relativeTo(proj.Root, report.File)
		if report.Missing {
			fmt.Printf("  %s: no shadow\n", rel)
			continue
		}
		changed := make([]string, 0, len(report.Changed))
		for _, line := range report.Changed {
			changed = append(changed, fmt.Sprint(line))
		}
		fmt.Printf("  %s: lines=%d->%d changed=[%s]", rel, report.StoredLines, report.SourceLines, SummarizePaths(changed, 10))
		if len(report.Stale) > 0 {
			fmt.Printf(" stale=[%s]", SummarizePaths(report.Stale, 10))
		}
		fmt.Println()
	}
	if summary.Drifted > 0 {
		fmt.Println("next: review markers on changed lines, or run loadgic cstore generate")
	}
	return nil
}

// projectFiles lists the files under the root that the store covers.
func projectFiles(proj *project) ([]string, error) {
	tree, err := workspace.ReadTree(proj.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to read project tree: %w", err)
	}
	var files []string
	for _, file := range tree.Files() {
		rel, err := filepath.Rel(proj.Root, file)
		if err != nil || proj.Matcher.ShouldIgnore(rel, false) || ignoredParent(proj.Matcher, rel) {
			continue
		}
		files = append(files, file)
	}
	return files, nil
}

func ignoredParent(m *ignore.Matcher, rel string) bool {
	for dir := filepath.Dir(rel); dir != "." && dir != string(filepath.Separator); dir = filepath.Dir(dir) {
		if m.ShouldIgnore(dir, true) {
			return true
		}
	}
	return false
}

func relativeTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return path
}
