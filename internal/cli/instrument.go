package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/loadgic/loadgic/internal/fileutil"
	"github.com/loadgic/loadgic/internal/instrument"
	"github.com/loadgic/loadgic/internal/languages"
	"github.com/loadgic/loadgic/internal/marker"
	"github.com/spf13/cobra"
)

type InstrumentSummary struct {
	File         string                  `json:"file"`
	Language     string                  `json:"language"`
	Markers      []string                `json:"markers"`
	Source       string                  `json:"source"`
	SyntaxIssues []languages.SyntaxIssue `json:"syntax_issues,omitempty"`
}

// sourceFile is a primary file read and resolved the way a run sees it.
type sourceFile struct {
	Path     string
	Source   string
	Language languages.Language
}

func readSourceFile(path string) (sourceFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return sourceFile{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return sourceFile{}, fmt.Errorf("failed to read %s: %w", abs, err)
	}
	lang, err := languages.Resolve(abs, content)
	if err != nil {
		return sourceFile{}, fmt.Errorf("%s: %w", abs, err)
	}
	return sourceFile{Path: abs, Source: string(content), Language: lang}, nil
}

// RunInstrument prints the instrumented form of a file without running it.
func RunInstrument(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	check, err := OptionalBoolFlag(cmd, "check", false)
	if err != nil {
		return err
	}
	noStore, err := OptionalBoolFlag(cmd, "no-store", false)
	if err != nil {
		return err
	}
	traceFile, err := OptionalStringFlag(cmd, "trace-file")
	if err != nil {
		return err
	}

	proj, err := loadProject(cmd)
	if err != nil {
		return err
	}
	file, err := readSourceFile(args[0])
	if err != nil {
		return err
	}

	var meta []string
	if !noStore {
		meta = proj.store().ReadMeta(file.Path)
	}
	markers := marker.Resolve(file.Source, meta)
	summary := InstrumentSummary{
		File:     file.Path,
		Language: file.Language.String(),
		Markers:  markers.Tags(),
		Source:   instrument.Source(file.Source, file.Language, markers, filepath.Base(file.Path), traceFile),
	}

	if check {
		issues, err := languages.CheckSyntax(commandContext(cmd), file.Language, []byte(summary.Source))
		if err != nil {
			return fmt.Errorf("failed to check syntax: %w", err)
		}
		summary.SyntaxIssues = issues
	}

	if asJSON {
		if err := fileutil.PrintJSON(summary); err != nil {
			return err
		}
	} else {
		fmt.Print(fileutil.EnsureTrailingNewline(summary.Source))
		p := newPalette(stderrIsTerminal())
		for _, issue := range summary.SyntaxIssues {
			fmt.Fprintln(os.Stderr, p.err.Sprintf("syntax: %s", issue))
		}
	}
	if len(summary.SyntaxIssues) > 0 {
		return fmt.Errorf("instrumented source has %d syntax issue(s)", len(summary.SyntaxIssues))
	}
	return nil
}
