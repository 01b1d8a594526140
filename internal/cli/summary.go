package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/loadgic/loadgic/internal/cstore"
	"github.com/loadgic/loadgic/internal/languages"
	"github.com/loadgic/loadgic/internal/marker"
	"github.com/loadgic/loadgic/internal/runner"
	"github.com/loadgic/loadgic/internal/toolchain"
)

type MarkersSummary struct {
	File     string       `json:"file"`
	Language string       `json:"language"`
	Code     []string     `json:"code"`
	Store    []string     `json:"store"`
	Merged   []string     `json:"merged"`
	State    marker.State `json:"state"`
}

type StoreSummary struct {
	Mode       string `json:"mode"`
	RootPath   string `json:"root_path"`
	StoreDir   string `json:"store_dir"`
	Generated  bool   `json:"generated"`
	Files      int    `json:"files"`
	Skipped    int    `json:"skipped"`
	DurationMS int64  `json:"duration_ms"`
}

type DriftSummary struct {
	Mode     string               `json:"mode"`
	RootPath string               `json:"root_path"`
	Checked  int                  `json:"checked"`
	Drifted  int                  `json:"drifted"`
	Reports  []cstore.DriftReport `json:"reports"`
}

type DoctorSummary struct {
	Mode         string                          `json:"mode"`
	RootPath     string                          `json:"root_path"`
	StoreDir     string                          `json:"store_dir"`
	StoreExists  bool                            `json:"store_exists"`
	Healthy      bool                            `json:"healthy"`
	Clean        bool                            `json:"clean"`
	Files        int                             `json:"files"`
	Drifted      int                             `json:"drifted"`
	DriftedFiles []string                        `json:"drifted_files,omitempty"`
	Toolchain    map[string]toolchain.Capability `json:"toolchain"`
	Missing      []string                        `json:"missing,omitempty"`
	Suggestions  []string                        `json:"suggestions,omitempty"`
}

// palette holds the terminal styles. Every style is disabled when the
// target stream is not a terminal.
type palette struct {
	entry *color.Color
	brk   *color.Color
	exit  *color.Color
	err   *color.Color
	dim   *color.Color
}

func newPalette(enabled bool) palette {
	style := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return palette{
		entry: style(color.FgGreen, color.Bold),
		brk:   style(color.FgYellow),
		exit:  style(color.FgCyan, color.Bold),
		err:   style(color.FgRed),
		dim:   style(color.Faint),
	}
}

func (p palette) marker(kind marker.Kind) *color.Color {
	switch kind {
	case marker.Entry:
		return p.entry
	case marker.Break:
		return p.brk
	default:
		return p.exit
	}
}

func formatMetric(p palette, m languages.Metric) string {
	return fmt.Sprintf("%s %s:%d %s",
		p.marker(m.Marker).Sprintf("[%s]", m.Marker.Code()),
		m.Source,
		m.Line,
		p.dim.Sprintf("@%.6f", m.Time),
	)
}

func PrintRunSummary(w io.Writer, p palette, result runner.Result) {
	s := result.Summary
	fmt.Fprintf(w, "run: exit=%d metrics=%d entries=%d breaks=%d exits=%d\n",
		result.ExitCode, s.TotalMetrics, s.Entries, s.Breaks, s.Exits)
	for _, span := range s.Durations {
		fmt.Fprintf(w, "  %s -> %s %.3fms\n",
			p.marker(span.FromMarker).Sprintf("%d:%s", span.From, span.FromMarker.Code()),
			p.marker(span.ToMarker).Sprintf("%d:%s", span.To, span.ToMarker.Code()),
			span.Duration,
		)
	}
	if len(result.SyntaxIssues) > 0 {
		issues := make([]string, 0, len(result.SyntaxIssues))
		for _, issue := range result.SyntaxIssues {
			issues = append(issues, issue.String())
		}
		fmt.Fprintf(w, "%s\n", p.err.Sprintf("syntax issues (%d): %s", len(issues), SummarizePaths(issues, 5)))
	}
}

func SummarizePaths(paths []string, max int) string {
	if len(paths) <= max {
		return strings.Join(paths, ", ")
	}
	return fmt.Sprintf("%s ... (+%d more)", strings.Join(paths[:max], ", "), len(paths)-max)
}
