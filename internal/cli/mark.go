package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/loadgic/loadgic/internal/fileutil"
	"github.com/loadgic/loadgic/internal/marker"
	"github.com/spf13/cobra"
)

// RunMarkers shows where the markers of a file come from and how they
// merge.
func RunMarkers(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
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

	summary := newMarkersSummary(file, marker.FromMeta(proj.store().ReadMeta(file.Path)))
	if asJSON {
		return fileutil.PrintJSON(summary)
	}
	fmt.Printf("markers: %s (%s)\n", summary.File, summary.Language)
	fmt.Printf("code: %s\n", joinOrNone(summary.Code))
	fmt.Printf("store: %s\n", joinOrNone(summary.Store))
	fmt.Printf("merged: %s\n", joinOrNone(summary.Merged))
	return nil
}

func newMarkersSummary(file sourceFile, stored marker.Set) MarkersSummary {
	code := marker.FromSource(file.Source)
	merged := marker.Merge(code, stored)
	return MarkersSummary{
		File:     file.Path,
		Language: file.Language.String(),
		Code:     code.Tags(),
		Store:    stored.Tags(),
		Merged:   merged.Tags(),
		State:    merged.State(),
	}
}

type markerAction struct {
	op   string
	kind marker.Kind
}

// parseMarkerAction accepts cycle, clear, or a marker kind by name or code.
func parseMarkerAction(raw string) (markerAction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "cycle":
		return markerAction{op: "cycle"}, nil
	case "clear", "none":
		return markerAction{op: "clear"}, nil
	}
	if kind, ok := marker.ParseKind(raw); ok {
		return markerAction{op: "set", kind: kind}, nil
	}
	return markerAction{}, fmt.Errorf("unsupported marker action %q (supported: entry, break, exit, cycle, clear)", raw)
}

// RunMark edits the stored markers of one line. Directives written in the
// source are left alone; a stored marker on the same line overrides them.
func RunMark(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	line, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid line %q: %w", args[1], err)
	}
	actionRaw := ""
	if len(args) > 2 {
		actionRaw = args[2]
	}
	action, err := parseMarkerAction(actionRaw)
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
	if err := marker.CheckLine(line, fileutil.CountLines(file.Source)); err != nil {
		return err
	}

	store := proj.store()
	stored := marker.FromMeta(store.ReadMeta(file.Path))
	switch action.op {
	case "cycle":
		// Cycle against the merged set so a source entry counts.
		next := marker.Cycle(marker.Merge(marker.FromSource(file.Source), stored), line)
		if kind, ok := next[line]; ok {
			stored = marker.Apply(stored, line, kind)
		} else {
			stored = marker.Clear(stored, line)
		}
	case "clear":
		stored = marker.Clear(stored, line)
	default:
		stored = marker.Apply(stored, line, action.kind)
	}
	if !store.WriteMeta(file.Path, stored.Tags()) {
		return fmt.Errorf("failed to write markers for %s", file.Path)
	}

	if asJSON {
		return fileutil.PrintJSON(newMarkersSummary(file, stored))
	}
	current := "none"
	if kind, ok := stored[line]; ok {
		current = kind.String()
	}
	fmt.Printf("mark: %s:%d -> %s\n", file.Path, line, current)
	fmt.Printf("store: %s\n", joinOrNone(stored.Tags()))
	return nil
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, " ")
}
