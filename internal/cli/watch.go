package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/loadgic/loadgic/internal/workspace"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RunWatch prints debounced change signals for the project tree until the
// command context is cancelled. Content changes report line drift against
// the store when one exists.
func RunWatch(cmd *cobra.Command, args []string) error {
	proj, err := loadProject(cmd)
	if err != nil {
		return err
	}
	root := proj.Root
	if len(args) > 0 {
		if root, err = filepath.Abs(args[0]); err != nil {
			return fmt.Errorf("failed to resolve %s: %w", args[0], err)
		}
	}

	watcher, err := workspace.NewWatcher(root, workspace.WatchOptions{
		Debounce: time.Duration(proj.Config.Watch.Debounce),
		Matcher:  proj.Matcher,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	done := make(chan error, 1)
	go func() {
		done <- watcher.Run(ctx)
	}()

	store := proj.store()
	fmt.Printf("watching %s\n", root)
	for sig := range watcher.Signals() {
		switch sig.Kind {
		case workspace.StructureChanged:
			fmt.Println("structure changed")
		case workspace.ContentChanged:
			line := fmt.Sprintf("changed: %s", relativeTo(proj.Root, sig.Path))
			if store.Exists() {
				if report, err := store.Drift(sig.Path); err == nil && report.Drifted() {
					line += fmt.Sprintf(" (drift: %d changed lines)", len(report.Changed))
				} else if err != nil {
					logger.Debug("drift check failed", zap.String("file", sig.Path), zap.Error(err))
				}
			}
			fmt.Println(line)
		}
	}
	if err := <-done; err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
