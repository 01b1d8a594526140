package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/loadgic/loadgic/internal/config"
	"github.com/loadgic/loadgic/internal/cstore"
	"github.com/loadgic/loadgic/internal/ignore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// logger is replaced by the root command's PersistentPreRunE. Commands
// invoked directly, as in tests, log nowhere.
var logger = zap.NewNop()

// ExitCodeError makes the process exit with Code without printing anything.
// `loadgic run` returns it to propagate the child's exit status.
type ExitCodeError struct {
	Code int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

func resolveWorkingDirectory() (string, error) {
	rootPath, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return rootPath, nil
}

// resolveProjectRoot returns --root when given, else the working directory.
func resolveProjectRoot(cmd *cobra.Command) (string, error) {
	root, err := OptionalStringFlag(cmd, "root")
	if err != nil {
		return "", err
	}
	if root == "" {
		return resolveWorkingDirectory()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve --root: %w", err)
	}
	return abs, nil
}

// project bundles the per-root settings every command needs.
type project struct {
	Root    string
	Config  *config.Config
	Matcher *ignore.Matcher
}

func loadProject(cmd *cobra.Command) (*project, error) {
	root, err := resolveProjectRoot(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	matcher, err := ignore.Load(root, cfg.Ignore...)
	if err != nil {
		return nil, err
	}
	return &project{Root: root, Config: cfg, Matcher: matcher}, nil
}

func (p *project) store() *cstore.Store {
	store := cstore.New(p.Root)
	store.Matcher = p.Matcher
	store.Logger = logger
	return store
}

// commandContext returns the command's context, or Background for commands
// invoked without Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}
