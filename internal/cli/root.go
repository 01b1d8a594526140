package cli

import (
	"fmt"

	"github.com/loadgic/loadgic/internal/config"
	"github.com/loadgic/loadgic/internal/logging"
	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "loadgic",
		Short: "Time marked regions of scripts without editing them",
		Long: `Loadgic runs JavaScript, TypeScript, Python, shell, Go and Rust files
with timing probes injected at marked lines and reports how long the
program took between them.

Mark lines in the source with #lg=entry_, #lg=break_ or #lg=exit_
directives, or keep markers out of the source in the project's .cstore/.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbose, err := OptionalBoolFlag(cmd, "verbose", false)
			if err != nil {
				return err
			}
			debug := verbose || config.DebugFromEnv()
			if !debug {
				if root, err := resolveProjectRoot(cmd); err == nil {
					if cfg, err := config.Load(root); err == nil {
						debug = cfg.Debug
					}
				}
			}
			l, err := logging.New(debug)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync(logger)
		},
	}
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("root", "", "Project root holding .cstore/ (default: working directory)")

	// Run Commands
	runCmd := &cobra.Command{
		Use:   "run <file> [-- args...]",
		Short: "Instrument and run a file, printing metrics as probes fire",
		Args:  cobra.MinimumNArgs(1),
		RunE:  RunFile,
	}
	runCmd.Flags().String("cwd", "", "Working directory for the program (default: the file's directory)")
	runCmd.Flags().StringArray("env", nil, "Extra environment variable KEY=VALUE (repeatable)")
	runCmd.Flags().Bool("no-store", false, "Ignore markers kept in .cstore/")
	runCmd.Flags().Bool("check-syntax", false, "Parse the instrumented file and report syntax issues")
	runCmd.Flags().Bool("json", false, "Print the run result as JSON")

	instrumentCmd := &cobra.Command{
		Use:   "instrument <file>",
		Short: "Print a file with probes injected, without running it",
		Args:  cobra.ExactArgs(1),
		RunE:  RunInstrument,
	}
	instrumentCmd.Flags().Bool("check", false, "Fail when the instrumented file does not parse")
	instrumentCmd.Flags().Bool("no-store", false, "Ignore markers kept in .cstore/")
	instrumentCmd.Flags().String("trace-file", "", "Trace file path for languages that write probes to a file")
	instrumentCmd.Flags().Bool("json", false, "Print machine-readable output")

	// Marker Commands
	markersCmd := &cobra.Command{
		Use:   "markers <file>",
		Short: "Show source, stored and merged markers of a file",
		Args:  cobra.ExactArgs(1),
		RunE:  RunMarkers,
	}
	markersCmd.Flags().Bool("json", false, "Print machine-readable output")

	markCmd := &cobra.Command{
		Use:   "mark <file> <line> [entry|break|exit|cycle|clear]",
		Short: "Set, cycle or clear the stored marker of a line",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  RunMark,
	}
	markCmd.Flags().Bool("json", false, "Print machine-readable output")

	// Store Commands
	storeCmd := &cobra.Command{
		Use:   "cstore",
		Short: "Manage the .cstore/ marker store",
	}
	storeInitCmd := &cobra.Command{
		Use:   "init",
		Short: "Write .lgignore and create .cstore/ if it is missing",
		Args:  cobra.NoArgs,
		RunE:  RunStoreInit,
	}
	storeInitCmd.Flags().Bool("json", false, "Print machine-readable summary")
	storeGenerateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Rebuild .cstore/ from the current sources, dropping stored markers",
		Args:  cobra.NoArgs,
		RunE:  RunStoreGenerate,
	}
	storeGenerateCmd.Flags().Bool("json", false, "Print machine-readable summary")
	storeDriftCmd := &cobra.Command{
		Use:   "drift [file...]",
		Short: "Report lines that changed since their shadow was written",
		RunE:  RunStoreDrift,
	}
	storeDriftCmd.Flags().Bool("json", false, "Print machine-readable report")
	storeCmd.AddCommand(storeInitCmd, storeGenerateCmd, storeDriftCmd)

	// Workspace Commands
	treeCmd := &cobra.Command{
		Use:   "tree [path]",
		Short: "Print the project tree",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunTree,
	}
	treeCmd.Flags().Bool("json", false, "Print machine-readable tree")

	catCmd := &cobra.Command{
		Use:   "cat <file>",
		Short: "Print a project file, refusing binaries and paths outside the root",
		Args:  cobra.ExactArgs(1),
		RunE:  RunCat,
	}
	catCmd.Flags().Bool("json", false, "Print machine-readable content")

	watchCmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Print debounced file change notifications",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunWatch,
	}

	doctorCmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the store and language runtimes",
		Args:  cobra.NoArgs,
		RunE:  RunDoctor,
	}
	doctorCmd.Flags().Bool("json", false, "Print machine-readable doctor output")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("loadgic %s\n", version)
		},
	}

	rootCmd.AddCommand(
		runCmd,
		instrumentCmd,
		markersCmd,
		markCmd,
		storeCmd,
		treeCmd,
		catCmd,
		watchCmd,
		doctorCmd,
		versionCmd,
	)

	return rootCmd
}
