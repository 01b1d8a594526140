package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/loadgic/loadgic/internal/fileutil"
	"github.com/loadgic/loadgic/internal/runner"
	"github.com/spf13/cobra"
)

// RunFile instruments and executes args[0], passing args[1:] to it. Program
// stdout passes through; metrics, forwarded stderr and the summary go to
// stderr. With --json the result is printed on stdout and program stdout is
// moved to stderr so stdout stays parseable.
func RunFile(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing file to run")
	}
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	noStore, err := OptionalBoolFlag(cmd, "no-store", false)
	if err != nil {
		return err
	}
	checkSyntax, err := OptionalBoolFlag(cmd, "check-syntax", false)
	if err != nil {
		return err
	}
	cwd, err := OptionalStringFlag(cmd, "cwd")
	if err != nil {
		return err
	}
	envRaw, err := OptionalStringArrayFlag(cmd, "env")
	if err != nil {
		return err
	}
	envFlags, err := ParseEnvAssignments(envRaw)
	if err != nil {
		return err
	}

	proj, err := loadProject(cmd)
	if err != nil {
		return err
	}
	env := make(map[string]string, len(proj.Config.Env)+len(envFlags))
	for k, v := range proj.Config.Env {
		env[k] = v
	}
	for k, v := range envFlags {
		env[k] = v
	}

	cfg := runner.Config{
		File:        args[0],
		Args:        args[1:],
		Cwd:         cwd,
		Env:         env,
		Stdout:      os.Stdout,
		Logger:      logger,
		CheckSyntax: checkSyntax || proj.Config.CheckSyntax,
	}
	if !noStore {
		cfg.ProjectRoot = proj.Root
	}
	if asJSON {
		cfg.Stdout = os.Stderr
	}

	view := newRunView(os.Stderr, newPalette(stderrIsTerminal()), asJSON)
	result, err := runner.New(cfg, view).Run(commandContext(cmd))
	if err != nil {
		return err
	}

	if asJSON {
		if err := fileutil.PrintJSON(result); err != nil {
			return err
		}
	} else {
		PrintRunSummary(os.Stderr, view.palette, result)
	}
	if result.ExitCode != 0 {
		return &ExitCodeError{Code: result.ExitCode}
	}
	return nil
}

// runView prints run events as they arrive. The runner serializes calls.
type runView struct {
	out     io.Writer
	palette palette
	quiet   bool
}

func newRunView(out io.Writer, p palette, quiet bool) *runView {
	return &runView{out: out, palette: p, quiet: quiet}
}

func (v *runView) OnEvent(e runner.Event) {
	switch e := e.(type) {
	case runner.MetricEvent:
		if !v.quiet {
			fmt.Fprintln(v.out, formatMetric(v.palette, e.Metric))
		}
	case runner.StderrEvent:
		v.palette.err.Fprint(v.out, e.Data)
	}
}
