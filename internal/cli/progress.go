package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// generateProgress draws a one-line spinner on stderr while the store is
// generated. It implements cstore.Progress and stays silent off a TTY.
type generateProgress struct {
	enabled bool
	out     io.Writer
	label   string
	start   time.Time
	spinner int
	lastLen int
}

func newGenerateProgress(label string, asJSON bool) *generateProgress {
	return &generateProgress{
		enabled: stderrIsTerminal() && !asJSON,
		out:     os.Stderr,
		label:   label,
		start:   time.Now(),
	}
}

func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (r *generateProgress) Update(file string, count int) {
	if !r.enabled {
		return
	}
	frames := [4]string{"-", "\\", "|", "/"}
	frame := frames[r.spinner%len(frames)]
	r.spinner++
	file = strings.TrimSpace(file)
	if len(file) > 88 {
		file = "..." + file[len(file)-85:]
	}
	r.printStatus(fmt.Sprintf("%s %s %d shadowing %s", frame, r.label, count, file))
}

func (r *generateProgress) Done(count int) {
	if !r.enabled {
		return
	}
	elapsed := time.Since(r.start).Round(time.Millisecond)
	r.printStatus(fmt.Sprintf("%s complete (%d files in %s)", r.label, count, elapsed))
	fmt.Fprintln(r.out)
}

func (r *generateProgress) printStatus(status string) {
	if r.lastLen > len(status) {
		status = status + strings.Repeat(" ", r.lastLen-len(status))
	}
	r.lastLen = len(status)
	fmt.Fprintf(r.out, "\r%s", status)
}
