package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/loadgic/loadgic/internal/cstore"
	"github.com/loadgic/loadgic/internal/instrument"
	"github.com/loadgic/loadgic/internal/languages"
	"github.com/loadgic/loadgic/internal/marker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// TraceFileName is the trace file created inside the run directory.
	TraceFileName = "trace.lg"
	tempPattern   = "lg-"
	debugPreview  = 500
	chunkSize     = 32 * 1024
)

// ErrBusy is returned by Run while a previous run of the same Runner is
// still active.
var ErrBusy = errors.New("runner already has an active run")

// Config describes one run.
type Config struct {
	File string
	Args []string
	// Cwd defaults to the directory of File.
	Cwd string
	// Env overrides entries of the current process environment.
	Env map[string]string
	// ProjectRoot enables .cstore markers for the primary file and children.
	ProjectRoot string

	// Stdin defaults to os.Stdin. Stdout and Stderr receive the pass-through
	// streams; nil discards them.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Logger *zap.Logger
	// CheckSyntax parses the instrumented primary with tree-sitter and
	// reports issues the original source did not have.
	CheckSyntax bool
}

// Result is what Run returns once the process has exited.
type Result struct {
	RunID        string                  `json:"run_id"`
	ExitCode     int                     `json:"exit_code"`
	Metrics      []languages.Metric      `json:"metrics"`
	Summary      Summary                 `json:"summary"`
	SyntaxIssues []languages.SyntaxIssue `json:"syntax_issues,omitempty"`
}

// Runner instruments and executes one file at a time.
type Runner struct {
	cfg Config
	obs Observer
	log *zap.Logger

	mu      sync.Mutex
	active  bool
	cmd     *exec.Cmd
	metrics []languages.Metric

	// emitMu serializes observer calls coming from the stream pumps.
	emitMu sync.Mutex
}

// New returns a runner for cfg. A nil obs drops all events.
func New(cfg Config, obs Observer) *Runner {
	if obs == nil {
		obs = nopObserver{}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{cfg: cfg, obs: obs, log: log}
}

// Run executes the configured file. An error is returned only when the
// primary file cannot be read, resolved or written; once the spawn step is
// reached the run always ends with a DoneEvent and a nil error, including
// when the command cannot be started (exit code -1).
func (r *Runner) Run(ctx context.Context) (Result, error) {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return Result{}, ErrBusy
	}
	r.active = true
	r.metrics = nil
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.active = false
		r.cmd = nil
		r.mu.Unlock()
	}()

	result := Result{RunID: uuid.NewString()}
	log := r.log.With(zap.String("run_id", result.RunID))

	file, err := filepath.Abs(r.cfg.File)
	if err != nil {
		return result, fmt.Errorf("failed to resolve %s: %w", r.cfg.File, err)
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return result, fmt.Errorf("failed to read %s: %w", file, err)
	}
	source := string(content)
	lang, err := languages.Resolve(file, content)
	if err != nil {
		return result, err
	}

	markers := r.resolveMarkers(file, source)
	log.Debug("resolved markers",
		zap.String("file", file),
		zap.String("language", lang.String()),
		zap.Strings("markers", markers.Tags()),
	)

	tmpDir, err := os.MkdirTemp("", tempPattern)
	if err != nil {
		return result, fmt.Errorf("failed to create run directory: %w", err)
	}
	removed := false
	removeRunDir := func() {
		if removed {
			return
		}
		removed = true
		if err := os.RemoveAll(tmpDir); err != nil {
			log.Debug("failed to remove run directory", zap.String("dir", tmpDir), zap.Error(err))
		}
	}
	defer removeRunDir()

	traceFile := ""
	if lang.HasPreamble() {
		traceFile = filepath.Join(tmpDir, TraceFileName)
	}

	sourceDir := filepath.Dir(file)
	r.materializeChildren(source, sourceDir, tmpDir, log)

	instrumented := instrument.Source(source, lang, markers, filepath.Base(file), traceFile)
	log.Debug("instrumented primary",
		zap.String("trace_file", traceFile),
		zap.String("preview", preview(instrumented)),
	)
	if r.cfg.CheckSyntax {
		result.SyntaxIssues = r.checkSyntax(ctx, lang, content, instrumented, log)
	}

	target := filepath.Join(tmpDir, filepath.Base(file))
	if err := writeExecutable(target, instrumented); err != nil {
		return result, err
	}

	result.ExitCode = r.execute(ctx, lang, target, sourceDir, log)

	if traceFile != "" {
		r.readTrace(lang, traceFile, log)
	}
	// The run directory is gone before DoneEvent is emitted.
	removeRunDir()

	r.mu.Lock()
	result.Metrics = append([]languages.Metric(nil), r.metrics...)
	r.mu.Unlock()
	result.Summary = Summarize(result.Metrics)

	r.emit(DoneEvent{ExitCode: result.ExitCode, Summary: result.Summary, Metrics: result.Metrics})
	log.Debug("run finished",
		zap.Int("exit_code", result.ExitCode),
		zap.Int("metrics", len(result.Metrics)),
	)
	return result, nil
}

// Kill sends SIGTERM to the active process. It reports false when no
// process is running. Cleanup still happens when Run observes the exit.
func (r *Runner) Kill() (bool, error) {
	r.mu.Lock()
	cmd := r.cmd
	r.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return false, nil
	}
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return false, nil
		}
		return false, fmt.Errorf("failed to signal process %d: %w", cmd.Process.Pid, err)
	}
	return true, nil
}

func (r *Runner) resolveMarkers(file, source string) marker.Set {
	var meta []string
	if r.cfg.ProjectRoot != "" {
		store := cstore.New(r.cfg.ProjectRoot)
		store.Logger = r.log
		meta = store.ReadMeta(file)
	}
	return marker.Resolve(source, meta)
}

func (r *Runner) checkSyntax(ctx context.Context, lang languages.Language, original []byte, instrumented string, log *zap.Logger) []languages.SyntaxIssue {
	before, err := languages.CheckSyntax(ctx, lang, original)
	if err != nil {
		log.Debug("syntax check unavailable", zap.Error(err))
		return nil
	}
	if len(before) > 0 {
		// Nothing to compare against when the original already fails to parse.
		return nil
	}
	issues, err := languages.CheckSyntax(ctx, lang, []byte(instrumented))
	if err != nil {
		log.Debug("syntax check unavailable", zap.Error(err))
		return nil
	}
	for _, issue := range issues {
		log.Warn("instrumented source does not parse", zap.String("issue", issue.String()))
	}
	return issues
}

// execute spawns the instrumented file and pumps its streams until exit.
func (r *Runner) execute(ctx context.Context, lang languages.Language, target, sourceDir string, log *zap.Logger) int {
	name, args := lang.Command(target, r.cfg.Args)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.Dir = r.cfg.Cwd
	if cmd.Dir == "" {
		cmd.Dir = sourceDir
	}
	cmd.Env = mergeEnv(os.Environ(), r.cfg.Env)
	cmd.Stdin = r.cfg.Stdin
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return r.spawnFailed(err, log)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return r.spawnFailed(err, log)
	}
	// Kill waits on mu, so it either sees no process or the started one.
	r.mu.Lock()
	if err := cmd.Start(); err != nil {
		r.mu.Unlock()
		return r.spawnFailed(err, log)
	}
	r.cmd = cmd
	r.mu.Unlock()
	log.Debug("spawned process", zap.String("cmd", name), zap.Strings("args", args), zap.Int("pid", cmd.Process.Pid))

	var g errgroup.Group
	g.Go(func() error { return r.pumpStdout(stdout) })
	g.Go(func() error { return r.pumpStderr(lang, stderr) })
	if err := g.Wait(); err != nil {
		log.Debug("stream pump stopped", zap.Error(err))
	}

	err = cmd.Wait()
	r.mu.Lock()
	r.cmd = nil
	r.mu.Unlock()

	if cmd.ProcessState == nil {
		log.Debug("process wait failed", zap.Error(err))
		return -1
	}
	// ExitCode is -1 when the process was terminated by a signal.
	return cmd.ProcessState.ExitCode()
}

func (r *Runner) spawnFailed(err error, log *zap.Logger) int {
	log.Debug("failed to spawn process", zap.Error(err))
	msg := err.Error() + "\n"
	if r.cfg.Stderr != nil {
		io.WriteString(r.cfg.Stderr, msg)
	}
	r.emit(StderrEvent{Data: msg})
	return -1
}

func (r *Runner) pumpStdout(rd io.Reader) error {
	buf := make([]byte, chunkSize)
	for {
		n, err := rd.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if r.cfg.Stdout != nil {
				r.cfg.Stdout.Write(chunk)
			}
			r.emit(StdoutEvent{Data: string(chunk)})
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stdout: %w", err)
		}
	}
}

// pumpStderr forwards stderr as it arrives, turning probe lines into
// metrics instead of output.
func (r *Runner) pumpStderr(lang languages.Language, rd io.Reader) error {
	split := stderrSplitter{lang: lang, text: r.forwardStderr, metric: r.record}
	buf := make([]byte, chunkSize)
	for {
		n, err := rd.Read(buf)
		if n > 0 {
			split.feed(string(buf[:n]))
		}
		if err != nil {
			split.flush()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("stderr: %w", err)
		}
	}
}

func (r *Runner) forwardStderr(data string) {
	if r.cfg.Stderr != nil {
		io.WriteString(r.cfg.Stderr, data)
	}
	r.emit(StderrEvent{Data: data})
}

func (r *Runner) readTrace(lang languages.Language, path string, log *zap.Logger) {
	content, err := os.ReadFile(path)
	if err != nil {
		// No probe fired through the trace file.
		log.Debug("no trace file", zap.String("path", path), zap.Error(err))
		return
	}
	for _, line := range strings.Split(string(content), "\n") {
		if metric, ok := lang.ParseProbe(line); ok {
			r.record(metric)
		}
	}
}

func (r *Runner) record(metric languages.Metric) {
	r.mu.Lock()
	r.metrics = append(r.metrics, metric)
	r.mu.Unlock()
	r.emit(MetricEvent{Metric: metric})
}

func (r *Runner) emit(e Event) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	r.obs.OnEvent(e)
}

func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	env := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[key]; ok {
			continue
		}
		env = append(env, kv)
	}
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		env = append(env, key+"="+overrides[key])
	}
	return env
}

func writeExecutable(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	// WriteFile leaves the mode of an existing file alone.
	if err := os.Chmod(path, 0o755); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	return nil
}

func preview(s string) string {
	if len(s) <= debugPreview {
		return s
	}
	return s[:debugPreview]
}
