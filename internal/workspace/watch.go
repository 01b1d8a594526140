package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/loadgic/loadgic/internal/ignore"
	"go.uber.org/zap"
)

// DefaultDebounce is used when WatchOptions.Debounce is zero.
const DefaultDebounce = 150 * time.Millisecond

// SignalKind tells a tree refresh apart from a single file refresh.
type SignalKind int

const (
	// StructureChanged means entries were created, removed or renamed.
	StructureChanged SignalKind = iota
	// ContentChanged means the file at Signal.Path was written.
	ContentChanged
)

func (k SignalKind) String() string {
	if k == StructureChanged {
		return "structure"
	}
	return "content"
}

// Signal is one debounced change notification.
type Signal struct {
	Kind SignalKind
	// Path is empty for StructureChanged.
	Path string
}

// WatchOptions configures a Watcher.
type WatchOptions struct {
	Debounce time.Duration
	// Matcher excludes paths from watching. Nil uses ignore.Defaults, which
	// keeps .cstore writes from triggering signals.
	Matcher *ignore.Matcher
	Logger  *zap.Logger
}

// Watcher watches a project tree recursively and emits debounced signals.
type Watcher struct {
	root     string
	debounce time.Duration
	matcher  *ignore.Matcher
	log      *zap.Logger
	fs       *fsnotify.Watcher
	signals  chan Signal
}

// NewWatcher registers watches on root and all its non-ignored
// subdirectories. Call Run to start delivering signals.
func NewWatcher(root string, opts WatchOptions) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		root:     abs,
		debounce: opts.Debounce,
		matcher:  opts.Matcher,
		log:      opts.Logger,
		fs:       fw,
		signals:  make(chan Signal, 64),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.matcher == nil {
		w.matcher = ignore.NewMatcher(nil)
	}
	if w.log == nil {
		w.log = zap.NewNop()
	}

	if err := w.addRecursive(abs); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Signals returns the channel Run delivers to. It is closed when Run
// returns.
func (w *Watcher) Signals() <-chan Signal {
	return w.signals
}

// Run processes filesystem events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.signals)
	defer w.fs.Close()

	var (
		structureDue time.Time
		contentDue   = make(map[string]time.Time)
		timer        = time.NewTimer(time.Hour)
	)
	timer.Stop()
	defer timer.Stop()

	rearm := func() {
		next := structureDue
		for _, due := range contentDue {
			if next.IsZero() || due.Before(next) {
				next = due
			}
		}
		timer.Stop()
		if !next.IsZero() {
			timer.Reset(time.Until(next))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			kind, relevant := w.classify(event)
			if !relevant {
				continue
			}
			due := time.Now().Add(w.debounce)
			if kind == StructureChanged {
				structureDue = due
			} else {
				contentDue[event.Name] = due
			}
			rearm()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Debug("watch error", zap.Error(err))

		case now := <-timer.C:
			var ready []Signal
			if !structureDue.IsZero() && !now.Before(structureDue) {
				ready = append(ready, Signal{Kind: StructureChanged})
				structureDue = time.Time{}
			}
			paths := make([]string, 0, len(contentDue))
			for path, due := range contentDue {
				if !now.Before(due) {
					paths = append(paths, path)
				}
			}
			sort.Strings(paths)
			for _, path := range paths {
				delete(contentDue, path)
				ready = append(ready, Signal{Kind: ContentChanged, Path: path})
			}
			for _, s := range ready {
				select {
				case w.signals <- s:
				case <-ctx.Done():
					return nil
				}
			}
			rearm()
		}
	}
}

// classify maps an fsnotify event to a signal kind. New directories are
// added to the watch list here.
func (w *Watcher) classify(event fsnotify.Event) (SignalKind, bool) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || rel == "." {
		return 0, false
	}

	switch {
	case event.Has(fsnotify.Create):
		isDir := isDirectory(event.Name)
		if w.matcher.ShouldIgnore(rel, isDir) {
			return 0, false
		}
		if isDir {
			if err := w.addRecursive(event.Name); err != nil {
				w.log.Debug("failed to watch new directory", zap.String("dir", event.Name), zap.Error(err))
			}
		}
		return StructureChanged, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// The entry is gone, so rules for either kind may apply.
		if w.matcher.ShouldIgnore(rel, false) || w.matcher.ShouldIgnore(rel, true) {
			return 0, false
		}
		return StructureChanged, true
	case event.Has(fsnotify.Write):
		if w.matcher.ShouldIgnore(rel, false) {
			return 0, false
		}
		return ContentChanged, true
	default:
		return 0, false
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root {
			rel, relErr := filepath.Rel(w.root, path)
			if relErr == nil && w.matcher.ShouldIgnore(rel, true) {
				return filepath.SkipDir
			}
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func isDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
