package cstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/loadgic/loadgic/internal/ignore"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Progress receives generation updates. cli's spinner implements it.
type Progress interface {
	Update(file string, count int)
	Done(count int)
}

// Stats summarizes one Generate call.
type Stats struct {
	Path     string        `json:"path"`
	Files    int           `json:"files"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration_ns"`
}

// Store is the .cstore tree of one project root.
type Store struct {
	Root string
	// Matcher filters the generation walk. Nil means ignore.Defaults only.
	Matcher *ignore.Matcher
	// Concurrency bounds parallel reads during Generate; 0 uses GOMAXPROCS.
	Concurrency int
	Logger      *zap.Logger
}

// New returns a store rooted at root.
func New(root string) *Store {
	return &Store{Root: root}
}

func (s *Store) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Path returns the store directory.
func (s *Store) Path() string {
	return filepath.Join(s.Root, Dir)
}

// Exists reports whether the store directory is present.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.Path())
	return err == nil && info.IsDir()
}

// Ensure generates the store when it does not exist yet.
func (s *Store) Ensure(ctx context.Context) (bool, error) {
	if s.Exists() {
		return false, nil
	}
	if _, err := s.Generate(ctx, nil); err != nil {
		return false, err
	}
	return true, nil
}

type entry struct {
	rel    string
	hashes []string
	ok     bool
}

// Generate deletes the store and rebuilds it with line hashes for every
// readable, non-ignored regular file under Root. Existing metadata is lost.
func (s *Store) Generate(ctx context.Context, progress Progress) (Stats, error) {
	start := time.Now()
	stats := Stats{Path: s.Path()}

	if err := os.RemoveAll(s.Path()); err != nil {
		return stats, fmt.Errorf("failed to clear %s: %w", s.Path(), err)
	}

	files, err := s.collect()
	if err != nil {
		return stats, err
	}

	entries := make([]entry, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit())
	for i, rel := range files {
		i, rel := i, rel
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(filepath.Join(s.Root, rel))
			if err != nil {
				s.logger().Debug("skipping unreadable file", zap.String("file", rel), zap.Error(err))
				return nil
			}
			entries[i] = entry{rel: rel, hashes: LineHashes(string(content)), ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	// Reads are done; writes run in walk order.
	for _, e := range entries {
		if !e.ok {
			stats.Skipped++
			continue
		}
		target, err := ShadowPath(s.Root, e.rel)
		if err != nil {
			return stats, err
		}
		if err := writeShadow(target, Serialize(e.hashes, nil)); err != nil {
			return stats, err
		}
		stats.Files++
		if progress != nil {
			progress.Update(e.rel, stats.Files)
		}
	}
	if progress != nil {
		progress.Done(stats.Files)
	}

	stats.Duration = time.Since(start)
	s.logger().Debug("generated cstore",
		zap.String("path", stats.Path),
		zap.Int("files", stats.Files),
		zap.Int("skipped", stats.Skipped),
		zap.Duration("took", stats.Duration),
	)
	return stats, nil
}

func (s *Store) limit() int {
	if s.Concurrency > 0 {
		return s.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}

// collect returns the root-relative paths of every file Generate
// shadows, in walk order.
func (s *Store) collect() ([]string, error) {
	matcher := s.Matcher
	if matcher == nil {
		matcher = ignore.NewMatcher(nil)
	}

	var files []string
	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unlistable directories are skipped like unreadable files.
			if d != nil && d.IsDir() && path != s.Root {
				return filepath.SkipDir
			}
			return walkErr
		}
		if path == s.Root {
			return nil
		}
		rel, err := filepath.Rel(s.Root, path)
		if err != nil {
			return err
		}
		if matcher.ShouldIgnore(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", s.Root, err)
	}
	return files, nil
}

// Read loads the shadow of file.
func (s *Store) Read(file string) (Shadow, error) {
	path, err := ShadowPath(s.Root, file)
	if err != nil {
		return Shadow{}, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return Shadow{}, err
	}
	return Parse(string(content)), nil
}

// ReadMeta returns the metadata lines stored for file. A missing or
// unreadable shadow yields no metadata.
func (s *Store) ReadMeta(file string) []string {
	shadow, err := s.Read(file)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger().Debug("failed to read cstore metadata", zap.String("file", file), zap.Error(err))
		}
		return nil
	}
	return shadow.Meta
}

// WriteMeta replaces the metadata stored for file. Existing line hashes are
// kept; when the shadow is missing they are computed from the current
// source. It reports false on any failure.
func (s *Store) WriteMeta(file string, meta []string) bool {
	path, err := ShadowPath(s.Root, file)
	if err != nil {
		s.logger().Debug("cannot map file into cstore", zap.String("file", file), zap.Error(err))
		return false
	}

	var hashes []string
	if content, err := os.ReadFile(path); err == nil {
		hashes = Parse(string(content)).Hashes
	} else {
		src := file
		if !filepath.IsAbs(src) {
			src = filepath.Join(s.Root, src)
		}
		content, err := os.ReadFile(src)
		if err != nil {
			s.logger().Debug("cannot hash source for cstore", zap.String("file", file), zap.Error(err))
			return false
		}
		hashes = LineHashes(string(content))
	}

	if err := writeShadow(path, Serialize(hashes, meta)); err != nil {
		s.logger().Debug("failed to write cstore metadata", zap.String("file", file), zap.Error(err))
		return false
	}
	return true
}

func writeShadow(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
