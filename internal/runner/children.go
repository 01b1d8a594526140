package runner

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/loadgic/loadgic/internal/instrument"
	"github.com/loadgic/loadgic/internal/languages"
	"github.com/loadgic/loadgic/internal/marker"
	"go.uber.org/zap"
)

// Child is a #lgs= script discovered in a source file.
type Child struct {
	Path     string
	Source   string
	Language languages.Language
}

// FindChildScripts returns the readable, supported scripts referenced by
// #lgs= directives in source. Paths resolve against sourceDir; anything
// that cannot be read or resolved is dropped.
func FindChildScripts(source, sourceDir string) []Child {
	var children []Child
	for _, path := range marker.ChildScripts(source, sourceDir) {
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		lang, err := languages.Resolve(path, content)
		if err != nil {
			continue
		}
		children = append(children, Child{Path: path, Source: string(content), Language: lang})
	}
	return children
}

// materializeChildren writes an instrumented copy of every child script
// into tmpDir at its position relative to sourceDir. Children get no
// preamble; they write to the trace descriptor inherited from the parent.
func (r *Runner) materializeChildren(source, sourceDir, tmpDir string, log *zap.Logger) {
	for _, child := range FindChildScripts(source, sourceDir) {
		rel, err := filepath.Rel(sourceDir, child.Path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			log.Debug("skipping child outside source directory", zap.String("child", child.Path))
			continue
		}

		markers := r.resolveMarkers(child.Path, child.Source)
		log.Debug("instrumenting child script",
			zap.String("child", child.Path),
			zap.Strings("markers", markers.Tags()),
		)
		out := instrument.Source(child.Source, child.Language, markers, filepath.Base(child.Path), "")
		if err := writeExecutable(filepath.Join(tmpDir, rel), out); err != nil {
			log.Debug("failed to materialize child script", zap.String("child", child.Path), zap.Error(err))
		}
	}
}
