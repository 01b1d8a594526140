package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	quiet, err := New(false)
	if err != nil {
		t.Fatalf("New(false) failed: %v", err)
	}
	if quiet.Core().Enabled(zapcore.InfoLevel) || !quiet.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("expected warn level without debug")
	}

	verbose, err := New(true)
	if err != nil {
		t.Fatalf("New(true) failed: %v", err)
	}
	if !verbose.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug level with debug")
	}
	Sync(quiet)
	Sync(verbose)
	Sync(nil)
}
