package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesConsoleFormat(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "governor.log")

	logger, err := New(Options{Level: "debug", Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	component := NewComponentLogger(logger, "orchestrator")
	component.Info("mode transition", String(FieldMode, "gaming"), Int(FieldTick, 7))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "orchestrator: mode transition") {
		t.Fatalf("component prefix missing: %q", line)
	}
	if !strings.Contains(line, "mode=gaming") || !strings.Contains(line, "tick=7") {
		t.Fatalf("attrs missing: %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestNewJSONFormat(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "governor.jsonl")

	logger, err := New(Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Warn("gpu limit failed", String(FieldSubsystem, "gpu_limit"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"subsystem":"gpu_limit"`) {
		t.Fatalf("json attrs missing: %q", data)
	}
	if !strings.Contains(string(data), `"level":"warn"`) {
		t.Fatalf("lowercase level missing: %q", data)
	}
}

func TestNopLoggerIsSilent(t *testing.T) {
	logger := NewNop()
	logger.Error("should vanish", Error(os.ErrNotExist))
}
