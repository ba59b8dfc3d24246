package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lister/internal/logging"
)

func TestNewWritesConsoleFormat(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "lister.log")

	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "console",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}

	scoped := logging.NewComponentLogger(logger, "dispatch")
	scoped.Info("upload complete",
		logging.String(logging.FieldPlatform, "base"),
		logging.Int64(logging.FieldItemID, 42),
	)

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "INFO dispatch: upload complete") {
		t.Fatalf("unexpected log line: %q", line)
	}
	if !strings.Contains(line, "platform=base") || !strings.Contains(line, "item_id=42") {
		t.Fatalf("expected structured fields in line: %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestDebugFilteredAtInfoLevel(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "lister.log")

	logger, err := logging.New(logging.Options{Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	logger.Debug("should not appear")

	data, err := os.ReadFile(logPath)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(data), "should not appear") {
		t.Fatal("debug line was not filtered")
	}
}
