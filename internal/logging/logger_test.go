package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/logging"
)

func TestNewConsoleWritesComponentPrefix(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	component := logging.NewComponentLogger(logger, "watcher")
	component.Info("subscription established", logging.String(logging.FieldPath, "/media/root"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "INFO watcher: subscription established") {
		t.Fatalf("unexpected console line: %q", line)
	}
	if !strings.Contains(line, "path=/media/root") {
		t.Fatalf("expected path attribute in line: %q", line)
	}
}

func TestNewConsoleFiltersBelowLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "filtered.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "warn",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("should be dropped")
	logger.Warn("should be kept")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "should be dropped") {
		t.Fatalf("info line leaked through warn level: %q", content)
	}
	if !strings.Contains(string(content), "should be kept") {
		t.Fatalf("warn line missing: %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestJSONFormatQuotesValues(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")

	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("committed", logging.String(logging.FieldPath, "/media/a b.mp3"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), `"path":"/media/a b.mp3"`) {
		t.Fatalf("expected JSON path field, got %q", content)
	}
}
