package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/config"
)

func TestLoadDefaultsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogDir := filepath.Join(tempHome, ".local", "share", "scribe", "logs")
	if cfg.Paths.LogDir != wantLogDir {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogDir)
	}
	if cfg.Monitor.FingerprintMode != "mtime" {
		t.Fatalf("unexpected fingerprint mode: %q", cfg.Monitor.FingerprintMode)
	}
	if cfg.Monitor.TranscriptExtension != ".txt" {
		t.Fatalf("unexpected transcript extension: %q", cfg.Monitor.TranscriptExtension)
	}
	if len(cfg.Monitor.Extensions) == 0 || cfg.Monitor.Extensions[0] != ".mp3" {
		t.Fatalf("unexpected extensions: %v", cfg.Monitor.Extensions)
	}
	if cfg.Monitor.Workers != 0 {
		t.Fatalf("expected workers default 0 (auto), got %d", cfg.Monitor.Workers)
	}
	if cfg.Engine.Model != "base" {
		t.Fatalf("unexpected engine model: %q", cfg.Engine.Model)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	if _, err := os.Stat(cfg.Paths.LogDir); err != nil {
		t.Fatalf("log dir not created: %v", err)
	}
}

func TestLoadParsesFileAndNormalizesExtensions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
watch_dir = "` + filepath.Join(dir, "media") + `"

[monitor]
extensions = ["MP3", "ogg", ".Flac"]
transcript_extension = "transcript.txt"
debounce_millis = 250
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %q to be found, got %q exists=%v", path, resolved, exists)
	}
	want := []string{".mp3", ".ogg", ".flac"}
	if len(cfg.Monitor.Extensions) != len(want) {
		t.Fatalf("unexpected extensions: %v", cfg.Monitor.Extensions)
	}
	for i, ext := range want {
		if cfg.Monitor.Extensions[i] != ext {
			t.Fatalf("extension %d: got %q want %q", i, cfg.Monitor.Extensions[i], ext)
		}
	}
	if cfg.Monitor.TranscriptExtension != ".transcript.txt" {
		t.Fatalf("unexpected transcript extension: %q", cfg.Monitor.TranscriptExtension)
	}
	if cfg.Monitor.DebounceMillis != 250 {
		t.Fatalf("unexpected debounce: %d", cfg.Monitor.DebounceMillis)
	}
}

func TestLoadRejectsBadFingerprintMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := "[monitor]\nfingerprint_mode = \"crc32\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for unsupported fingerprint mode")
	}
	if !strings.Contains(err.Error(), "fingerprint_mode") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load of sample failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Monitor.QueueCapacity != 256 {
		t.Fatalf("unexpected queue capacity from sample: %d", cfg.Monitor.QueueCapacity)
	}
}
