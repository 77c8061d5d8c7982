package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"scribe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WatchDir = filepath.Join(base, "media")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Engine.CacheDir = filepath.Join(base, "cache")
	cfg.Monitor.Workers = 1
	cfg.Monitor.DebounceMillis = 10

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := os.MkdirAll(cfg.Paths.WatchDir, 0o755); err != nil {
		t.Fatalf("create watch dir: %v", err)
	}
	return &cfg
}

// WithWorkers overrides the worker pool size on the test config.
func WithWorkers(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Monitor.Workers = n
	}
}

// WithExtensions overrides the recognized media extensions on the test config.
func WithExtensions(exts ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Monitor.Extensions = exts
	}
}

// WithFingerprintMode selects the fingerprint mode on the test config.
func WithFingerprintMode(mode string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Monitor.FingerprintMode = mode
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WatchDir)
}
