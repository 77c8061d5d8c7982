package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WatchDir string `toml:"watch_dir"`
	LogDir   string `toml:"log_dir"`
}

// Monitor contains configuration for discovery and pipeline behavior.
type Monitor struct {
	// Workers bounds the transcription worker pool. Zero means one worker
	// per available CPU.
	Workers int `toml:"workers"`
	// DebounceMillis is how long a file must stay unchanged (size and
	// mtime) before a watcher event is admitted.
	DebounceMillis int `toml:"debounce_millis"`
	// RescanIntervalSeconds re-walks the root to pick up deferred files.
	// Zero disables periodic rescans.
	RescanIntervalSeconds int `toml:"rescan_interval_seconds"`
	// Extensions lists recognized media file extensions (with leading dot).
	Extensions []string `toml:"extensions"`
	// FingerprintMode selects "mtime" (size+mtime) or "sha256" fingerprints.
	FingerprintMode string `toml:"fingerprint_mode"`
	// TranscriptExtension is the sidecar extension for committed transcripts.
	TranscriptExtension string `toml:"transcript_extension"`
	// JobTimeoutSeconds bounds a single transcription job. Zero means no limit.
	JobTimeoutSeconds int `toml:"job_timeout_seconds"`
	// QueueCapacity bounds pending jobs before enqueue blocks producers.
	QueueCapacity int `toml:"queue_capacity"`
}

// Engine contains configuration for the WhisperX transcription engine.
type Engine struct {
	Model       string `toml:"model"`
	Language    string `toml:"language"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	CacheDir    string `toml:"cache_dir"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Commits        bool   `toml:"commits"`
	Errors         bool   `toml:"errors"`
	Lifecycle      bool   `toml:"lifecycle"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Status contains configuration for the status event buffer.
type Status struct {
	// BufferSize bounds retained status events; oldest events are dropped
	// (and counted) when the consumer falls behind.
	BufferSize int `toml:"buffer_size"`
}

// Config encapsulates all configuration values for scribe.
//
// Configuration sections by subsystem:
//   - Paths: watched root and log directory
//   - Monitor: discovery, debounce, fingerprint, and queue settings
//   - Engine: WhisperX model and device selection
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
//   - Status: status event buffer sizing
type Config struct {
	Paths         Paths         `toml:"paths"`
	Monitor       Monitor       `toml:"monitor"`
	Engine        Engine        `toml:"engine"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Status        Status        `toml:"status"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scribe/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a config file was found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Engine.CacheDir) != "" {
		if err := os.MkdirAll(c.Engine.CacheDir, 0o755); err != nil {
			return fmt.Errorf("create engine cache directory %q: %w", c.Engine.CacheDir, err)
		}
	}
	return nil
}

// SocketPath returns the unix socket the daemon listens on.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "scribed.sock")
}

// CatalogPath returns the path of the durable file catalog database.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.LogDir, "catalog.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
