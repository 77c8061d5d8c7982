package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMonitor()
	c.normalizeEngine()
	c.normalizeLogging()
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
	if c.Status.BufferSize <= 0 {
		c.Status.BufferSize = defaultStatusBufferSize
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WatchDir) != "" {
		if c.Paths.WatchDir, err = expandPath(c.Paths.WatchDir); err != nil {
			return fmt.Errorf("paths.watch_dir: %w", err)
		}
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeMonitor() {
	if c.Monitor.DebounceMillis <= 0 {
		c.Monitor.DebounceMillis = defaultDebounceMillis
	}
	if c.Monitor.QueueCapacity <= 0 {
		c.Monitor.QueueCapacity = defaultQueueCapacity
	}
	if len(c.Monitor.Extensions) == 0 {
		c.Monitor.Extensions = append([]string{}, defaultExtensions...)
	}
	normalized := make([]string, 0, len(c.Monitor.Extensions))
	for _, ext := range c.Monitor.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}
	c.Monitor.Extensions = normalized

	c.Monitor.FingerprintMode = strings.ToLower(strings.TrimSpace(c.Monitor.FingerprintMode))
	if c.Monitor.FingerprintMode == "" {
		c.Monitor.FingerprintMode = defaultFingerprintMode
	}

	c.Monitor.TranscriptExtension = strings.TrimSpace(c.Monitor.TranscriptExtension)
	if c.Monitor.TranscriptExtension == "" {
		c.Monitor.TranscriptExtension = defaultTranscriptExtension
	}
	if !strings.HasPrefix(c.Monitor.TranscriptExtension, ".") {
		c.Monitor.TranscriptExtension = "." + c.Monitor.TranscriptExtension
	}
}

func (c *Config) normalizeEngine() {
	c.Engine.Model = strings.TrimSpace(c.Engine.Model)
	if c.Engine.Model == "" {
		c.Engine.Model = defaultEngineModel
	}
	c.Engine.Language = strings.ToLower(strings.TrimSpace(c.Engine.Language))
	if strings.TrimSpace(c.Engine.CacheDir) != "" {
		if expanded, err := expandPath(c.Engine.CacheDir); err == nil {
			c.Engine.CacheDir = expanded
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
