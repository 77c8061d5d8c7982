package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMonitor(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMonitor() error {
	if c.Monitor.Workers < 0 {
		return errors.New("monitor.workers must not be negative")
	}
	if c.Monitor.JobTimeoutSeconds < 0 {
		return errors.New("monitor.job_timeout_seconds must not be negative")
	}
	if c.Monitor.RescanIntervalSeconds < 0 {
		return errors.New("monitor.rescan_interval_seconds must not be negative")
	}
	switch c.Monitor.FingerprintMode {
	case "mtime", "sha256":
	default:
		return fmt.Errorf("monitor.fingerprint_mode %q is not supported (use \"mtime\" or \"sha256\")", c.Monitor.FingerprintMode)
	}
	if len(c.Monitor.Extensions) == 0 {
		return errors.New("monitor.extensions must list at least one media extension")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (use \"console\" or \"json\")", c.Logging.Format)
	}
	return nil
}
