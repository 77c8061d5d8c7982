// Package logging builds the slog loggers used across scribe.
//
// It provides console and JSON handlers, standardized attribute keys for
// paths, fingerprints, and pipeline phases, and small helpers for component
// loggers and no-op loggers in tests. Obtain loggers through this package so
// every subsystem emits the same field names and formats.
package logging
