package logging

import (
	"context"
	"log/slog"
	"time"
)

// Standardized structured logging keys used across the pipeline.
const (
	// FieldComponent identifies the emitting subsystem (scanner, watcher, worker...).
	FieldComponent = "component"
	// FieldPath is the canonical media file path an event refers to.
	FieldPath = "path"
	// FieldSource records which discovery source produced a candidate (scan or watch).
	FieldSource = "source"
	// FieldFingerprint is the encoded file fingerprint at the time of the event.
	FieldFingerprint = "fingerprint"
	// FieldPhase is the pipeline phase an event belongs to.
	FieldPhase = "phase"
	// FieldJobID is the correlation identifier assigned at enqueue time.
	FieldJobID = "job_id"
	// FieldEventType tags log lines for filtering in structured output.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next diagnostic step for a failure.
	FieldErrorHint = "error_hint"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Args converts attrs into the variadic any form slog methods accept.
func Args(attrs ...Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger creates a logger with a standardized component attribute.
// If logger is nil, a no-op logger is used as the base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
