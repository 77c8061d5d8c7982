// Package engine abstracts transcription backends.
//
// The production backend shells out to WhisperX via uvx; tests substitute a
// Func. Engines return plain transcript text and never touch the sidecar:
// committing output is the worker's job.
package engine

import "context"

// Engine produces a transcript for a media file.
type Engine interface {
	// Name identifies the backend for logging.
	Name() string
	// Transcribe returns the transcript text for the media file at path.
	Transcribe(ctx context.Context, path string) (string, error)
}

// Func adapts a function to the Engine interface.
type Func struct {
	name string
	fn   func(ctx context.Context, path string) (string, error)
}

// NewFunc wraps fn as an Engine with the given name.
func NewFunc(name string, fn func(ctx context.Context, path string) (string, error)) *Func {
	if name == "" {
		name = "func"
	}
	return &Func{name: name, fn: fn}
}

func (f *Func) Name() string {
	return f.name
}

func (f *Func) Transcribe(ctx context.Context, path string) (string, error) {
	return f.fn(ctx, path)
}
