// Package pipeline defines shared utilities consumed by the discovery,
// queueing, and transcription phases.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that tag failures by
//     phase so callers can classify them for logging and notifications.
//   - Context helpers that stamp job IDs and phase names for logging.
//
// Use these helpers when wiring new phase logic so operational behaviour
// stays uniform across the pipeline.
package pipeline
