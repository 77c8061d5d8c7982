// Package ingest admits discovered media files into the pipeline.
//
// All discovery sources (scan passes and watch events) funnel through one
// Intake, which fingerprints the candidate, short-circuits files whose
// transcript is already current, consults the catalog for eligibility, and
// enqueues the job. Running every candidate through the same path keeps the
// dedup decision in one place regardless of how the file was found.
package ingest

import (
	"context"
	"errors"
	"log/slog"

	"scribe/internal/catalog"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/status"
	"scribe/internal/transcript"
)

// Options configures an Intake.
type Options struct {
	Fingerprinter *catalog.Fingerprinter
	Artifacts     *transcript.Artifacts
	Store         *catalog.Store
	Queue         *queue.Queue
	Hub           *status.Hub
	Logger        *slog.Logger
	// Resync is invoked when a discovery source asks for a reconciling
	// scan pass. May be nil.
	Resync func(context.Context)
}

// Intake is the admission path shared by all discovery sources.
type Intake struct {
	fper      *catalog.Fingerprinter
	artifacts *transcript.Artifacts
	store     *catalog.Store
	queue     *queue.Queue
	hub       *status.Hub
	logger    *slog.Logger
	resync    func(context.Context)
}

// New constructs an Intake from its collaborators.
func New(opts Options) *Intake {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Intake{
		fper:      opts.Fingerprinter,
		artifacts: opts.Artifacts,
		store:     opts.Store,
		queue:     opts.Queue,
		hub:       opts.Hub,
		logger:    logger.With(logging.String(logging.FieldComponent, "ingest")),
		resync:    opts.Resync,
	}
}

// ScanSink returns the sink scan passes should report into.
func (i *Intake) ScanSink() *SourceSink {
	return &SourceSink{intake: i, source: catalog.SourceScan}
}

// WatchSink returns the sink watch events should report into.
func (i *Intake) WatchSink() *SourceSink {
	return &SourceSink{intake: i, source: catalog.SourceWatch}
}

// SourceSink binds the intake to one discovery source for attribution.
type SourceSink struct {
	intake *Intake
	source catalog.Source
}

// Candidate admits one discovered file.
func (s *SourceSink) Candidate(ctx context.Context, path string) {
	s.intake.admit(ctx, path, s.source)
}

// Deferred records a file that cannot be admitted yet.
func (s *SourceSink) Deferred(ctx context.Context, path, reason string) {
	s.intake.deferAdmission(path, reason, s.source)
}

// Removed reconciles the catalog after a path disappeared.
func (s *SourceSink) Removed(ctx context.Context, path string) {
	s.intake.removed(ctx, path)
}

// Resync requests a reconciling scan pass.
func (s *SourceSink) Resync(ctx context.Context) {
	if s.intake.resync != nil {
		s.intake.resync(ctx)
	}
}

func (i *Intake) admit(ctx context.Context, path string, source catalog.Source) {
	logger := i.logger.With(
		logging.String(logging.FieldPath, path),
		logging.String(logging.FieldSource, string(source)),
	)

	fp, err := i.fper.Compute(path)
	if err != nil {
		logger.Warn("fingerprint failed, skipping candidate", logging.Error(err))
		return
	}

	current, err := i.artifacts.Matches(path, fp)
	if err != nil {
		logger.Warn("transcript check failed", logging.Error(err))
	}
	if current {
		if err := i.store.RecordCommitted(ctx, path, fp, source); err != nil {
			logger.Error("failed to record existing transcript", logging.Error(err))
			return
		}
		i.hub.Publish(status.Event{
			Type:   status.EventCommitted,
			Path:   path,
			Source: string(source),
			Detail: "transcript already current",
		})
		logger.Debug("transcript already current, skipping",
			logging.String(logging.FieldFingerprint, fp.String()))
		return
	}

	eligible, err := i.store.Register(ctx, path, fp, source)
	if err != nil {
		logger.Error("catalog registration failed", logging.Error(err))
		return
	}
	if !eligible {
		logger.Debug("duplicate candidate suppressed",
			logging.String(logging.FieldFingerprint, fp.String()))
		return
	}
	i.hub.Publish(status.Event{
		Type:   status.EventDiscovered,
		Path:   path,
		Source: string(source),
	})

	job, err := i.queue.Enqueue(ctx, path, fp, source)
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrDuplicateJob):
			logger.Debug("job already pending")
		case errors.Is(err, queue.ErrClosed), errors.Is(err, context.Canceled):
		default:
			logger.Error("enqueue failed", logging.Error(err))
		}
		return
	}

	if ok, err := i.store.MarkQueued(ctx, path, fp); err != nil {
		logger.Error("failed to mark queued", logging.Error(err))
	} else if !ok {
		// File changed between registration and enqueue. The worker's
		// pre-flight re-check drops the stale job.
		logger.Debug("fingerprint changed before queueing")
	}
	i.hub.Publish(status.Event{
		Type:   status.EventQueued,
		Path:   path,
		JobID:  job.ID,
		Source: string(source),
	})
	logger.Info("queued for transcription",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldFingerprint, fp.String()))
}

func (i *Intake) deferAdmission(path, reason string, source catalog.Source) {
	i.hub.Publish(status.Event{
		Type:   status.EventDeferred,
		Path:   path,
		Source: string(source),
		Detail: reason,
	})
	i.logger.Debug("candidate deferred",
		logging.String(logging.FieldPath, path),
		logging.String("reason", reason))
}

func (i *Intake) removed(ctx context.Context, path string) {
	cleared, err := i.store.ClearNonTerminal(ctx, path)
	if err != nil {
		i.logger.Error("failed to reconcile removed path",
			logging.String(logging.FieldPath, path), logging.Error(err))
		return
	}
	if cleared {
		i.logger.Info("removed path cleared from catalog",
			logging.String(logging.FieldPath, path))
	}
}
