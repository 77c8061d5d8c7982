// Package worker drains the job queue and commits transcripts.
//
// Each worker re-fingerprints its job before and after transcription so a
// file that changed while waiting (or while being transcribed) is marked
// failed instead of committed against stale content; the next discovery of
// the new content re-queues it. A panicking engine takes down only the job,
// not the pool: the job is marked failed and the worker moves on.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"scribe/internal/catalog"
	"scribe/internal/engine"
	"scribe/internal/logging"
	"scribe/internal/notifications"
	"scribe/internal/pipeline"
	"scribe/internal/queue"
	"scribe/internal/status"
	"scribe/internal/transcript"
)

// Options configures a Pool.
type Options struct {
	Workers       int
	Queue         *queue.Queue
	Store         *catalog.Store
	Fingerprinter *catalog.Fingerprinter
	Writer        *transcript.Writer
	Artifacts     *transcript.Artifacts
	Engine        engine.Engine
	Hub           *status.Hub
	Notifier      notifications.Service
	// JobTimeout bounds a single transcription. Zero means no limit.
	JobTimeout time.Duration
	Logger     *slog.Logger
}

// Pool runs a fixed number of transcription workers over the shared queue.
type Pool struct {
	opts   Options
	logger *slog.Logger
}

// NewPool constructs a pool; Run starts it.
func NewPool(opts Options) *Pool {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Pool{
		opts:   opts,
		logger: logger.With(logging.String(logging.FieldComponent, "worker")),
	}
}

// Run blocks until ctx is canceled or the queue closes, then waits for
// in-flight jobs to finish.
func (p *Pool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i + 1)
	}
	wg.Wait()
	return ctx.Err()
}

func (p *Pool) loop(ctx context.Context, id int) {
	logger := p.logger.With(logging.Int("worker", id))
	for {
		job, err := p.opts.Queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("dequeue failed", logging.Error(err))
			return
		}
		// The run context only governs dequeueing. A job that already
		// started runs to completion on shutdown, so a half-finished
		// engine invocation is never killed mid-transcription.
		p.runJob(context.WithoutCancel(ctx), logger, job)
		p.opts.Queue.Done(job)
	}
}

// runJob contains the panic boundary: a crash inside process marks the job
// failed and the loop continues.
func (p *Pool) runJob(ctx context.Context, logger *slog.Logger, job queue.Job) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logger.Error("worker panic contained",
				logging.String(logging.FieldJobID, job.ID),
				logging.String(logging.FieldPath, job.Path),
				logging.String("stack", string(debug.Stack())),
				logging.Error(err))
			p.fail(ctx, job, err)
		}
	}()
	p.process(ctx, logger, job)
}

func (p *Pool) process(ctx context.Context, logger *slog.Logger, job queue.Job) {
	logger = logger.With(
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldPath, job.Path),
	)
	ctx = pipeline.WithJobID(ctx, job.ID)

	// Pre-flight: the file may have changed or vanished while queued.
	current, err := p.opts.Fingerprinter.Compute(job.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("source vanished while queued, dropping job")
			if _, clearErr := p.opts.Store.ClearNonTerminal(ctx, job.Path); clearErr != nil {
				logger.Error("failed to clear vanished source", logging.Error(clearErr))
			}
			return
		}
		p.fail(ctx, job, pipeline.Wrap(pipeline.ErrEngine, "transcribe", "fingerprint source", "", err))
		return
	}
	if !current.Equal(job.Fingerprint) {
		// A fresh discovery event for the new content re-queues it; the
		// failure only records what happened to this job's fingerprint.
		p.fail(ctx, job, pipeline.Wrap(pipeline.ErrStale, "transcribe", "preflight check",
			"file changed since discovery", nil))
		return
	}

	ok, err := p.opts.Store.MarkTranscribing(ctx, job.Path, job.Fingerprint)
	if err != nil {
		p.fail(ctx, job, err)
		return
	}
	if !ok {
		logger.Info("catalog no longer matches job, dropping")
		return
	}
	p.opts.Hub.Publish(status.Event{
		Type:   status.EventTranscribing,
		Path:   job.Path,
		JobID:  job.ID,
		Source: string(job.Source),
	})
	logger.Info("transcription started",
		logging.String("engine", p.opts.Engine.Name()))

	jobCtx := pipeline.WithPhase(ctx, "transcribe")
	cancel := func() {}
	if p.opts.JobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(jobCtx, p.opts.JobTimeout)
	}
	started := time.Now()
	text, err := p.opts.Engine.Transcribe(jobCtx, job.Path)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = pipeline.Wrap(pipeline.ErrTimeout, "transcribe", p.opts.Engine.Name(),
				fmt.Sprintf("exceeded %s", p.opts.JobTimeout), err)
		}
		p.fail(ctx, job, err)
		return
	}

	// Post-flight: never commit a transcript for content that changed
	// under the engine.
	after, err := p.opts.Fingerprinter.Compute(job.Path)
	if err != nil || !after.Equal(job.Fingerprint) {
		p.fail(ctx, job, pipeline.Wrap(pipeline.ErrStale, "transcribe", "postflight check",
			"file changed during transcription", err))
		return
	}

	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	committedPath, err := p.opts.Writer.Commit(job.Path, text, job.Fingerprint)
	if err != nil {
		p.fail(ctx, job, err)
		return
	}

	if ok, err := p.opts.Store.MarkCommitted(ctx, job.Path, job.Fingerprint); err != nil {
		logger.Error("failed to mark committed", logging.Error(err))
	} else if !ok {
		logger.Warn("catalog changed during commit, transcript left in place")
	}
	p.opts.Hub.Publish(status.Event{
		Type:   status.EventCommitted,
		Path:   job.Path,
		JobID:  job.ID,
		Source: string(job.Source),
		Detail: committedPath,
	})
	logger.Info("transcript committed",
		logging.String("transcript", committedPath),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)))

	if p.opts.Notifier != nil {
		if err := p.opts.Notifier.NotifyTranscriptCommitted(ctx, job.Path, committedPath); err != nil {
			logger.Warn("commit notification failed", logging.Error(err))
		}
	}
}

func (p *Pool) fail(ctx context.Context, job queue.Job, cause error) {
	logger := p.logger.With(
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldPath, job.Path),
	)
	logger.Error("transcription failed", logging.Error(cause))

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	if ok, err := p.opts.Store.MarkFailed(ctx, job.Path, job.Fingerprint, reason); err != nil {
		logger.Error("failed to mark failed", logging.Error(err))
	} else if !ok {
		logger.Info("catalog no longer matches failed job")
	}
	p.opts.Hub.Publish(status.Event{
		Type:   status.EventFailed,
		Path:   job.Path,
		JobID:  job.ID,
		Source: string(job.Source),
		Detail: reason,
	})
	if p.opts.Notifier != nil {
		if err := p.opts.Notifier.NotifyTranscriptionFailed(ctx, job.Path, cause); err != nil {
			logger.Warn("failure notification failed", logging.Error(err))
		}
	}
}
