package ingest_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"scribe/internal/catalog"
	"scribe/internal/config"
	"scribe/internal/ingest"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/status"
	"scribe/internal/testsupport"
	"scribe/internal/transcript"
)

type fixture struct {
	cfg       *config.Config
	store     *catalog.Store
	queue     *queue.Queue
	hub       *status.Hub
	intake    *ingest.Intake
	fper      *catalog.Fingerprinter
	artifacts *transcript.Artifacts
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	q := queue.New(16)
	t.Cleanup(q.Close)
	hub := status.NewHub(64)
	fper := catalog.NewFingerprinter(catalog.ModeMTime)
	artifacts := transcript.NewArtifacts(".txt")

	intake := ingest.New(ingest.Options{
		Fingerprinter: fper,
		Artifacts:     artifacts,
		Store:         store,
		Queue:         q,
		Hub:           hub,
		Logger:        logging.NewNop(),
	})
	return &fixture{cfg: cfg, store: store, queue: q, hub: hub, intake: intake, fper: fper, artifacts: artifacts}
}

func (f *fixture) mediaFile(t *testing.T, name string, size int64) string {
	t.Helper()
	path := filepath.Join(f.cfg.Paths.WatchDir, name)
	testsupport.WriteFile(t, path, size)
	testsupport.Touch(t, path, time.Unix(1700000000, 0))
	return path
}

func TestCandidateIsRegisteredAndQueued(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.mediaFile(t, "clip.mp3", 256)

	f.intake.ScanSink().Candidate(ctx, path)

	record, err := f.store.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record == nil || record.State != catalog.StateQueued {
		t.Fatalf("expected queued record, got %#v", record)
	}
	if record.Source != catalog.SourceScan {
		t.Fatalf("expected scan attribution, got %s", record.Source)
	}

	job, err := f.queue.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if job.Path != path {
		t.Fatalf("unexpected job path: %s", job.Path)
	}

	counters := f.hub.Snapshot()
	if counters.Discovered != 1 || counters.Queued != 1 {
		t.Fatalf("unexpected counters: %#v", counters)
	}
}

func TestCandidateShortCircuitsOnCurrentTranscript(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.mediaFile(t, "clip.mp3", 256)

	fp, err := f.fper.Compute(path)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	writer := transcript.NewWriter(f.artifacts)
	if _, err := writer.Commit(path, "existing transcript\n", fp); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	f.intake.ScanSink().Candidate(ctx, path)

	record, err := f.store.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record == nil || record.State != catalog.StateCommitted {
		t.Fatalf("expected committed record, got %#v", record)
	}
	if f.queue.Len() != 0 {
		t.Fatal("expected no job for current transcript")
	}
	if counters := f.hub.Snapshot(); counters.Committed != 1 {
		t.Fatalf("unexpected counters: %#v", counters)
	}
}

func TestDuplicateCandidateIsSuppressed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.mediaFile(t, "clip.mp3", 256)

	f.intake.ScanSink().Candidate(ctx, path)
	f.intake.WatchSink().Candidate(ctx, path)

	if f.queue.Len() != 1 {
		t.Fatalf("expected a single job, got %d", f.queue.Len())
	}
	if counters := f.hub.Snapshot(); counters.Queued != 1 {
		t.Fatalf("unexpected counters: %#v", counters)
	}
}

func TestChangedFileIsReadmitted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.mediaFile(t, "clip.mp3", 256)

	f.intake.ScanSink().Candidate(ctx, path)
	job, err := f.queue.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if ok, err := f.store.MarkTranscribing(ctx, path, job.Fingerprint); err != nil || !ok {
		t.Fatalf("MarkTranscribing failed: ok=%v err=%v", ok, err)
	}
	if ok, err := f.store.MarkCommitted(ctx, path, job.Fingerprint); err != nil || !ok {
		t.Fatalf("MarkCommitted failed: ok=%v err=%v", ok, err)
	}
	f.queue.Done(job)

	// Content replaced: new mtime, new fingerprint.
	testsupport.Touch(t, path, time.Unix(1700009000, 0))
	f.intake.WatchSink().Candidate(ctx, path)

	record, err := f.store.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record.State != catalog.StateQueued {
		t.Fatalf("expected requeue after change, got %s", record.State)
	}
	if record.Source != catalog.SourceWatch {
		t.Fatalf("expected watch attribution, got %s", record.Source)
	}
}

func TestRemovedClearsPendingRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.mediaFile(t, "clip.mp3", 256)

	f.intake.ScanSink().Candidate(ctx, path)
	f.intake.WatchSink().Removed(ctx, path)

	record, err := f.store.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record != nil {
		t.Fatalf("expected record cleared, got %#v", record)
	}
}

func TestDeferredPublishesEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.intake.ScanSink().Deferred(ctx, filepath.Join(f.cfg.Paths.WatchDir, "empty.mp3"), "empty file")

	if counters := f.hub.Snapshot(); counters.Deferred != 1 {
		t.Fatalf("unexpected counters: %#v", counters)
	}
}

func TestResyncInvokesCallback(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	q := queue.New(4)
	t.Cleanup(q.Close)

	calls := 0
	intake := ingest.New(ingest.Options{
		Fingerprinter: catalog.NewFingerprinter(catalog.ModeMTime),
		Artifacts:     transcript.NewArtifacts(".txt"),
		Store:         store,
		Queue:         q,
		Hub:           status.NewHub(8),
		Logger:        logging.NewNop(),
		Resync: func(context.Context) {
			calls++
		},
	})

	intake.WatchSink().Resync(context.Background())
	if calls != 1 {
		t.Fatalf("expected resync callback, got %d calls", calls)
	}
}
