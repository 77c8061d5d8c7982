package monitor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scribe/internal/catalog"
	"scribe/internal/config"
	"scribe/internal/engine"
	"scribe/internal/logging"
	"scribe/internal/monitor"
	"scribe/internal/notifications"
	"scribe/internal/status"
	"scribe/internal/testsupport"
)

func fakeEngine() engine.Engine {
	return engine.NewFunc("fake", func(_ context.Context, path string) (string, error) {
		return "transcript of " + filepath.Base(path), nil
	})
}

func startMonitor(t *testing.T, cfg *config.Config, store *catalog.Store, hub *status.Hub) *monitor.Monitor {
	t.Helper()
	m, err := monitor.New(cfg, store, fakeEngine(), hub, notifications.NewService(cfg), logging.NewNop())
	if err != nil {
		t.Fatalf("monitor.New: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(m.Stop)
	return m
}

func waitForFile(t *testing.T, path string, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", path)
		case <-time.After(25 * time.Millisecond):
		}
	}
}

func TestMonitorTranscribesPreexistingFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hub := status.NewHub(128)

	media := filepath.Join(cfg.Paths.WatchDir, "archive", "clip.mp3")
	testsupport.WriteFile(t, media, 512)

	startMonitor(t, cfg, store, hub)
	waitForFile(t, media+".txt", 10*time.Second)

	record, err := store.Get(context.Background(), media)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record == nil || record.State != catalog.StateCommitted {
		t.Fatalf("expected committed record, got %#v", record)
	}
}

func TestMonitorPicksUpNewFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hub := status.NewHub(128)

	startMonitor(t, cfg, store, hub)

	// give the watcher a beat to subscribe
	time.Sleep(200 * time.Millisecond)
	media := filepath.Join(cfg.Paths.WatchDir, "new.mp3")
	testsupport.WriteFile(t, media, 512)

	waitForFile(t, media+".txt", 10*time.Second)
}

func TestMonitorSkipsFilesWithCurrentTranscript(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hub := status.NewHub(128)

	media := filepath.Join(cfg.Paths.WatchDir, "done.mp3")
	testsupport.WriteFile(t, media, 512)

	// Pre-commit a transcript stamped with the source's mtime.
	sidecar := media + ".txt"
	testsupport.WriteFile(t, sidecar, 32)
	info, err := os.Stat(media)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	testsupport.Touch(t, sidecar, info.ModTime())

	before, err := os.ReadFile(sidecar)
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}

	startMonitor(t, cfg, store, hub)

	deadline := time.After(5 * time.Second)
	for {
		record, err := store.Get(context.Background(), media)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if record != nil && record.State == catalog.StateCommitted {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for short-circuit commit")
		case <-time.After(25 * time.Millisecond):
		}
	}

	after, err := os.ReadFile(sidecar)
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("expected existing transcript to be left untouched")
	}
}

func TestMonitorResetsInterruptedJobsOnStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hub := status.NewHub(128)

	media := filepath.Join(cfg.Paths.WatchDir, "stuck.mp3")
	testsupport.WriteFile(t, media, 512)

	// Simulate a crash: record left in transcribing.
	ctx := context.Background()
	fper := catalog.NewFingerprinter(catalog.ModeMTime)
	fp, err := fper.Compute(media)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if _, err := store.Register(ctx, media, fp, catalog.SourceScan); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if ok, err := store.MarkQueued(ctx, media, fp); err != nil || !ok {
		t.Fatalf("MarkQueued failed: ok=%v err=%v", ok, err)
	}
	if ok, err := store.MarkTranscribing(ctx, media, fp); err != nil || !ok {
		t.Fatalf("MarkTranscribing failed: ok=%v err=%v", ok, err)
	}

	startMonitor(t, cfg, store, hub)
	waitForFile(t, media+".txt", 10*time.Second)
}

func TestMonitorSweepsAbandonedTempFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hub := status.NewHub(128)

	stale := filepath.Join(cfg.Paths.WatchDir, ".scribe-orphan42.tmp")
	testsupport.WriteFile(t, stale, 8)

	startMonitor(t, cfg, store, hub)

	deadline := time.After(5 * time.Second)
	for {
		if _, err := os.Stat(stale); os.IsNotExist(err) {
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for temp sweep")
		case <-time.After(25 * time.Millisecond):
		}
	}
}

func TestMonitorStartIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hub := status.NewHub(128)

	m := startMonitor(t, cfg, store, hub)
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
	if !m.Running() {
		t.Fatal("expected monitor to be running")
	}
	m.Stop()
	if m.Running() {
		t.Fatal("expected monitor stopped")
	}
}
