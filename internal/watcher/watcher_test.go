package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"scribe/internal/logging"
	"scribe/internal/testsupport"
	"scribe/internal/watcher"
)

type fakeSink struct {
	mu         sync.Mutex
	candidates []string
	deferred   []string
	removed    []string
	resyncs    int
	notify     chan struct{}
}

func newFakeSink() *fakeSink {
	return &fakeSink{notify: make(chan struct{}, 64)}
}

func (f *fakeSink) ping() {
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

func (f *fakeSink) Candidate(_ context.Context, path string) {
	f.mu.Lock()
	f.candidates = append(f.candidates, path)
	f.mu.Unlock()
	f.ping()
}

func (f *fakeSink) Deferred(_ context.Context, path, _ string) {
	f.mu.Lock()
	f.deferred = append(f.deferred, path)
	f.mu.Unlock()
	f.ping()
}

func (f *fakeSink) Removed(_ context.Context, path string) {
	f.mu.Lock()
	f.removed = append(f.removed, path)
	f.mu.Unlock()
	f.ping()
}

func (f *fakeSink) Resync(context.Context) {
	f.mu.Lock()
	f.resyncs++
	f.mu.Unlock()
	f.ping()
}

func (f *fakeSink) snapshot() (candidates, deferred, removed []string, resyncs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.candidates...),
		append([]string(nil), f.deferred...),
		append([]string(nil), f.removed...),
		f.resyncs
}

func isMedia(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".mp3")
}

func startWatcher(t *testing.T, root string, sink watcher.Sink) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	w := watcher.New(watcher.Options{
		Root:      root,
		Recognize: isMedia,
		Window:    40 * time.Millisecond,
		Sink:      sink,
		Logger:    logging.NewNop(),
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Log("watcher did not stop in time")
		}
	})
	return cancel
}

func waitFor(t *testing.T, sink *fakeSink, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		if cond() {
			return
		}
		select {
		case <-sink.notify:
		case <-time.After(25 * time.Millisecond):
		case <-deadline:
			t.Fatal("condition not reached before timeout")
		}
	}
}

func TestWatcherAdmitsStableFile(t *testing.T) {
	root := t.TempDir()
	sink := newFakeSink()
	startWatcher(t, root, sink)

	// wait for the initial resync so the subscription is live
	waitFor(t, sink, 3*time.Second, func() bool {
		_, _, _, resyncs := sink.snapshot()
		return resyncs >= 1
	})

	path := filepath.Join(root, "clip.mp3")
	testsupport.WriteFile(t, path, 256)

	waitFor(t, sink, 5*time.Second, func() bool {
		candidates, _, _, _ := sink.snapshot()
		return len(candidates) == 1 && candidates[0] == path
	})
}

func TestWatcherIgnoresUnrecognizedFiles(t *testing.T) {
	root := t.TempDir()
	sink := newFakeSink()
	startWatcher(t, root, sink)

	waitFor(t, sink, 3*time.Second, func() bool {
		_, _, _, resyncs := sink.snapshot()
		return resyncs >= 1
	})

	testsupport.WriteFile(t, filepath.Join(root, "notes.pdf"), 64)
	testsupport.WriteFile(t, filepath.Join(root, "clip.mp3"), 64)

	waitFor(t, sink, 5*time.Second, func() bool {
		candidates, _, _, _ := sink.snapshot()
		return len(candidates) == 1
	})
	candidates, _, _, _ := sink.snapshot()
	if filepath.Base(candidates[0]) != "clip.mp3" {
		t.Fatalf("unexpected candidate: %s", candidates[0])
	}
}

func TestWatcherDefersEmptyFiles(t *testing.T) {
	root := t.TempDir()
	sink := newFakeSink()
	startWatcher(t, root, sink)

	waitFor(t, sink, 3*time.Second, func() bool {
		_, _, _, resyncs := sink.snapshot()
		return resyncs >= 1
	})

	testsupport.WriteFile(t, filepath.Join(root, "empty.mp3"), 0)

	waitFor(t, sink, 5*time.Second, func() bool {
		_, deferred, _, _ := sink.snapshot()
		return len(deferred) == 1
	})
}

func TestWatcherReportsRemovals(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "clip.mp3")
	testsupport.WriteFile(t, path, 64)

	sink := newFakeSink()
	startWatcher(t, root, sink)

	waitFor(t, sink, 3*time.Second, func() bool {
		_, _, _, resyncs := sink.snapshot()
		return resyncs >= 1
	})

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	waitFor(t, sink, 5*time.Second, func() bool {
		_, _, removed, _ := sink.snapshot()
		return len(removed) == 1 && removed[0] == path
	})
}

func TestWatcherCoversNewDirectories(t *testing.T) {
	root := t.TempDir()
	sink := newFakeSink()
	startWatcher(t, root, sink)

	waitFor(t, sink, 3*time.Second, func() bool {
		_, _, _, resyncs := sink.snapshot()
		return resyncs >= 1
	})

	sub := filepath.Join(root, "incoming")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	testsupport.WriteFile(t, filepath.Join(sub, "clip.mp3"), 128)

	waitFor(t, sink, 5*time.Second, func() bool {
		candidates, _, _, _ := sink.snapshot()
		return len(candidates) == 1
	})
}

func TestWatcherCoalescesWriteBursts(t *testing.T) {
	root := t.TempDir()
	sink := newFakeSink()
	startWatcher(t, root, sink)

	waitFor(t, sink, 3*time.Second, func() bool {
		_, _, _, resyncs := sink.snapshot()
		return resyncs >= 1
	})

	path := filepath.Join(root, "clip.mp3")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := f.WriteString("chunk of audio bytes\n"); err != nil {
			t.Fatalf("write: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	waitFor(t, sink, 5*time.Second, func() bool {
		candidates, _, _, _ := sink.snapshot()
		return len(candidates) >= 1
	})
	// allow any straggling debounce fire to land
	time.Sleep(150 * time.Millisecond)
	candidates, _, _, _ := sink.snapshot()
	if len(candidates) != 1 {
		t.Fatalf("expected a single admission for the write burst, got %d", len(candidates))
	}
}
