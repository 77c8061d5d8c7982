package scanner_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"testing"

	"scribe/internal/logging"
	"scribe/internal/pipeline"
	"scribe/internal/scanner"
	"scribe/internal/testsupport"
)

type recordingSink struct {
	mu         sync.Mutex
	candidates []string
	deferred   map[string]string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{deferred: make(map[string]string)}
}

func (r *recordingSink) Candidate(_ context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates = append(r.candidates, path)
}

func (r *recordingSink) Deferred(_ context.Context, path, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deferred[path] = reason
}

func TestScanDiscoversRecognizedFiles(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "a.mp3"), 128)
	testsupport.WriteFile(t, filepath.Join(root, "nested", "b.MP4"), 256)
	testsupport.WriteFile(t, filepath.Join(root, "nested", "notes.pdf"), 64)
	testsupport.WriteFile(t, filepath.Join(root, "a.mp3.txt"), 32)

	sink := newRecordingSink()
	s := scanner.New(root, []string{".mp3", ".mp4"}, sink, logging.NewNop())

	result, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.Candidates != 2 {
		t.Fatalf("expected 2 candidates, got %d", result.Candidates)
	}

	sort.Strings(sink.candidates)
	want := []string{
		filepath.Join(root, "a.mp3"),
		filepath.Join(root, "nested", "b.MP4"),
	}
	sort.Strings(want)
	if len(sink.candidates) != len(want) {
		t.Fatalf("unexpected candidates: %v", sink.candidates)
	}
	for i := range want {
		if sink.candidates[i] != want[i] {
			t.Fatalf("expected %s, got %s", want[i], sink.candidates[i])
		}
	}
}

func TestScanDefersEmptyFiles(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "empty.mp3"), 0)
	testsupport.WriteFile(t, filepath.Join(root, "full.mp3"), 64)

	sink := newRecordingSink()
	s := scanner.New(root, []string{".mp3"}, sink, logging.NewNop())

	result, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.Candidates != 1 || result.Deferred != 1 {
		t.Fatalf("unexpected result: %#v", result)
	}
	if reason := sink.deferred[filepath.Join(root, "empty.mp3")]; reason == "" {
		t.Fatal("expected empty file to be deferred with a reason")
	}
}

func TestScanSkipsHiddenFiles(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, ".partial.mp3"), 64)
	testsupport.WriteFile(t, filepath.Join(root, "visible.mp3"), 64)

	sink := newRecordingSink()
	s := scanner.New(root, []string{".mp3"}, sink, logging.NewNop())

	result, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.Candidates != 1 {
		t.Fatalf("expected hidden file to be skipped, got %d candidates", result.Candidates)
	}
}

func TestScanFollowsSymlinkedDirsOnce(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks unreliable on windows")
	}
	root := t.TempDir()
	outside := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(outside, "linked.mp3"), 64)

	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	// cycle back into the root
	if err := os.Symlink(root, filepath.Join(outside, "cycle")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	sink := newRecordingSink()
	s := scanner.New(root, []string{".mp3"}, sink, logging.NewNop())

	result, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.Candidates != 1 {
		t.Fatalf("expected the linked file exactly once, got %d", result.Candidates)
	}
}

func TestScanSkipsUnreadableSubtrees(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission checks do not bind for root")
	}
	root := t.TempDir()
	locked := filepath.Join(root, "locked")
	testsupport.WriteFile(t, filepath.Join(locked, "secret.mp3"), 64)
	testsupport.WriteFile(t, filepath.Join(root, "open.mp3"), 64)

	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chmod(locked, 0o755)
	})

	sink := newRecordingSink()
	s := scanner.New(root, []string{".mp3"}, sink, logging.NewNop())

	result, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.Candidates != 1 {
		t.Fatalf("expected unreadable subtree to be skipped, got %d candidates", result.Candidates)
	}
	if result.Skipped == 0 {
		t.Fatal("expected skip to be counted")
	}
}

func TestScanFailsWhenRootUnreadable(t *testing.T) {
	sink := newRecordingSink()
	s := scanner.New(filepath.Join(t.TempDir(), "missing"), []string{".mp3"}, sink, logging.NewNop())

	_, err := s.Scan(context.Background())
	if !errors.Is(err, pipeline.ErrScan) {
		t.Fatalf("expected scan error for missing root, got %v", err)
	}
}

func TestScanStopsOnCanceledContext(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "a.mp3"), 64)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := newRecordingSink()
	s := scanner.New(root, []string{".mp3"}, sink, logging.NewNop())

	if _, err := s.Scan(ctx); err == nil {
		t.Fatal("expected context error")
	}
	if len(sink.candidates) != 0 {
		t.Fatalf("expected no candidates after cancellation, got %v", sink.candidates)
	}
}
