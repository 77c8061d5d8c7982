// Package watcher reacts to filesystem events under the watched root.
//
// Events are debounced per path: a file is admitted only after it has
// produced no events for the configured window and two stats taken across a
// short pause agree on size and mtime, so files still being copied in are
// not handed to the pipeline half-written. When the underlying subscription
// fails the watcher resubscribes with exponential backoff and asks the sink
// to reconcile via a fresh scan.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"

	"scribe/internal/logging"
	"scribe/internal/pipeline"
	"scribe/internal/scanner"
)

// Sink receives watch results. Candidate and Deferred follow the scanner
// contract; Removed reports a deleted or renamed-away path, and Resync asks
// for a full scan pass after the subscription had to be rebuilt.
type Sink interface {
	scanner.Sink
	Removed(ctx context.Context, path string)
	Resync(ctx context.Context)
}

// Watcher subscribes to a directory tree and feeds debounced candidates to
// its sink.
type Watcher struct {
	root      string
	recognize func(string) bool
	window    time.Duration
	sink      Sink
	logger    *slog.Logger

	mu       sync.Mutex
	debounce map[string]func(func())
}

// Options configures a Watcher.
type Options struct {
	Root string
	// Recognize filters paths by extension; nil admits everything.
	Recognize func(string) bool
	// Window is the per-path quiet period before admission.
	Window time.Duration
	Sink   Sink
	Logger *slog.Logger
}

const (
	defaultWindow  = 750 * time.Millisecond
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

// New constructs a watcher; Run starts it.
func New(opts Options) *Watcher {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	window := opts.Window
	if window <= 0 {
		window = defaultWindow
	}
	recognize := opts.Recognize
	if recognize == nil {
		recognize = func(string) bool { return true }
	}
	return &Watcher{
		root:      opts.Root,
		recognize: recognize,
		window:    window,
		sink:      opts.Sink,
		logger:    logger.With(logging.String(logging.FieldComponent, "watcher")),
		debounce:  make(map[string]func(func())),
	}
}

// Run watches until ctx is canceled. Subscription failures are retried with
// exponential backoff; Run only returns the context's error.
func (w *Watcher) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		err := w.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger.Warn("watch session ended, resubscribing",
			logging.Duration("backoff", backoff), logging.Error(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// session runs one subscription until it fails or ctx ends.
func (w *Watcher) session(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return pipeline.Wrap(pipeline.ErrWatch, "watch", "subscribe", "", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.root); err != nil {
		return pipeline.Wrap(pipeline.ErrWatch, "watch", "watch tree", w.root, err)
	}
	// Files that appeared while the subscription was down are picked up by
	// a reconciling scan.
	w.sink.Resync(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return pipeline.Wrap(pipeline.ErrWatch, "watch", "receive events", "event channel closed", nil)
			}
			w.handleEvent(ctx, fsw, event)
		case watchErr, ok := <-fsw.Errors:
			if !ok {
				return pipeline.Wrap(pipeline.ErrWatch, "watch", "receive events", "error channel closed", nil)
			}
			w.logger.Warn("watch error", logging.Error(watchErr))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	path := event.Name

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		if w.recognize(path) {
			w.cancelPending(path)
			w.sink.Removed(ctx, path)
		}
		return
	case event.Op.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := w.addTree(fsw, path); err != nil {
				w.logger.Warn("failed to watch new directory",
					logging.String(logging.FieldPath, path), logging.Error(err))
				return
			}
			// Files moved in with the directory never produce their
			// own events.
			w.scheduleExisting(ctx, path)
			return
		}
		w.schedule(ctx, path)
	case event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Chmod):
		w.schedule(ctx, path)
	}
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			w.logger.Warn("skipping unwatchable path",
				logging.String(logging.FieldPath, path), logging.Error(walkErr))
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if err := fsw.Add(path); err != nil {
			if path == root {
				return err
			}
			w.logger.Warn("failed to watch directory",
				logging.String(logging.FieldPath, path), logging.Error(err))
			return fs.SkipDir
		}
		return nil
	})
}

func (w *Watcher) scheduleExisting(ctx context.Context, dir string) {
	_ = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil || entry.IsDir() {
			return nil
		}
		w.schedule(ctx, path)
		return nil
	})
}

// schedule queues an admission check that fires once the path has been
// quiet for the configured window.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if !w.recognize(path) {
		return
	}
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}

	w.mu.Lock()
	bounce, ok := w.debounce[path]
	if !ok {
		bounce = debounce.New(w.window)
		w.debounce[path] = bounce
	}
	w.mu.Unlock()

	bounce(func() {
		w.admit(ctx, path)
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	delete(w.debounce, path)
	w.mu.Unlock()
}

// admit stats the path twice across a short pause and hands it to the sink
// only when size and mtime agree. A file still changing is rescheduled.
func (w *Watcher) admit(ctx context.Context, path string) {
	w.cancelPending(path)
	if ctx.Err() != nil {
		return
	}

	before, err := os.Stat(path)
	if err != nil {
		return
	}
	pause := w.window / 4
	if pause < 10*time.Millisecond {
		pause = 10 * time.Millisecond
	}
	if pause > 250*time.Millisecond {
		pause = 250 * time.Millisecond
	}
	select {
	case <-time.After(pause):
	case <-ctx.Done():
		return
	}
	after, err := os.Stat(path)
	if err != nil {
		return
	}

	if before.Size() != after.Size() || !before.ModTime().Equal(after.ModTime()) {
		w.schedule(ctx, path)
		return
	}
	if after.Size() == 0 {
		w.sink.Deferred(ctx, path, "empty file")
		return
	}
	w.sink.Candidate(ctx, path)
}
