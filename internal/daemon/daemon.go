package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"scribe/internal/catalog"
	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/monitor"
	"scribe/internal/notifications"
	"scribe/internal/status"
)

// Daemon owns the long-running process state: the exclusive lock, the catalog
// handle, and the pipeline monitor. All IPC operations route through it.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *catalog.Store
	monitor  *monitor.Monitor
	hub      *status.Hub
	notifier notifications.Service

	logPath  string
	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// Status is a point-in-time snapshot of the daemon and its pipeline.
type Status struct {
	Running     bool
	PID         int
	WatchDir    string
	CatalogPath string
	LockPath    string
	SocketPath  string
	LogPath     string
	Workers     int
	QueueDepth  int
	Catalog     catalog.Stats
	Events      status.Counters
}

// New builds a daemon around an opened catalog store and monitor. The lock
// file lives alongside the logs so `scribe status` can report its location.
func New(cfg *config.Config, store *catalog.Store, mon *monitor.Monitor, hub *status.Hub, notifier notifications.Service, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "scribed.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		monitor:  mon,
		hub:      hub,
		notifier: notifier,
		logPath:  filepath.Join(cfg.Paths.LogDir, "scribe.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
}

// Start acquires the process lock and launches the monitor. A second Start on
// a running daemon is an error, as is contending with another process.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("daemon already running")
	}

	locked, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", d.lockPath, err)
	}
	if !locked {
		return fmt.Errorf("another scribe instance holds %s", d.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.monitor.Start(runCtx); err != nil {
		cancel()
		if unlockErr := d.lock.Unlock(); unlockErr != nil {
			d.logger.Warn("failed to release lock after start failure", logging.Error(unlockErr))
		}
		return fmt.Errorf("start monitor: %w", err)
	}
	d.cancel = cancel
	d.running = true
	d.logger.Info("daemon started",
		slog.Int("pid", os.Getpid()),
		slog.String(logging.FieldPath, d.cfg.Paths.WatchDir))
	return nil
}

// Stop halts the monitor and releases the lock. Safe to call on a stopped
// daemon.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.monitor.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release lock", logging.Error(err))
	}
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and releases the catalog handle.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the monitor is active.
func (d *Daemon) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Status assembles a snapshot for IPC consumers.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	summary, err := d.store.Summary(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("catalog summary: %w", err)
	}
	return Status{
		Running:     d.Running(),
		PID:         os.Getpid(),
		WatchDir:    d.cfg.Paths.WatchDir,
		CatalogPath: d.cfg.CatalogPath(),
		LockPath:    d.lockPath,
		SocketPath:  d.cfg.SocketPath(),
		LogPath:     d.logPath,
		Workers:     d.monitor.Workers(),
		QueueDepth:  d.monitor.QueueDepth(),
		Catalog:     summary,
		Events:      d.hub.Snapshot(),
	}, nil
}

// CatalogList returns catalog records, optionally filtered by state names.
// Unknown state names are rejected so callers get a clear error instead of an
// empty result.
func (d *Daemon) CatalogList(ctx context.Context, states []string) ([]*catalog.Record, error) {
	parsed := make([]catalog.State, 0, len(states))
	for _, name := range states {
		state, ok := catalog.ParseState(name)
		if !ok {
			return nil, fmt.Errorf("unknown state %q", name)
		}
		parsed = append(parsed, state)
	}
	return d.store.List(ctx, parsed...)
}

// Events long-polls the status hub on behalf of IPC clients.
func (d *Daemon) Events(ctx context.Context, since uint64, limit int, wait bool) ([]status.Event, uint64, error) {
	return d.hub.Fetch(ctx, since, limit, wait)
}

// RequestScan asks the monitor for an immediate rescan of the watch
// directory.
func (d *Daemon) RequestScan() {
	d.monitor.RequestScan()
}

// TestNotification sends a test message through the configured notifier.
func (d *Daemon) TestNotification(ctx context.Context) error {
	if d.cfg.Notifications.NtfyTopic == "" {
		return fmt.Errorf("ntfy topic not configured")
	}
	return d.notifier.TestNotification(ctx)
}

// LogPath reports where the daemon writes its log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}
