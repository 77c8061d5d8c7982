// Package monitor assembles the discovery, queue, and worker components
// into the running pipeline and owns their lifecycle.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"scribe/internal/catalog"
	"scribe/internal/config"
	"scribe/internal/engine"
	"scribe/internal/ingest"
	"scribe/internal/logging"
	"scribe/internal/notifications"
	"scribe/internal/queue"
	"scribe/internal/scanner"
	"scribe/internal/status"
	"scribe/internal/transcript"
	"scribe/internal/watcher"
	"scribe/internal/worker"
)

// Monitor owns the pipeline components and runs them as one unit.
type Monitor struct {
	cfg      *config.Config
	store    *catalog.Store
	logger   *slog.Logger
	hub      *status.Hub
	notifier notifications.Service

	queue   *queue.Queue
	intake  *ingest.Intake
	scanner *scanner.Scanner
	watcher *watcher.Watcher
	pool    *worker.Pool
	workers int

	scanRequests chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New wires a monitor from configuration. The engine is injected so tests
// and alternative backends can substitute one.
func New(cfg *config.Config, store *catalog.Store, eng engine.Engine, hub *status.Hub, notifier notifications.Service, logger *slog.Logger) (*Monitor, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	mode, ok := catalog.ParseMode(cfg.Monitor.FingerprintMode)
	if !ok {
		return nil, errors.New("unknown fingerprint mode: " + cfg.Monitor.FingerprintMode)
	}
	fper := catalog.NewFingerprinter(mode)
	artifacts := transcript.NewArtifacts(cfg.Monitor.TranscriptExtension)
	writer := transcript.NewWriter(artifacts)
	q := queue.New(cfg.Monitor.QueueCapacity)

	workers := cfg.Monitor.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	m := &Monitor{
		cfg:          cfg,
		store:        store,
		logger:       logger.With(logging.String(logging.FieldComponent, "monitor")),
		hub:          hub,
		notifier:     notifier,
		queue:        q,
		workers:      workers,
		scanRequests: make(chan struct{}, 1),
	}

	m.intake = ingest.New(ingest.Options{
		Fingerprinter: fper,
		Artifacts:     artifacts,
		Store:         store,
		Queue:         q,
		Hub:           hub,
		Logger:        logger,
		Resync:        func(context.Context) { m.RequestScan() },
	})
	m.scanner = scanner.New(cfg.Paths.WatchDir, cfg.Monitor.Extensions, m.intake.ScanSink(), logger)
	m.watcher = watcher.New(watcher.Options{
		Root:      cfg.Paths.WatchDir,
		Recognize: m.scanner.Recognizes,
		Window:    time.Duration(cfg.Monitor.DebounceMillis) * time.Millisecond,
		Sink:      m.intake.WatchSink(),
		Logger:    logger,
	})
	m.pool = worker.NewPool(worker.Options{
		Workers:       workers,
		Queue:         q,
		Store:         store,
		Fingerprinter: fper,
		Writer:        writer,
		Artifacts:     artifacts,
		Engine:        eng,
		Hub:           hub,
		Notifier:      notifier,
		JobTimeout:    time.Duration(cfg.Monitor.JobTimeoutSeconds) * time.Second,
		Logger:        logger,
	})
	return m, nil
}

// Start begins watching, scanning, and transcribing.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("monitor already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	// Crash recovery before any new work is admitted.
	if removed, err := transcript.SweepTemp(m.cfg.Paths.WatchDir); err != nil {
		m.logger.Warn("temp sweep incomplete", logging.Error(err))
	} else if removed > 0 {
		m.logger.Info("removed abandoned temp files", logging.Int("count", removed))
	}
	if reset, err := m.store.ResetInFlight(runCtx); err != nil {
		cancel()
		m.mu.Lock()
		m.running = false
		m.cancel = nil
		m.mu.Unlock()
		return err
	} else if reset > 0 {
		m.logger.Info("reset interrupted jobs for rediscovery", logging.Int64("count", reset))
	}

	m.wg.Add(3)
	go func() {
		defer m.wg.Done()
		m.scanLoop(runCtx)
	}()
	go func() {
		defer m.wg.Done()
		_ = m.watcher.Run(runCtx)
	}()
	go func() {
		defer m.wg.Done()
		_ = m.pool.Run(runCtx)
	}()

	m.hub.Publish(status.Event{
		Type:   status.EventLifecycle,
		Detail: "monitor started",
	})
	m.logger.Info("monitor started",
		logging.String(logging.FieldPath, m.cfg.Paths.WatchDir),
		logging.Int("workers", m.workers))
	if err := m.notifier.NotifyMonitorStarted(runCtx, m.cfg.Paths.WatchDir, m.workers); err != nil {
		m.logger.Warn("start notification failed", logging.Error(err))
	}
	return nil
}

// Stop terminates the pipeline and waits for in-flight jobs to settle.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.queue.Close()
	m.wg.Wait()

	counters := m.hub.Snapshot()
	m.hub.Publish(status.Event{
		Type:   status.EventLifecycle,
		Detail: "monitor stopped",
	})
	m.logger.Info("monitor stopped")
	if err := m.notifier.NotifyMonitorStopped(context.Background(), counters.Committed, counters.Failed); err != nil {
		m.logger.Warn("stop notification failed", logging.Error(err))
	}
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// RequestScan schedules an extra scan pass. Safe from any goroutine;
// coalesces with an already-pending request.
func (m *Monitor) RequestScan() {
	select {
	case m.scanRequests <- struct{}{}:
	default:
	}
}

// Workers reports the resolved worker pool size.
func (m *Monitor) Workers() int {
	return m.workers
}

// QueueDepth reports the number of pending jobs.
func (m *Monitor) QueueDepth() int {
	return m.queue.Len()
}

func (m *Monitor) scanLoop(ctx context.Context) {
	m.scanOnce(ctx)

	var rescan <-chan time.Time
	if m.cfg.Monitor.RescanIntervalSeconds > 0 {
		ticker := time.NewTicker(time.Duration(m.cfg.Monitor.RescanIntervalSeconds) * time.Second)
		defer ticker.Stop()
		rescan = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.scanRequests:
			m.scanOnce(ctx)
		case <-rescan:
			m.scanOnce(ctx)
		}
	}
}

func (m *Monitor) scanOnce(ctx context.Context) {
	result, err := m.scanner.Scan(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			m.logger.Warn("scan pass aborted", logging.Error(err))
		}
		return
	}
	m.logger.Info("scan pass complete",
		logging.Int("candidates", result.Candidates),
		logging.Int("deferred", result.Deferred),
		logging.Int("skipped", result.Skipped))
}
