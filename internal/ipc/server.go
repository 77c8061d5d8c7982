package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"scribe/internal/catalog"
	"scribe/internal/daemon"
	"scribe/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. A stale
// socket from a previous run is removed before listening.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Scribe", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually before the next start"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.log().Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.log().Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	snapshot, err := s.daemon.Status(s.ctx)
	if err != nil {
		return err
	}
	resp.Running = snapshot.Running
	resp.PID = snapshot.PID
	resp.WatchDir = snapshot.WatchDir
	resp.CatalogPath = snapshot.CatalogPath
	resp.LockPath = snapshot.LockPath
	resp.LogPath = snapshot.LogPath
	resp.Workers = snapshot.Workers
	resp.QueueDepth = snapshot.QueueDepth
	resp.Catalog = CatalogCounts{
		Total:        snapshot.Catalog.Total,
		Discovered:   snapshot.Catalog.Discovered,
		Queued:       snapshot.Catalog.Queued,
		Transcribing: snapshot.Catalog.Transcribing,
		Committed:    snapshot.Catalog.Committed,
		Failed:       snapshot.Catalog.Failed,
	}
	resp.Events = snapshot.Events
	return nil
}

func convertRecord(record *catalog.Record) CatalogRecord {
	return CatalogRecord{
		ID:           record.ID,
		Path:         record.Path,
		Fingerprint:  record.Fingerprint,
		Source:       string(record.Source),
		State:        string(record.State),
		ErrorMessage: record.ErrorMessage,
		DiscoveredAt: record.DiscoveredAt.Format(time.RFC3339),
		UpdatedAt:    record.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *service) CatalogList(req CatalogListRequest, resp *CatalogListResponse) error {
	records, err := s.daemon.CatalogList(s.ctx, req.States)
	if err != nil {
		return err
	}
	resp.Records = make([]CatalogRecord, 0, len(records))
	for _, record := range records {
		resp.Records = append(resp.Records, convertRecord(record))
	}
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	wait := req.WaitMillis > 0
	ctx := s.ctx
	if wait {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, time.Duration(req.WaitMillis)*time.Millisecond)
		defer cancel()
	}
	events, next, err := s.daemon.Events(ctx, req.Since, req.Limit, wait)
	resp.Events = events
	resp.Next = next
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *service) Rescan(_ RescanRequest, resp *RescanResponse) error {
	s.log().Debug("rescan requested")
	s.daemon.RequestScan()
	resp.Requested = true
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	if err := s.daemon.TestNotification(s.ctx); err != nil {
		resp.Sent = false
		resp.Message = err.Error()
		return nil
	}
	resp.Sent = true
	resp.Message = "test notification sent"
	return nil
}
