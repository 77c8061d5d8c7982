package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"scribe/internal/catalog"
	"scribe/internal/config"
	"scribe/internal/daemon"
	"scribe/internal/engine"
	"scribe/internal/ipc"
	"scribe/internal/logging"
	"scribe/internal/monitor"
	"scribe/internal/notifications"
	"scribe/internal/status"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := catalog.Open(cfg.CatalogPath())
	if err != nil {
		log.Fatalf("open catalog: %v", err)
	}

	hub := status.NewHub(cfg.Status.BufferSize)
	notifier := notifications.NewService(cfg)
	eng := engine.NewWhisperX(cfg.Engine)

	mon, err := monitor.New(cfg, store, eng, hub, notifier, logger)
	if err != nil {
		log.Fatalf("create monitor: %v", err)
	}

	d := daemon.New(cfg, store, mon, hub, notifier, logger)
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		return
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Warn("daemon start", logging.Error(err))
	}

	<-ctx.Done()
	logger.Info("scribed shutting down")
}
