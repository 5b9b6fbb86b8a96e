package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-gateway/backend/internal/adapters/httpapi"
	"chat-gateway/backend/internal/bootstrap/gatewayconfig"
	"chat-gateway/backend/internal/platform/privacylog"
	"chat-gateway/backend/internal/protocol"
	"chat-gateway/backend/internal/session"
	"chat-gateway/backend/internal/storage"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	dataDir := flag.String("data-dir", "", "Session storage directory (overrides config)")
	transport := flag.String("transport", "", "Protocol transport override: whatsmeow | mock")
	flag.Parse()
	if *showVersion {
		fmt.Printf("chat-gateway version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	cfg := gatewayconfig.LoadFromPath(*configPath)
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dataDir != "" {
		cfg.Session.StorageDir = *dataDir
	}
	if *transport != "" {
		cfg.Session.Transport = *transport
	}

	logger := slog.New(privacylog.WrapHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewSessionStore(cfg.Session.StorageDir, cfg.Session.SnapshotPassphrase)
	if err != nil {
		logger.Error("chat-gateway failed to open session storage", "error", err)
		os.Exit(1)
	}
	if last, ok, err := store.LastState(); err != nil {
		logger.Warn("could not read previous session state", "error", err)
	} else if ok {
		logger.Info("previous session state", "state", last.State, "disconnect_reason", last.Reason)
	}

	factory := protocol.NewFactory(cfg.Session.Transport, store.CredentialDBPath(), logger)

	var srv *httpapi.Server
	manager := session.NewManager(factory, store, logger, session.Config{
		Delays: session.Delays{
			Rebuild: cfg.Session.Recovery.RebuildDelay,
			Reinit:  cfg.Session.Recovery.ReinitDelay,
			Restart: cfg.Session.Recovery.RestartDelay,
		},
		OnTransition: func(snap session.Snapshot) {
			if err := store.RecordState(string(snap.State), string(snap.LastReason)); err != nil {
				logger.Warn("could not persist session state", "error", err)
			}
			if srv != nil {
				srv.Metrics().ObserveTransition(snap)
			}
		},
		OnRecovery: func(kind string) {
			if srv != nil {
				srv.Metrics().ObserveRecovery(kind)
			}
		},
	})
	srv = httpapi.NewServer(cfg.Server.Addr, manager, logger, httpapi.Options{
		SendRateRPS:   cfg.Server.SendRateRPS,
		SendRateBurst: cfg.Server.SendRateBurst,
	})

	// Init failure is logged, not fatal: the status API stays up so the
	// operator can see the session is down and trigger a restart.
	if err := manager.Init(ctx); err != nil {
		logger.Error("session initialization failed", "error", err)
	}

	logger.Info("chat-gateway starting", "addr", cfg.Server.Addr, "transport", cfg.Session.Transport)
	runErr := srv.Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := manager.Close(closeCtx); err != nil {
		logger.Warn("session shutdown failed", "error", err)
	}
	if runErr != nil {
		logger.Error("chat-gateway failed", "error", runErr)
		os.Exit(1)
	}
	logger.Info("chat-gateway stopped")
}
