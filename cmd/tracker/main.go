package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"presence-archive/internal/api"
	"presence-archive/internal/config"
	"presence-archive/internal/db"
	"presence-archive/internal/logging"
	"presence-archive/internal/poller"
	"presence-archive/internal/ratelimit"
	"presence-archive/internal/store"
	"presence-archive/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_tracker",
		"service", "presence-archive",
		"tracked_users", len(cfg.TrackedUsers),
		"interval", cfg.CheckInterval.String(),
		"rate_limit", cfg.RateLimit,
		"db_path", cfg.DBPath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open the store (with retry; the path may live on storage that mounts
	// after the service unit starts)
	var dbConn *db.DB
	for i := 0; i < 5; i++ {
		dbConn, err = db.New(ctx, cfg.DBPath)
		if err == nil {
			break
		}
		logger.Warn("db_open_retry", "attempt", i+1, "error", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		logger.Error("db_open_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := dbConn.Migrate(ctx); err != nil {
		logger.Error("db_migrate_failed", "error", err)
		os.Exit(1)
	}

	st := store.New(dbConn, logger)

	client := telegram.NewClient(logger, cfg.APIBaseURL, cfg.APISessionToken)
	logger.Info("bridge_client_ready",
		"base_url", cfg.APIBaseURL,
		"session", logging.MaskToken(cfg.APISessionToken),
	)

	limiter := ratelimit.New(cfg.RateLimit)
	p := poller.New(logger, st, client, limiter, cfg.CheckInterval, cfg.TrackedUsers)

	var httpServer *http.Server
	if cfg.HTTPAddr != "" {
		srv := api.NewServer(logger, st)
		httpServer = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http_listen_failed", "error", err)
				os.Exit(1)
			}
		}()
		logger.Info("export_api_ready", "addr", cfg.HTTPAddr)
	}

	pollDone := make(chan error, 1)
	go func() {
		pollDone <- p.Run(ctx)
	}()

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-stop:
		logger.Info("shutting_down")
		cancel()
		<-pollDone
	case err := <-pollDone:
		// only credential invalidation ends the poller on its own
		if err != nil {
			logger.Error("poller_fatal", "error", err)
			exitCode = 1
		}
		cancel()
	}

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http_shutdown_failed", "error", err)
		} else {
			logger.Info("http_server_stopped")
		}
		shutdownCancel()
	}

	dbConn.Close()
	logger.Info("tracker_stopped")
	os.Exit(exitCode)
}
