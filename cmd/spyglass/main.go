package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spyglass-dev/spyglass/db"
	"github.com/spyglass-dev/spyglass/internal/config"
	"github.com/spyglass-dev/spyglass/internal/executor"
	"github.com/spyglass-dev/spyglass/internal/handlers"
	"github.com/spyglass-dev/spyglass/internal/heartbeat"
	"github.com/spyglass-dev/spyglass/internal/incidents"
	"github.com/spyglass-dev/spyglass/internal/metrics"
	"github.com/spyglass-dev/spyglass/internal/monitors"
	"github.com/spyglass-dev/spyglass/internal/notify"
	"github.com/spyglass-dev/spyglass/internal/realtime"
	"github.com/spyglass-dev/spyglass/internal/results"
	"github.com/spyglass-dev/spyglass/internal/router"
	"github.com/spyglass-dev/spyglass/internal/scheduler"
	"github.com/spyglass-dev/spyglass/internal/store"
	"github.com/spyglass-dev/spyglass/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.LogLevel, cfg.LogJSON)
	slog.SetDefault(logger)

	if err := db.ConnectDatabase(cfg.DatabaseDSN); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := db.MigrateDatabase(); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	st := store.NewGormStore(db.DB)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	hub := realtime.NewHub()

	browser := monitors.NewBrowserRunner(cfg.Browser)
	browser.OnEngineFallback = m.BrowserEngineRetries.Inc

	exec := executor.New(monitors.NewRegistry(browser), m)

	incidentMgr := incidents.NewManager(st, hub, m)
	notifyRouter := notify.NewRouter(st, m)
	incidentMgr.SetAnnouncer(notifyRouter)

	handler := results.NewHandler(st, st, incidentMgr, notifyRouter, hub)

	sched := scheduler.New(st, exec, handler, m, cfg.MaxConcurrentChecks)
	if err := sched.Start(); err != nil {
		slog.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	hbService := heartbeat.NewService(st, handler, hub, m, cfg.Heartbeat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go hbService.Run(ctx)

	r := router.NewRouter(&handlers.Handlers{
		Store:     st,
		Scheduler: sched,
		Heartbeat: hbService,
		Incidents: incidentMgr,
		Hub:       hub,
	}, registry)

	slog.Info("starting server", "port", cfg.Port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Run(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		slog.Error("server exited", "error", err)
		os.Exit(1)
	case <-ctx.Done():
		slog.Info("shutting down")
	}
}
