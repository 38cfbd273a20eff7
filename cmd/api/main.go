package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/servicing-triage/internal/adapters/http"
	"github.com/kirillkom/servicing-triage/internal/bootstrap"
	"github.com/kirillkom/servicing-triage/internal/config"
	"github.com/kirillkom/servicing-triage/internal/core/ports"
	"github.com/kirillkom/servicing-triage/internal/observability/logging"
	"github.com/kirillkom/servicing-triage/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.Install(logging.New(os.Stdout, "triage-api", cfg.LogLevel, cfg.LogFormat))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	var ingestor ports.DocumentIngestor
	if cfg.APIEnqueueEnabled {
		ingestUC, err := app.IngestUC()
		if err != nil {
			logger.Error("queue_connect_failed", "error", err)
			os.Exit(1)
		}
		ingestor = ingestUC
	}

	httpMetrics := metrics.NewHTTPServerMetrics("api", app.Metrics.Registry())
	router := httpadapter.NewRouter(cfg, app.ProcessUC, app.Parser, app.Storage, ingestor, httpMetrics).Handler()
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("api_shutdown_failed", "error", err)
	}
}
