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

	"github.com/kirillkom/servicing-triage/internal/bootstrap"
	"github.com/kirillkom/servicing-triage/internal/config"
	"github.com/kirillkom/servicing-triage/internal/core/domain"
	"github.com/kirillkom/servicing-triage/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.Install(logging.New(os.Stdout, "triage-worker", cfg.LogLevel, cfg.LogFormat))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	queue, err := app.Queue()
	if err != nil {
		logger.Error("queue_connect_failed", "error", err)
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           app.Metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "metrics_addr", metricsServer.Addr)
	err = queue.SubscribeDocuments(ctx, func(handlerCtx context.Context, doc domain.Document) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()
		_, err := app.ProcessUC.Process(processCtx, doc)
		return err
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
	}
}
