package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/aok-rag-assistant/internal/bootstrap"
	"github.com/kirillkom/aok-rag-assistant/internal/config"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/aok-rag-assistant/internal/observability/logging"
	"github.com/kirillkom/aok-rag-assistant/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewJSONLogger("worker", "error").Error("config_error", "error", err)
		os.Exit(1)
	}
	logger := logging.Install(os.Stdout, "worker", cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("worker_error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	dependencyMetrics := metrics.NewDependencyMetrics(workerMetrics.Registry())

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.WithDependencyObserver(dependencyMetrics))
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	queue, err := nats.New(cfg.NATSURL, nats.Options{
		Subject:            cfg.NATSSubject,
		QueueGroup:         cfg.NATSQueue,
		ResilienceExecutor: app.Executor,
		Logger:             logger,
	})
	if err != nil {
		return err
	}
	defer queue.Close()

	var metricsServer *http.Server
	if cfg.WorkerMetricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", workerMetrics.Handler())
		metricsServer = &http.Server{
			Addr:              ":" + cfg.WorkerMetricsPort,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("worker_metrics_listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("worker_metrics_server_error", "error", err)
			}
		}()
	}

	handler := nats.AskHandler(app.Answerer, workerMetrics, logger, cfg.RequestTimeout())
	serveErr := queue.Serve(ctx, handler)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("worker_metrics_shutdown_error", "error", err)
		}
	}
	return serveErr
}
