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

	"github.com/velesk/rankline/internal/bootstrap"
	"github.com/velesk/rankline/internal/config"
	"github.com/velesk/rankline/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("warmer", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewWarmer(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WarmerMetricsPort,
		Handler:           app.Metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("warmer_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("warmer_metrics_failed", "error", err)
		}
	}()

	handler := func(ctx context.Context, texts []string) error {
		start := time.Now()
		_, partial, err := app.Cache.GetOrCompute(ctx, texts)
		app.Metrics.RecordBatch("warmer", len(texts), time.Since(start), err)
		if err != nil {
			logger.Warn("warmup_batch_failed", "texts", len(texts), "partial", partial, "error", err)
			return err
		}
		logger.Info("warmup_batch_completed", "texts", len(texts))
		return nil
	}

	logger.Info("warmer_started", "subject", cfg.NATSWarmupSubject)
	if err := app.Queue.SubscribeWarmup(ctx, handler); err != nil {
		logger.Error("warmup_subscribe_failed", "error", err)
		stop()
	}

	<-ctx.Done()
	logger.Info("warmer_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
