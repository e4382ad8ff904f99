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

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledgerdesk/internal/app"
	"github.com/odyssey-erp/ledgerdesk/internal/erpapi"
	jobmetrics "github.com/odyssey-erp/ledgerdesk/internal/jobs"
	"github.com/odyssey-erp/ledgerdesk/internal/masterdata"
	"github.com/odyssey-erp/ledgerdesk/internal/observability"
	"github.com/odyssey-erp/ledgerdesk/internal/platform/cache"
	"github.com/odyssey-erp/ledgerdesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))
	if cfg.ERPServiceToken == "" {
		logger.Warn("ERP_SERVICE_TOKEN not set; notifications will be rejected upstream")
	}

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	registry := observability.NewMetrics()
	erp := erpapi.NewClient(cfg.ERPBaseURL, cfg.ERPTimeout, logger)
	erp.SetObserver(registry)
	metrics := jobmetrics.NewMetrics(registry.Registerer())
	stopMetrics := serveMetrics(cfg.WorkerMetricsAddr, registry.Handler(), logger)
	defer stopMetrics()
	masterdataService := masterdata.NewService(erp, cache.NewVersioned(redisClient, "ledgerdesk:masterdata", cfg.MasterdataTTL), logger)

	notifyJob := jobs.NewNotifyJob(erp, cfg.ERPServiceToken, logger, metrics)
	refreshJob := jobs.NewMasterdataRefreshJob(masterdataService, cfg.ERPServiceToken, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.AsynqRedis(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDocumentPosted, Handler: notifyJob.Handle},
			{Type: jobs.TaskMasterdataRefresh, Handler: refreshJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.MasterdataRefreshCron, Task: jobs.NewMasterdataRefreshTask(), Options: []asynq.Option{asynq.Unique(cfg.MasterdataTTL)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

// serveMetrics exposes the worker registry on addr until the returned func runs.
// An empty addr disables the listener.
func serveMetrics(addr string, handler http.Handler, logger *slog.Logger) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("worker metrics listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker metrics server", slog.Any("error", err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
