package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/roledash/roledash/internal/app"
	"github.com/roledash/roledash/internal/integrations/placeholder"
	jobmetrics "github.com/roledash/roledash/internal/jobs"
	"github.com/roledash/roledash/internal/observability"
	"github.com/roledash/roledash/internal/users"
	"github.com/roledash/roledash/jobs"
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

	logger := app.NewLogger(cfg)

	// Each run reads a fresh directory, so the worker keeps no cache
	// between exports.
	source := placeholder.NewClient(cfg.UsersSourceURL,
		placeholder.WithHTTPClient(&http.Client{Timeout: cfg.UsersRemoteTimeout}))
	exporter := freshExporter{source: source, cfg: users.Config{
		RemoteTimeout: cfg.UsersRemoteTimeout,
		Logger:        logger,
	}}

	metrics := observability.NewMetrics()
	exportJob := jobs.NewUsersExportJob(exporter, cfg.ExportDir, logger, jobmetrics.NewMetrics(metrics.Registerer()))
	if cfg.WorkerMetricsAddr != "" {
		go serveMetrics(ctx, cfg.WorkerMetricsAddr, metrics, logger)
	}

	exportTask, err := jobs.NewUsersExportTask(jobs.UsersExportPayload{RequestedBy: "scheduler"})
	if err != nil {
		logger.Error("build export task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: cfg.Redis().Asynq(),
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskUsersExport, Handler: exportJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ExportCron, Task: exportTask, Options: []asynq.Option{asynq.MaxRetry(3), asynq.Timeout(5 * time.Minute)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("export_dir", cfg.ExportDir), slog.String("export_cron", cfg.ExportCron))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

// freshExporter seeds a new service per export.
type freshExporter struct {
	source users.Source
	cfg    users.Config
}

func (e freshExporter) Export(ctx context.Context, ids []string) (users.Export, error) {
	return users.NewService(e.source, e.cfg).Export(ctx, ids)
}

func serveMetrics(ctx context.Context, addr string, metrics *observability.Metrics, logger *slog.Logger) {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	logger.Info("serving worker metrics", slog.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("worker metrics server", slog.Any("error", err))
	}
}
