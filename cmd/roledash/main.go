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

	"github.com/hibiken/asynq"

	"github.com/roledash/roledash/cmd/roledash/cli"
	"github.com/roledash/roledash/internal/app"
	"github.com/roledash/roledash/internal/auth"
	"github.com/roledash/roledash/internal/integrations/placeholder"
	"github.com/roledash/roledash/internal/observability"
	"github.com/roledash/roledash/internal/platform/cache"
	"github.com/roledash/roledash/internal/platform/db"
	"github.com/roledash/roledash/internal/rbac"
	"github.com/roledash/roledash/internal/shared"
	"github.com/roledash/roledash/internal/users"
	"github.com/roledash/roledash/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	root := cli.NewRootCommand(cli.Deps{
		Serve: func(ctx context.Context) error {
			return serve(ctx, stop, cfg, logger)
		},
		OpenJobs: func() (cli.Jobs, error) {
			return cli.NewJobsCLI(cfg.Redis().Asynq()), nil
		},
	})
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("roledash", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "roledash_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()

	source := placeholder.NewClient(cfg.UsersSourceURL,
		placeholder.WithHTTPClient(&http.Client{Timeout: cfg.UsersRemoteTimeout}))

	// Observers exist before the service they watch, so the size
	// callback resolves it lazily.
	var usersService *users.Service
	observers := []users.Observer{
		app.MetricsObserver(metrics, func() int { return usersService.Store().Len() }),
	}
	if cfg.AuditEnabled() {
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		auditLogger := shared.NewAuditLogger(pool)
		if err := auditLogger.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("audit schema: %w", err)
		}
		observers = append(observers, app.NewAuditObserver(auditLogger, logger))
		logger.Info("mutation audit trail enabled")
	}
	usersService = users.NewService(source, users.Config{
		RemoteTimeout: cfg.UsersRemoteTimeout,
		LenientLoad:   cfg.UsersLenientLoad,
		Logger:        logger,
		Observers:     observers,
	})

	guard := rbac.Middleware{Logger: logger}
	authService := auth.NewService(auth.NewDemoRepository())
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)
	usersHandler := users.NewHandler(logger, usersService, guard)

	redisOpts := cfg.Redis().Asynq()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, guard, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthHandler:    authHandler,
		UsersHandler:   usersHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
