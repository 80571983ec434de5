package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"servicecalls/internal/backend"
	"servicecalls/internal/cache"
	"servicecalls/internal/cli"
	"servicecalls/internal/dashboard"
	apphttp "servicecalls/internal/http"
	applog "servicecalls/internal/log"
	"servicecalls/internal/metrics"
	"servicecalls/internal/services"
	"servicecalls/internal/storage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	loc, _ := cfg.Location()
	locale, _ := cfg.LanguageTag()

	logger.Info("Starting dashboard",
		applog.FieldOperation, applog.OpStartup,
		applog.FieldBackend, cfg.DataBackend,
		"timezone", loc.String(),
		"locale", locale.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend)).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Close(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	sessions := services.NewSessionService(result.Fetcher, services.SessionConfig{
		MaxSessions:  cfg.MaxSessions,
		TTL:          cfg.SessionTTL,
		FetchTimeout: cfg.FetchTimeout,
		Backend:      cfg.DataBackend,
		Engine: dashboard.Options{
			Location:   loc,
			Locale:     locale,
			WindowDays: cfg.DefaultWindowDays,
		},
	}, m, logger.WithComponent(applog.ComponentSession))

	cacheManager := cache.NewManager(logger.WithComponent(applog.ComponentCache))
	cacheManager.Register(sessions)
	cacheManager.StartCleanup(time.Minute)

	readyChecks := map[string]apphttp.ReadyCheck{}
	if repo, ok := result.Fetcher.(*storage.SQLiteRepository); ok {
		readyChecks["sqlite"] = func(ctx context.Context) error {
			_, err := repo.Count(ctx)
			return err
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Sessions:           sessions,
		Location:           loc,
		Metrics:            m,
		Logger:             logger.WithComponent(applog.ComponentHTTP),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ReadyChecks:        readyChecks,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr, "metrics", cfg.MetricsEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", applog.FieldOperation, applog.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		cacheManager.Stop()
		return errors.Join(srv.Shutdown(shutdownCtx), sessions.Close(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		logger.Error("Dashboard stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Dashboard stopped")
}
