package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"servicecalls/internal/amqp"
	"servicecalls/internal/backend"
	"servicecalls/internal/cli"
	applog "servicecalls/internal/log"
	"servicecalls/internal/metrics"
	"servicecalls/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting kpi-worker", applog.FieldOperation, applog.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the KPI worker")
		os.Exit(1)
	}
	loc, _ := cfg.Location()
	locale, _ := cfg.LanguageTag()

	focuses, err := worker.LoadFocuses(cfg.KPIFocusFile, cfg.KPIMainCategories, cfg.KPISubCategories)
	if err != nil {
		logger.Error("Failed to load KPI focuses", applog.FieldError, err, "file", cfg.KPIFocusFile)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	// The worker never watches the records file; each cycle refetches anyway.
	backendCfg.RecordsWatch = false
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend)).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer result.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	var (
		m          *metrics.Metrics
		metricsSrv *http.Server
	)
	if cfg.MetricsEnabled {
		m = metrics.New()
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", m.Handler())
		metricsSrv = &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", applog.FieldError, err)
			}
		}()
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(ctx); err != nil {
				logger.Error("Metrics server shutdown error", applog.FieldError, err)
			}
		}
	})

	w := worker.NewKPIWorker(result.Fetcher, amqpClient, focuses, worker.KPIOptions{
		Location:     loc,
		Locale:       locale,
		FetchTimeout: cfg.FetchTimeout,
		Metrics:      m,
		Logger:       logger.WithComponent(applog.ComponentWorker),
	})

	logger.Info("KPI worker running",
		"interval", cfg.KPIInterval.String(),
		"focuses", len(focuses),
		applog.FieldBackend, cfg.DataBackend)

	if err := w.Run(ctx, cfg.KPIInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("KPI worker failed", applog.FieldError, err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("KPI worker stopped")
}
