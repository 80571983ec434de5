package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/language"

	"servicecalls/internal/amqp"
	"servicecalls/internal/core"
	"servicecalls/internal/dashboard"
	applog "servicecalls/internal/log"
	"servicecalls/internal/metrics"
	"servicecalls/internal/source"
)

// Publisher is the outbound side of the worker; *amqp.Client implements it.
type Publisher interface {
	PublishKPISnapshot(ctx context.Context, msg *amqp.KPISnapshotMessage) error
}

type KPIOptions struct {
	Location     *time.Location
	Locale       language.Tag
	FetchTimeout time.Duration
	Clock        func() time.Time
	Metrics      *metrics.Metrics
	Logger       *applog.Logger
}

// KPIWorker periodically fetches the dataset and publishes the KPI block of
// every focus, computed exactly as a dashboard with no date range would.
type KPIWorker struct {
	fetcher   source.Fetcher
	publisher Publisher
	focuses   []Focus
	opts      KPIOptions
}

func NewKPIWorker(fetcher source.Fetcher, publisher Publisher, focuses []Focus, opts KPIOptions) *KPIWorker {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Locale == language.Und {
		opts.Locale = language.English
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = applog.Default(applog.ComponentWorker)
	}
	return &KPIWorker{
		fetcher:   fetcher,
		publisher: publisher,
		focuses:   focuses,
		opts:      opts,
	}
}

// RunOnce performs one fetch and publishes one snapshot per focus. A failed
// publish does not stop the remaining focuses; all failures are returned
// together.
func (w *KPIWorker) RunOnce(ctx context.Context) (int, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, w.opts.FetchTimeout)
	records, err := w.fetcher.FetchRecords(fetchCtx)
	cancel()
	if err != nil {
		w.opts.Metrics.KPISnapshot("failed")
		return 0, fmt.Errorf("fetch service calls: %w", err)
	}

	now := w.opts.Clock().In(w.opts.Location)
	published := 0
	var errs []error
	for _, focus := range w.focuses {
		msg := w.snapshot(records, focus, now)
		if err := w.publisher.PublishKPISnapshot(ctx, msg); err != nil {
			w.opts.Metrics.KPISnapshot("failed")
			errs = append(errs, fmt.Errorf("publish focus %s: %w", focus.Name, err))
			continue
		}
		w.opts.Metrics.KPISnapshot("published")
		published++
		w.opts.Logger.DebugContext(ctx, "KPI snapshot published",
			"focus", focus.Name,
			applog.FieldOperation, applog.OpPublish,
			"total", msg.KPI.Total,
			"today", msg.KPI.Today,
			"month", msg.KPI.Month)
	}

	w.opts.Logger.InfoContext(ctx, "KPI cycle completed",
		applog.FieldRecordCount, len(records),
		"focuses", len(w.focuses),
		"published", published)
	return published, errors.Join(errs...)
}

func (w *KPIWorker) snapshot(records []core.ServiceCallRecord, focus Focus, now time.Time) *amqp.KPISnapshotMessage {
	views, state := dashboard.Compute(records, core.FilterState{
		MainCategories: focus.MainCategories,
		SubCategory1:   focus.SubCategories,
	}, now, w.opts.Locale)
	return amqp.NewKPISnapshotMessage(focus.Name, state.MainCategories, state.SubCategory1,
		len(records), views.KPI, views.StatusSummary, now)
}

// Run calls RunOnce immediately and then every interval until ctx is done.
// Cycle failures are logged; only ctx ends the loop.
func (w *KPIWorker) Run(ctx context.Context, interval time.Duration) error {
	w.cycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.opts.Logger.Info("KPI worker stopping", applog.FieldOperation, applog.OpShutdown)
			return ctx.Err()
		case <-ticker.C:
			w.cycle(ctx)
		}
	}
}

func (w *KPIWorker) cycle(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
		w.opts.Logger.ErrorContext(ctx, "KPI cycle failed", applog.FieldError, err.Error())
	}
}
