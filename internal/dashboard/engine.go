// Package dashboard implements the service-call dashboard engine: a cascade
// of filters over an in-memory dataset and the aggregate views derived from it.
//
// Every filter change runs the whole pipeline again, top to bottom:
//
//	DateMainFilter -> SubCategory1Options -> ReconcileSelection -> FullyFilter
//	  -> StatusSummary / ComputeKPI -> chart projections
//
// Views are never patched incrementally.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/text/language"

	"servicecalls/internal/core"
	applog "servicecalls/internal/log"
	"servicecalls/internal/source"
)

type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
)

// FetchFailureMessage is what the presentation layer shows when the dataset
// could not be loaded.
const FetchFailureMessage = "failed to load service calls"

var (
	ErrNotReady      = errors.New("dashboard: dataset not loaded")
	ErrAlreadyLoaded = errors.New("dashboard: dataset already loaded")
	ErrStaleLoad     = errors.New("dashboard: load superseded")
	ErrClosed        = errors.New("dashboard: engine closed")
)

// FetchError wraps a failure of the record source.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "fetch service calls: " + e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

type (
	// Options configures an Engine. Zero values fall back to defaults.
	Options struct {
		Location   *time.Location
		Locale     language.Tag
		WindowDays int
		Clock      func() time.Time
		Logger     *applog.Logger
	}

	// Views are the derived, read-only results of one pipeline pass.
	Views struct {
		DateMainFiltered    []core.ServiceCallRecord `json:"-"`
		Filtered            []core.ServiceCallRecord `json:"filtered"`
		MainCategoryOptions []string                 `json:"mainCategoryOptions"`
		MainCategoryStyles  []CategoryStyle          `json:"mainCategoryStyles"`
		SubCategory1Options []string                 `json:"subCategory1Options"`
		StatusSummary       []StatusCount            `json:"statusSummary"`
		KPI                 KPI                      `json:"kpi"`
		Charts              Charts                   `json:"charts"`
	}

	// Snapshot is a consistent copy of the engine state for presentation.
	Snapshot struct {
		Phase       Phase            `json:"phase"`
		Error       string           `json:"error,omitempty"`
		Revision    uint64           `json:"revision"`
		RecordCount int              `json:"recordCount"`
		Filters     core.FilterState `json:"filters"`
		Views
	}
)

// Compute runs one full pipeline pass. It returns the views and the filter
// state with its subcategory-1 selection reconciled against the valid options.
func Compute(records []core.ServiceCallRecord, state core.FilterState, now time.Time, locale language.Tag) (Views, core.FilterState) {
	state = state.Normalized()

	dateMain := DateMainFilter(records, state.DateRange, state.MainCategories)
	options := SubCategory1Options(dateMain, locale)
	state.SubCategory1 = ReconcileSelection(state.SubCategory1, options)
	filtered := FullyFilter(dateMain, state.SubCategory1)
	categoryOnly := CategoryOnlyFilter(records, state.MainCategories, state.SubCategory1)
	mainOptions := MainCategoryOptions(records, locale)

	views := Views{
		DateMainFiltered:    dateMain,
		Filtered:            filtered,
		MainCategoryOptions: mainOptions,
		MainCategoryStyles:  CategoryStyles(mainOptions),
		SubCategory1Options: options,
		StatusSummary:       StatusSummary(filtered),
		KPI:                 ComputeKPI(categoryOnly, len(filtered), now),
		Charts: Charts{
			MainCategory: MainCategoryChart(filtered),
			SubCategory1: SubCategory1Chart(dateMain, state.SubCategory1),
		},
	}
	return views, state
}

// Engine owns one session's dataset and filter state. All methods are safe
// for concurrent use; each runs to completion under the engine lock, except
// the fetch inside Load.
type Engine struct {
	mu   sync.Mutex
	opts Options
	log  *applog.StructuredLogger

	phase    Phase
	records  []core.ServiceCallRecord
	state    core.FilterState
	views    Views
	loadErr  error
	revision uint64

	generation uint64
	cancelLoad context.CancelFunc
	closed     bool
}

func NewEngine(opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Locale == language.Und {
		opts.Locale = language.English
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = 30
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = applog.Default(applog.ComponentDashboard)
	}
	return &Engine{
		opts:  opts,
		log:   applog.NewStructuredLogger(opts.Logger),
		phase: PhaseLoading,
		state: core.FilterState{MainCategories: []string{}, SubCategory1: []string{}},
	}
}

// Load fetches the dataset and moves the engine to Ready. The fetch runs
// without holding the lock. If the engine is closed, or another Load starts,
// before the fetch returns, its result is discarded and ErrStaleLoad returned.
// A failed fetch leaves the engine Loading with the error on its snapshot.
func (e *Engine) Load(ctx context.Context, f source.Fetcher) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.phase == PhaseReady {
		e.mu.Unlock()
		return ErrAlreadyLoaded
	}
	if e.cancelLoad != nil {
		e.cancelLoad()
	}
	e.generation++
	gen := e.generation
	ctx, cancel := context.WithCancel(ctx)
	e.cancelLoad = cancel
	e.mu.Unlock()
	defer cancel()

	records, err := f.FetchRecords(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || gen != e.generation {
		e.opts.Logger.DebugContext(ctx, "Discarding superseded dataset fetch", applog.FieldOperation, applog.OpLoad)
		return ErrStaleLoad
	}
	e.cancelLoad = nil
	if err != nil {
		e.loadErr = &FetchError{Err: err}
		e.log.LogError(ctx, "Dashboard dataset fetch failed", err, applog.OpFetch, nil)
		return e.loadErr
	}
	e.install(ctx, records)
	return nil
}

// LoadRecords installs an already fetched dataset.
func (e *Engine) LoadRecords(records []core.ServiceCallRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.phase == PhaseReady {
		return ErrAlreadyLoaded
	}
	if e.cancelLoad != nil {
		e.cancelLoad()
		e.cancelLoad = nil
	}
	e.generation++
	e.install(context.Background(), records)
	return nil
}

// install performs the single Loading -> Ready transition: defaults are set
// directly and exactly one pass runs afterwards.
func (e *Engine) install(ctx context.Context, records []core.ServiceCallRecord) {
	e.records = append([]core.ServiceCallRecord(nil), records...)
	e.loadErr = nil
	e.state = core.DefaultFilterState(e.now(), e.opts.WindowDays)
	e.phase = PhaseReady
	e.opts.Logger.InfoContext(ctx, "Dashboard dataset loaded", applog.FieldRecordCount, len(e.records))
	e.recompute(ctx)
}

// Apply replaces the whole filter state, as a two-way bound form would.
func (e *Engine) Apply(state core.FilterState) (Snapshot, error) {
	return e.mutate(func(f *core.FilterState) { *f = state })
}

func (e *Engine) SetDateRange(r core.DateRange) (Snapshot, error) {
	return e.mutate(func(f *core.FilterState) { f.DateRange = r })
}

func (e *Engine) SetMainCategories(mains []string) (Snapshot, error) {
	return e.mutate(func(f *core.FilterState) { f.MainCategories = mains })
}

func (e *Engine) SetSubCategory1(subs []string) (Snapshot, error) {
	return e.mutate(func(f *core.FilterState) { f.SubCategory1 = subs })
}

// ClearFilters drops the date range and both selections.
func (e *Engine) ClearFilters() (Snapshot, error) {
	return e.mutate(func(f *core.FilterState) { *f = core.FilterState{} })
}

// Update edits a copy of the current filter state and runs one pass over the
// result, so a change touching several filters is still a single recompute.
func (e *Engine) Update(change func(*core.FilterState)) (Snapshot, error) {
	return e.mutate(change)
}

func (e *Engine) mutate(change func(*core.FilterState)) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Snapshot{}, ErrClosed
	}
	if e.phase != PhaseReady {
		return e.snapshotLocked(), ErrNotReady
	}
	next := e.state.Normalized()
	change(&next)
	e.state = next.Normalized()
	e.recompute(context.Background())
	return e.snapshotLocked(), nil
}

func (e *Engine) recompute(ctx context.Context) {
	requested := e.state.SubCategory1
	views, state := Compute(e.records, e.state, e.now(), e.opts.Locale)

	if len(state.SubCategory1) != len(requested) {
		e.opts.Logger.DebugContext(ctx, "Subcategory selection narrowed to valid options",
			applog.FieldOperation, applog.OpReconcile,
			applog.FieldDropped, dropped(requested, state.SubCategory1))
	}

	e.state = state
	e.views = views
	e.revision++
	e.log.LogRecompute(ctx, e.revision, len(e.records), len(views.Filtered), state.MainCategories, state.SubCategory1)
}

// Snapshot returns the current state and views. Slices in the views are
// shared with the engine and must be treated as read-only.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	s := Snapshot{
		Phase:       e.phase,
		Revision:    e.revision,
		RecordCount: len(e.records),
		Filters:     e.state.Normalized(),
		Views:       e.views,
	}
	if e.loadErr != nil {
		s.Error = FetchFailureMessage
	}
	return s
}

func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// LoadErr returns the last fetch failure, if the engine is still Loading
// because of one.
func (e *Engine) LoadErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadErr
}

// Close disposes the engine and cancels an in-flight fetch. Close is idempotent.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.generation++
	if e.cancelLoad != nil {
		e.cancelLoad()
		e.cancelLoad = nil
	}
}

func (e *Engine) now() time.Time {
	return e.opts.Clock().In(e.opts.Location)
}

func dropped(requested, kept []string) []string {
	keep := core.NewSet(kept)
	var out []string
	for _, r := range requested {
		if !keep.Has(r) {
			out = append(out, r)
		}
	}
	return out
}
