package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"servicecalls/internal/cache"
	"servicecalls/internal/core"
	"servicecalls/internal/dashboard"
	applog "servicecalls/internal/log"
	"servicecalls/internal/metrics"
	"servicecalls/internal/source"
)

var ErrSessionNotFound = errors.New("session not found")

// ErrUnknownChart is returned for chart names other than "main" and "sub1".
var ErrUnknownChart = errors.New("unknown chart")

const (
	ChartMain = "main"
	ChartSub1 = "sub1"
)

// SessionConfig tunes the session store and the engines it creates.
type SessionConfig struct {
	MaxSessions  int
	TTL          time.Duration
	FetchTimeout time.Duration
	Backend      string
	Engine       dashboard.Options
}

// SessionService owns one dashboard engine per browser session. Engines live
// in an LRU with sliding expiry; an evicted engine is closed, which cancels
// its fetch if one is still running.
type SessionService struct {
	fetcher  source.Fetcher
	cfg      SessionConfig
	sessions *cache.LRUCache[*dashboard.Engine]
	fetches  singleflight.Group
	metrics  *metrics.Metrics
	logger   *applog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	loads   sync.WaitGroup
}

func NewSessionService(fetcher source.Fetcher, cfg SessionConfig, m *metrics.Metrics, logger *applog.Logger) *SessionService {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 500
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = applog.Default(applog.ComponentSession)
	}
	if cfg.Engine.Logger == nil {
		cfg.Engine.Logger = logger.WithComponent(applog.ComponentDashboard)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &SessionService{
		fetcher:  fetcher,
		cfg:      cfg,
		sessions: cache.NewLRUCache[*dashboard.Engine](cfg.MaxSessions, cfg.TTL),
		metrics:  m,
		logger:   logger,
		baseCtx:  ctx,
		cancel:   cancel,
	}
	s.sessions.OnEvict(func(id string, e *dashboard.Engine, reason cache.EvictReason) {
		e.Close()
		s.metrics.SetActiveSessions(s.sessions.Size())
		s.logger.Debug("Dashboard session closed",
			applog.FieldSessionID, id,
			applog.FieldOperation, applog.OpClose,
			"reason", reason.String())
	})
	return s
}

// Create registers a new session in the Loading phase and starts its
// dataset fetch in the background.
func (s *SessionService) Create(ctx context.Context) (string, dashboard.Snapshot, error) {
	if err := s.baseCtx.Err(); err != nil {
		return "", dashboard.Snapshot{}, fmt.Errorf("session service closed: %w", err)
	}
	id := uuid.NewString()
	engine := dashboard.NewEngine(s.cfg.Engine)
	s.sessions.Set(id, engine)
	s.metrics.SetActiveSessions(s.sessions.Size())

	s.logger.InfoContext(ctx, "Dashboard session created", applog.FieldSessionID, id)

	s.loads.Add(1)
	go s.load(id, engine)
	return id, engine.Snapshot(), nil
}

func (s *SessionService) load(id string, engine *dashboard.Engine) {
	defer s.loads.Done()

	err := engine.Load(s.baseCtx, source.FetcherFunc(s.sharedFetch))
	var fetchErr *dashboard.FetchError
	switch {
	case err == nil:
		s.metrics.RecomputeObserved()
	case errors.Is(err, dashboard.ErrStaleLoad), errors.Is(err, dashboard.ErrClosed):
		// the session went away first
	case errors.As(err, &fetchErr):
		s.metrics.FetchFailed(s.cfg.Backend)
		s.logger.Warn("Dashboard session has no data",
			applog.FieldSessionID, id,
			applog.FieldBackend, s.cfg.Backend,
			applog.FieldError, err.Error())
	default:
		s.logger.Error("Dashboard session load failed", applog.FieldSessionID, id, applog.FieldError, err.Error())
	}
}

// sharedFetch collapses concurrent session loads into one upstream fetch.
// The fetch itself is bound to the service lifetime rather than to any one
// session, so a session closing early does not fail the others.
func (s *SessionService) sharedFetch(ctx context.Context) ([]core.ServiceCallRecord, error) {
	ch := s.fetches.DoChan("records", func() (any, error) {
		fctx, cancel := context.WithTimeout(s.baseCtx, s.cfg.FetchTimeout)
		defer cancel()
		return s.fetcher.FetchRecords(fctx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]core.ServiceCallRecord), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *SessionService) engine(id string) (*dashboard.Engine, error) {
	e, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e, nil
}

func (s *SessionService) Snapshot(id string) (dashboard.Snapshot, error) {
	e, err := s.engine(id)
	if err != nil {
		return dashboard.Snapshot{}, err
	}
	return e.Snapshot(), nil
}

// Apply replaces the session's filter state and returns the recomputed
// snapshot. While the session is Loading it returns dashboard.ErrNotReady.
func (s *SessionService) Apply(id string, state core.FilterState) (dashboard.Snapshot, error) {
	e, err := s.engine(id)
	if err != nil {
		return dashboard.Snapshot{}, err
	}
	return s.observe(e.Apply(state))
}

// Update changes only the filters that change touches.
func (s *SessionService) Update(id string, change func(*core.FilterState)) (dashboard.Snapshot, error) {
	e, err := s.engine(id)
	if err != nil {
		return dashboard.Snapshot{}, err
	}
	return s.observe(e.Update(change))
}

func (s *SessionService) ClearFilters(id string) (dashboard.Snapshot, error) {
	e, err := s.engine(id)
	if err != nil {
		return dashboard.Snapshot{}, err
	}
	return s.observe(e.ClearFilters())
}

func (s *SessionService) observe(snap dashboard.Snapshot, err error) (dashboard.Snapshot, error) {
	switch {
	case err == nil:
		s.metrics.RecomputeObserved()
	case errors.Is(err, dashboard.ErrClosed):
		return snap, fmt.Errorf("%w: closed", ErrSessionNotFound)
	}
	return snap, err
}

// Chart returns one of the two bar chart datasets of the current snapshot.
func (s *SessionService) Chart(id, name string) (dashboard.ChartDataset, error) {
	snap, err := s.Snapshot(id)
	if err != nil {
		return dashboard.ChartDataset{}, err
	}
	switch name {
	case ChartMain:
		return snap.Charts.MainCategory, nil
	case ChartSub1:
		return snap.Charts.SubCategory1, nil
	default:
		return dashboard.ChartDataset{}, fmt.Errorf("%w: %s", ErrUnknownChart, name)
	}
}

// Delete disposes the session. Deleting an unknown session is an error so
// the HTTP layer can answer 404.
func (s *SessionService) Delete(id string) error {
	if _, err := s.engine(id); err != nil {
		return err
	}
	s.sessions.Delete(id)
	return nil
}

func (s *SessionService) Count() int {
	return s.sessions.Size()
}

// CleanExpired drops idle sessions; it lets a cache.Manager drive expiry.
func (s *SessionService) CleanExpired() int {
	return s.sessions.CleanExpired()
}

// Close cancels in-flight fetches, closes every engine and waits for the
// background loads to return or for ctx to expire.
func (s *SessionService) Close(ctx context.Context) error {
	s.cancel()
	n := s.sessions.Purge()

	done := make(chan struct{})
	go func() {
		s.loads.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("Dashboard sessions closed", "count", n, applog.FieldOperation, applog.OpShutdown)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for session loads: %w", ctx.Err())
	}
}

var _ cache.Cleaner = (*SessionService)(nil)
