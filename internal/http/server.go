package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"servicecalls/internal/core"
	"servicecalls/internal/dashboard"
	applog "servicecalls/internal/log"
	"servicecalls/internal/metrics"
	"servicecalls/internal/middleware/ratelimit"
	"servicecalls/internal/middleware/security"
	"servicecalls/internal/middleware/trace"
)

// SessionStore is what the handlers need from the session service.
type SessionStore interface {
	Create(ctx context.Context) (string, dashboard.Snapshot, error)
	Snapshot(id string) (dashboard.Snapshot, error)
	Apply(id string, state core.FilterState) (dashboard.Snapshot, error)
	Update(id string, change func(*core.FilterState)) (dashboard.Snapshot, error)
	ClearFilters(id string) (dashboard.Snapshot, error)
	Chart(id, name string) (dashboard.ChartDataset, error)
	Delete(id string) error
	Count() int
}

// ReadyCheck probes one dependency for /readyz.
type ReadyCheck func(ctx context.Context) error

type Options struct {
	Sessions           SessionStore
	Location           *time.Location
	Metrics            *metrics.Metrics
	Logger             *applog.Logger
	RateLimitPerMinute int
	ReadyChecks        map[string]ReadyCheck
}

type Server struct {
	http.Server
	sessions    SessionStore
	location    *time.Location
	metrics     *metrics.Metrics
	logger      *applog.Logger
	readyChecks map[string]ReadyCheck
	started     time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	shutdownOnce     sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.Default(applog.ComponentHTTP)
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	s := &Server{
		sessions:         opts.Sessions,
		location:         opts.Location,
		metrics:          opts.Metrics,
		logger:           opts.Logger,
		readyChecks:      opts.ReadyChecks,
		started:          time.Now(),
		securityDetector: security.NewDetector(),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.HandleFunc("POST /api/dashboard/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/dashboard/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/dashboard/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("PUT /api/dashboard/sessions/{id}/filters", s.handleReplaceFilters)
	mux.HandleFunc("PATCH /api/dashboard/sessions/{id}/filters", s.handlePatchFilters)
	mux.HandleFunc("DELETE /api/dashboard/sessions/{id}/filters", s.handleClearFilters)
	mux.HandleFunc("GET /api/dashboard/sessions/{id}/charts/{chart}", s.handleChart)

	traceMiddleware := trace.NewMiddleware(s.logger.WithComponent(applog.ComponentTrace), s.securityDetector.ExtractClientIP)
	limit := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimited,
		http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete)

	var handler http.Handler = mux
	handler = limit(handler)
	handler = s.metrics.Middleware(handler)
	handler = traceMiddleware.Middleware(handler)
	handler = s.securityDetector.Middleware(s.logger)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w, r)
}

// Shutdown stops the rate limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
