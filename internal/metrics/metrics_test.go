package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareLabelsByPattern(t *testing.T) {
	m := New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/dashboard/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := m.Middleware(mux)

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/sessions/"+id, nil))
	}
	got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "GET /api/dashboard/sessions/{id}", "404"))
	if got != 3 {
		t.Errorf("requests = %v, want 3", got)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("unmatched requests = %v, want 1", got)
	}
}

func TestCounters(t *testing.T) {
	m := New()
	m.RecomputeObserved()
	m.RecomputeObserved()
	m.FetchFailed("remote")
	m.SetActiveSessions(4)
	m.KPISnapshot("published")

	if got := testutil.ToFloat64(m.recomputes); got != 2 {
		t.Errorf("recomputes = %v", got)
	}
	if got := testutil.ToFloat64(m.fetchFailures.WithLabelValues("remote")); got != 1 {
		t.Errorf("fetch failures = %v", got)
	}
	if got := testutil.ToFloat64(m.activeSessions); got != 4 {
		t.Errorf("active sessions = %v", got)
	}
	if got := testutil.ToFloat64(m.kpiPublished.WithLabelValues("published")); got != 1 {
		t.Errorf("kpi snapshots = %v", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.RecomputeObserved()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "servicecalls_dashboard_recomputes_total 1") {
		t.Errorf("recompute counter missing from exposition:\n%s", rec.Body.String())
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecomputeObserved()
	m.FetchFailed("memory")
	m.SetActiveSessions(1)
	m.KPISnapshot("failed")

	called := false
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("nil middleware should pass through")
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("nil handler status = %d, want 404", rec.Code)
	}
}
