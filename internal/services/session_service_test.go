package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/text/language"

	"servicecalls/internal/core"
	"servicecalls/internal/dashboard"
	applog "servicecalls/internal/log"
	"servicecalls/internal/metrics"
)

var testNow = time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)

// gatedFetcher blocks every fetch until release is closed and counts calls.
type gatedFetcher struct {
	calls   atomic.Int32
	release chan struct{}
	records []core.ServiceCallRecord
	err     error
}

func newGatedFetcher(records []core.ServiceCallRecord) *gatedFetcher {
	return &gatedFetcher{release: make(chan struct{}), records: records}
}

func (f *gatedFetcher) FetchRecords(ctx context.Context) ([]core.ServiceCallRecord, error) {
	f.calls.Add(1)
	select {
	case <-f.release:
		return f.records, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func testRecords() []core.ServiceCallRecord {
	today := core.NewEntryTime(testNow.Add(-time.Hour))
	return []core.ServiceCallRecord{
		{ServiceCallID: 1, EntryTime: today, MainCategoryName: "Hardware", SubCategory1Name: "Printer", StatusName: "Open"},
		{ServiceCallID: 2, EntryTime: today, MainCategoryName: "Hardware", SubCategory1Name: "Laptop", StatusName: "Closed"},
		{ServiceCallID: 3, EntryTime: today, MainCategoryName: "Network", SubCategory1Name: "VPN", StatusName: "Open"},
	}
}

func newTestService(f *gatedFetcher, maxSessions int) *SessionService {
	return NewSessionService(f, SessionConfig{
		MaxSessions:  maxSessions,
		TTL:          time.Hour,
		FetchTimeout: 5 * time.Second,
		Backend:      "memory",
		Engine: dashboard.Options{
			Location: time.UTC,
			Locale:   language.English,
			Clock:    func() time.Time { return testNow },
			Logger:   applog.Discard(),
		},
	}, metrics.New(), applog.Discard())
}

func waitForPhase(t *testing.T, s *SessionService, id string, want dashboard.Phase) dashboard.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := s.Snapshot(id)
		if err != nil {
			t.Fatalf("Snapshot(%s): %v", id, err)
		}
		if snap.Phase == want {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s never reached phase %s", id, want)
	return dashboard.Snapshot{}
}

func TestSessionService_CreateLoadsInBackground(t *testing.T) {
	f := newGatedFetcher(testRecords())
	s := newTestService(f, 10)
	defer s.Close(context.Background())

	id, snap, err := s.Create(context.Background())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if snap.Phase != dashboard.PhaseLoading {
		t.Fatalf("new session phase = %s, want loading", snap.Phase)
	}
	if _, err := s.Apply(id, core.FilterState{}); !errors.Is(err, dashboard.ErrNotReady) {
		t.Fatalf("Apply while loading: err = %v, want ErrNotReady", err)
	}

	close(f.release)
	snap = waitForPhase(t, s, id, dashboard.PhaseReady)
	if snap.RecordCount != 3 || snap.Revision != 1 {
		t.Errorf("ready snapshot: records %d revision %d", snap.RecordCount, snap.Revision)
	}
}

func TestSessionService_ConcurrentCreatesShareOneFetch(t *testing.T) {
	f := newGatedFetcher(testRecords())
	s := newTestService(f, 10)
	defer s.Close(context.Background())

	var wg sync.WaitGroup
	ids := make([]string, 5)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, _, err := s.Create(context.Background())
			if err != nil {
				t.Errorf("Create: %v", err)
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	// Give every load a chance to join the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	for _, id := range ids {
		waitForPhase(t, s, id, dashboard.PhaseReady)
	}
	if n := f.calls.Load(); n != 1 {
		t.Errorf("upstream fetches = %d, want 1", n)
	}
}

func TestSessionService_FetchFailureSurfacesOnSnapshot(t *testing.T) {
	f := newGatedFetcher(nil)
	f.err = errors.New("upstream down")
	close(f.release)
	s := newTestService(f, 10)
	defer s.Close(context.Background())

	id, _, _ := s.Create(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap, err := s.Snapshot(id)
		if err != nil {
			t.Fatal(err)
		}
		if snap.Error != "" {
			if snap.Error != dashboard.FetchFailureMessage || snap.Phase != dashboard.PhaseLoading {
				t.Errorf("snapshot after failure: %+v", snap)
			}
			if len(snap.Filtered) != 0 {
				t.Errorf("views should stay empty")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("fetch error never surfaced")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionService_ApplyAndClear(t *testing.T) {
	f := newGatedFetcher(testRecords())
	close(f.release)
	s := newTestService(f, 10)
	defer s.Close(context.Background())

	id, _, _ := s.Create(context.Background())
	waitForPhase(t, s, id, dashboard.PhaseReady)

	snap, err := s.Apply(id, core.FilterState{
		MainCategories: []string{"Hardware"},
		SubCategory1:   []string{"Printer", "VPN"},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := snap.Filters.SubCategory1; len(got) != 1 || got[0] != "Printer" {
		t.Errorf("selection should be reconciled to [Printer], got %v", got)
	}
	if snap.KPI.Total != 1 {
		t.Errorf("total = %d, want 1", snap.KPI.Total)
	}

	chart, err := s.Chart(id, ChartSub1)
	if err != nil {
		t.Fatalf("Chart: %v", err)
	}
	if len(chart.Labels) != 2 {
		t.Errorf("sub1 chart labels = %v", chart.Labels)
	}
	if _, err := s.Chart(id, "pie"); !errors.Is(err, ErrUnknownChart) {
		t.Errorf("unknown chart err = %v", err)
	}

	snap, err = s.ClearFilters(id)
	if err != nil {
		t.Fatalf("ClearFilters: %v", err)
	}
	if snap.KPI.Total != 3 || !snap.Filters.IsEmpty() {
		t.Errorf("after clear: total %d filters %+v", snap.KPI.Total, snap.Filters)
	}
}

func TestSessionService_UnknownAndDeleted(t *testing.T) {
	f := newGatedFetcher(testRecords())
	close(f.release)
	s := newTestService(f, 10)
	defer s.Close(context.Background())

	if _, err := s.Snapshot("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Snapshot(missing) err = %v", err)
	}
	if err := s.Delete("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Delete(missing) err = %v", err)
	}

	id, _, _ := s.Create(context.Background())
	if err := s.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Snapshot(id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("deleted session still visible: %v", err)
	}
}

func TestSessionService_CapacityEvictionClosesEngine(t *testing.T) {
	f := newGatedFetcher(testRecords())
	s := newTestService(f, 2)
	defer s.Close(context.Background())

	first, _, _ := s.Create(context.Background())
	s.Create(context.Background())
	s.Create(context.Background())

	if s.Count() != 2 {
		t.Errorf("Count = %d, want 2", s.Count())
	}
	if _, err := s.Snapshot(first); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("oldest session should be evicted, err = %v", err)
	}
	close(f.release)
}

func TestSessionService_CloseCancelsLoads(t *testing.T) {
	f := newGatedFetcher(testRecords())
	s := newTestService(f, 10)
	s.Create(context.Background())
	s.Create(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("sessions left after Close: %d", s.Count())
	}
	if _, _, err := s.Create(context.Background()); err == nil {
		t.Error("Create after Close should fail")
	}
}
