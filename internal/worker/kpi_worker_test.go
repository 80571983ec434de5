package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"servicecalls/internal/amqp"
	"servicecalls/internal/core"
	applog "servicecalls/internal/log"
	"servicecalls/internal/source"
)

var testNow = time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)

type fakePublisher struct {
	mu     sync.Mutex
	msgs   []*amqp.KPISnapshotMessage
	failOn string
}

func (p *fakePublisher) PublishKPISnapshot(ctx context.Context, msg *amqp.KPISnapshotMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if msg.Focus == p.failOn {
		return errors.New("broker unavailable")
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

func records() []core.ServiceCallRecord {
	today := core.NewEntryTime(testNow.Add(-time.Hour))
	lastYear := core.NewEntryTime(testNow.AddDate(-1, 0, 0))
	return []core.ServiceCallRecord{
		{ServiceCallID: 1, EntryTime: today, MainCategoryName: "Hardware", SubCategory1Name: "Printer", StatusName: "Open"},
		{ServiceCallID: 2, EntryTime: lastYear, MainCategoryName: "Hardware", SubCategory1Name: "Laptop", StatusName: "Closed"},
		{ServiceCallID: 3, EntryTime: today, MainCategoryName: "Network", SubCategory1Name: "VPN", StatusName: "Open"},
	}
}

func newWorker(f source.Fetcher, p Publisher, focuses []Focus) *KPIWorker {
	return NewKPIWorker(f, p, focuses, KPIOptions{
		Location: time.UTC,
		Clock:    func() time.Time { return testNow },
		Logger:   applog.Discard(),
	})
}

func static(rs []core.ServiceCallRecord, err error) source.Fetcher {
	return source.FetcherFunc(func(context.Context) ([]core.ServiceCallRecord, error) { return rs, err })
}

func TestKPIWorker_RunOnce(t *testing.T) {
	pub := &fakePublisher{}
	w := newWorker(static(records(), nil), pub, []Focus{
		{Name: "all"},
		{Name: "hardware", MainCategories: []string{"Hardware"}, SubCategories: []string{"Printer", "VPN"}},
	})

	n, err := w.RunOnce(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("RunOnce = %d, %v", n, err)
	}

	all := pub.msgs[0]
	if all.KPI.Total != 3 || all.KPI.Today != 2 || all.KPI.Month != 2 {
		t.Errorf("all KPI = %+v", all.KPI)
	}
	if all.RecordCount != 3 || !all.ComputedAt.Equal(testNow) {
		t.Errorf("all message = %+v", all)
	}

	hw := pub.msgs[1]
	if !reflect.DeepEqual(hw.SubCategories, []string{"Printer"}) {
		t.Errorf("sub selection should be reconciled, got %v", hw.SubCategories)
	}
	if hw.KPI.Total != 1 || hw.KPI.Today != 1 {
		t.Errorf("hardware KPI = %+v", hw.KPI)
	}
	if len(hw.StatusSummary) != 1 || hw.StatusSummary[0].Status != "Open" {
		t.Errorf("hardware status = %+v", hw.StatusSummary)
	}
}

func TestKPIWorker_PublishFailureContinues(t *testing.T) {
	pub := &fakePublisher{failOn: "a"}
	w := newWorker(static(records(), nil), pub, []Focus{{Name: "a"}, {Name: "b"}})

	n, err := w.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected an error for focus a")
	}
	if n != 1 || pub.count() != 1 || pub.msgs[0].Focus != "b" {
		t.Errorf("published %d, msgs %d", n, pub.count())
	}
}

func TestKPIWorker_FetchFailure(t *testing.T) {
	pub := &fakePublisher{}
	w := newWorker(static(nil, errors.New("upstream down")), pub, []Focus{{Name: "a"}})
	if _, err := w.RunOnce(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
	if pub.count() != 0 {
		t.Error("nothing should be published without data")
	}
}

func TestKPIWorker_RunStopsOnCancel(t *testing.T) {
	pub := &fakePublisher{}
	w := newWorker(static(records(), nil), pub, []Focus{{Name: "a"}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, 10*time.Millisecond) }()

	deadline := time.Now().Add(2 * time.Second)
	for pub.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v", err)
	}
	if pub.count() < 2 {
		t.Errorf("expected the immediate cycle plus at least one tick, got %d", pub.count())
	}
}

func TestLoadFocuses(t *testing.T) {
	focuses, err := LoadFocuses("", []string{"Hardware"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(focuses) != 1 || focuses[0].Name != DefaultFocusName || focuses[0].MainCategories[0] != "Hardware" {
		t.Errorf("default focus = %+v", focuses)
	}

	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	good := write("good.yaml", `
focuses:
  - name: hardware
    main_categories: [Hardware]
  - name: " printers "
    main_categories: [Hardware]
    sub_categories: [Printer, Scanner]
`)
	focuses, err = LoadFocuses(good, []string{"ignored"}, nil)
	if err != nil {
		t.Fatalf("LoadFocuses: %v", err)
	}
	want := []Focus{
		{Name: "hardware", MainCategories: []string{"Hardware"}},
		{Name: "printers", MainCategories: []string{"Hardware"}, SubCategories: []string{"Printer", "Scanner"}},
	}
	if !reflect.DeepEqual(focuses, want) {
		t.Errorf("focuses = %+v, want %+v", focuses, want)
	}

	bad := []struct {
		name string
		body string
	}{
		{"empty.yaml", "focuses: []\n"},
		{"noname.yaml", "focuses:\n  - main_categories: [A]\n"},
		{"dup.yaml", "focuses:\n  - name: a\n  - name: a\n"},
		{"broken.yaml", "focuses: [\n"},
	}
	for _, tt := range bad {
		if _, err := LoadFocuses(write(tt.name, tt.body), nil, nil); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
	if _, err := LoadFocuses(filepath.Join(dir, "missing.yaml"), nil, nil); err == nil {
		t.Error("missing file: expected error")
	}
}
