package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"servicecalls/internal/core"
)

func TestStoreFetchReturnsCopy(t *testing.T) {
	s := New([]core.ServiceCallRecord{{ServiceCallID: 1, MainCategoryName: "A"}})
	got, err := s.FetchRecords(context.Background())
	if err != nil || len(got) != 1 {
		t.Fatalf("unexpected fetch: %v %v", got, err)
	}
	got[0].MainCategoryName = "changed"
	again, _ := s.FetchRecords(context.Background())
	if again[0].MainCategoryName != "A" {
		t.Fatalf("store shares its slice with callers")
	}

	n, err := s.ReplaceRecords(context.Background(), []core.ServiceCallRecord{{ServiceCallID: 2}, {ServiceCallID: 3}})
	if err != nil || n != 2 {
		t.Fatalf("replace: n=%d err=%v", n, err)
	}
}

func TestStoreFetchHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(nil).FetchRecords(ctx); err == nil {
		t.Fatal("expected context error")
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()

	// Missing file -> empty dataset
	s, err := NewFromFile(filepath.Join(dir, "missing.json"), time.UTC)
	if err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if got, _ := s.FetchRecords(context.Background()); len(got) != 0 {
		t.Fatalf("expected empty dataset, got %d", len(got))
	}

	path := filepath.Join(dir, "calls.json")
	content := `[{"serviceCallID":7,"entryTime":"2025-06-15 09:00:00","mainCategoryName":"Network","subCategory1Name":"VPN","statusName":"Open"}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err = NewFromFile(path, time.UTC)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, _ := s.FetchRecords(context.Background())
	if len(got) != 1 || got[0].ServiceCallID != 7 || got[0].SubCategory1Name != "VPN" {
		t.Fatalf("unexpected records: %+v", got)
	}
	if want := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC); !got[0].EntryTime.Time.Equal(want) {
		t.Errorf("entry time = %v, want %v", got[0].EntryTime.Time, want)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFromFile(bad, time.UTC); err == nil {
		t.Fatal("expected decode error")
	}
}
