package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	applog "servicecalls/internal/log"
)

func TestFetchRecords(t *testing.T) {
	var gotPath, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"serviceCallID": 10, "entryTime": "2025-06-15T10:00:00Z", "mainCategoryName": "Network", "subCategory1Name": "VPN", "statusName": "Open"},
			{"serviceCallID": 11, "entryTime": null, "mainCategoryName": null}
		]`))
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/", time.Second, time.UTC, WithLogger(applog.Discard()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	records, err := c.FetchRecords(context.Background())
	if err != nil {
		t.Fatalf("FetchRecords: %v", err)
	}
	if gotPath != DashboardPath {
		t.Errorf("path = %q, want %q", gotPath, DashboardPath)
	}
	if gotAccept != "application/json" {
		t.Errorf("accept = %q", gotAccept)
	}
	if len(records) != 2 || records[0].ServiceCallID != 10 || records[0].SubCategory1Name != "VPN" {
		t.Fatalf("unexpected records: %+v", records)
	}
	if records[1].EntryTime.Valid || records[1].MainCategoryName != "" {
		t.Errorf("nulls should decode to zero values: %+v", records[1])
	}
}

func TestFetchRecords_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := New(srv.URL, time.Second, time.UTC, WithLogger(applog.Discard()))
	_, err := c.FetchRecords(context.Background())
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want StatusError", err)
	}
	if se.StatusCode != http.StatusBadGateway || se.Body != "upstream down" {
		t.Errorf("unexpected status error: %+v", se)
	}
}

func TestFetchRecords_BadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items": []}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL, time.Second, time.UTC, WithLogger(applog.Discard()))
	if _, err := c.FetchRecords(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestFetchRecords_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c, _ := New(srv.URL, 5*time.Second, time.UTC, WithLogger(applog.Discard()))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.FetchRecords(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New("  ", time.Second, nil); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}
