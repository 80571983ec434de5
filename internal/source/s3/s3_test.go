package s3

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"
)

// objectTransport serves path-style GETs from an in-memory bucket.
type objectTransport struct {
	objects map[string]string
	paths   []string
}

func (m *objectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.paths = append(m.paths, req.URL.Path)
	body, ok := m.objects[strings.TrimPrefix(req.URL.Path, "/")]
	if req.Method != http.MethodGet || !ok {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Header:     http.Header{"Content-Type": {"application/xml"}},
			Body:       io.NopCloser(strings.NewReader(`<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)),
			Request:    req,
		}, nil
	}
	return &http.Response{
		StatusCode:    http.StatusOK,
		Header:        http.Header{"Content-Type": {"application/json"}, "Content-Length": {strconv.Itoa(len(body))}},
		Body:          io.NopCloser(bytes.NewReader([]byte(body))),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}

func newTestSource(t *testing.T, rt *objectTransport, key string) *Source {
	t.Helper()
	s, err := New(context.Background(), Config{
		Bucket:          "exports",
		Key:             key,
		Region:          "us-east-1",
		Endpoint:        "https://mock.s3.local",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		HTTPClient:      &http.Client{Transport: rt},
		Location:        time.UTC,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestFetchRecords(t *testing.T) {
	rt := &objectTransport{objects: map[string]string{
		"exports/calls.json": `[{"serviceCallID":5,"entryTime":"2025-06-01T09:00:00","mainCategoryName":"Network"}]`,
	}}
	s := newTestSource(t, rt, "calls.json")

	records, err := s.FetchRecords(context.Background())
	if err != nil {
		t.Fatalf("FetchRecords: %v", err)
	}
	if len(records) != 1 || records[0].ServiceCallID != 5 || records[0].MainCategoryName != "Network" {
		t.Fatalf("unexpected records: %+v", records)
	}
	if want := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC); !records[0].EntryTime.Time.Equal(want) {
		t.Errorf("entry time = %v, want %v", records[0].EntryTime.Time, want)
	}
	if len(rt.paths) == 0 || rt.paths[0] != "/exports/calls.json" {
		t.Errorf("requested paths = %v", rt.paths)
	}
}

func TestFetchRecords_MissingObject(t *testing.T) {
	rt := &objectTransport{objects: map[string]string{}}
	s := newTestSource(t, rt, "missing.json")
	_, err := s.FetchRecords(context.Background())
	if err == nil || !strings.Contains(err.Error(), "s3://exports/missing.json") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_RequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error without bucket")
	}
}
