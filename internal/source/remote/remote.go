// Package remote reads the dataset from the service-calls HTTP API.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"servicecalls/internal/core"
	applog "servicecalls/internal/log"
	"servicecalls/internal/source"
)

// DashboardPath is the endpoint returning every service call as a flat array.
const DashboardPath = "/api/ServiceCallsDashboard"

var _ source.Fetcher = (*Client)(nil)

// StatusError reports a non-2xx answer from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("service calls API returned %d", e.StatusCode)
	}
	return fmt.Sprintf("service calls API returned %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL  string
	http     *http.Client
	location *time.Location
	logger   *applog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(l *applog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New builds a client for baseURL. Entry times without a zone are read in loc.
func New(baseURL string, timeout time.Duration, loc *time.Location, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("missing remote API base URL")
	}
	if loc == nil {
		loc = time.Local
	}
	c := &Client{
		baseURL:  baseURL,
		http:     newHTTPClientWithPooling(timeout),
		location: loc,
		logger:   applog.Default(applog.ComponentSource),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchRecords performs a single GET; there is no paging and no retry.
func (c *Client) FetchRecords(ctx context.Context) ([]core.ServiceCallRecord, error) {
	url := c.baseURL + DashboardPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	records, err := source.DecodeRecords(resp.Body, c.location)
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "Fetched service calls",
		applog.FieldOperation, applog.OpFetch,
		applog.FieldRecordCount, len(records),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return records, nil
}

func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}
