package source

import (
	"context"

	"servicecalls/internal/core"
)

// Ports for inbound record adapters.
type (
	// Fetcher returns the complete service-call dataset in one call. The
	// dashboard fetches once per session; no pagination is assumed.
	Fetcher interface {
		FetchRecords(ctx context.Context) ([]core.ServiceCallRecord, error)
	}

	// Writer replaces the stored dataset. Only the SQLite repository implements it.
	Writer interface {
		ReplaceRecords(ctx context.Context, records []core.ServiceCallRecord) (int, error)
	}
)

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) ([]core.ServiceCallRecord, error)

func (f FetcherFunc) FetchRecords(ctx context.Context) ([]core.ServiceCallRecord, error) {
	return f(ctx)
}
