package memory

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"servicecalls/internal/core"
	"servicecalls/internal/source"
)

var _ source.Fetcher = (*Store)(nil)

// Store serves a fixed dataset held in memory.
type Store struct {
	mu      sync.Mutex
	records []core.ServiceCallRecord
}

func New(records []core.ServiceCallRecord) *Store {
	return &Store{records: append([]core.ServiceCallRecord(nil), records...)}
}

// NewFromFile loads a JSON export, the same flat array the remote endpoint
// returns. A missing file yields an empty store.
func NewFromFile(path string, loc *time.Location) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(nil), nil
		}
		return nil, fmt.Errorf("open records file: %w", err)
	}
	defer f.Close()

	records, err := source.DecodeRecords(f, loc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return New(records), nil
}

// FetchRecords returns a copy of the dataset.
func (s *Store) FetchRecords(ctx context.Context) ([]core.ServiceCallRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ServiceCallRecord{}, s.records...), nil
}

// ReplaceRecords swaps the dataset, e.g. after an import.
func (s *Store) ReplaceRecords(_ context.Context, records []core.ServiceCallRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]core.ServiceCallRecord(nil), records...)
	return len(s.records), nil
}
