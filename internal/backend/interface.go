package backend

import (
	"context"
	"time"

	"servicecalls/internal/source"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult is the record source plus its optional cleanup.
type BackendResult struct {
	Fetcher source.Fetcher
	Cleanup CleanupFunc
}

// Close runs Cleanup if there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates record sources from configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds everything needed to build any of the record sources.
type Config struct {
	Type         BackendType
	Location     *time.Location
	FetchTimeout time.Duration

	// memory
	RecordsFile  string
	RecordsWatch bool

	// remote
	RemoteAPIBaseURL string

	// sqlite
	SQLiteDBPath string

	// sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// postgres
	PostgresDSN   string
	PostgresTable string

	// s3
	S3Bucket    string
	S3Key       string
	S3Endpoint  string
	S3PathStyle bool
	AWSRegion   string
}

type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	RemoteBackend   BackendType = "remote"
	SheetsBackend   BackendType = "sheets"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	S3Backend       BackendType = "s3"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, RemoteBackend, SheetsBackend, SQLiteBackend, PostgresBackend, S3Backend:
		return true
	default:
		return false
	}
}
