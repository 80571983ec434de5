package backend

import (
	"context"
	"fmt"

	applog "servicecalls/internal/log"
	gsource "servicecalls/internal/source/google"
	"servicecalls/internal/source/memory"
	"servicecalls/internal/source/postgres"
	"servicecalls/internal/source/remote"
	s3source "servicecalls/internal/source/s3"
	"servicecalls/internal/storage"
)

type DefaultFactory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.Default(applog.ComponentBackend)
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend builds the record source selected by config.Type. ctx bounds
// any background work the source starts, such as file watching.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Type {
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	case RemoteBackend:
		return f.createRemoteBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case PostgresBackend:
		return f.createPostgresBackend(ctx, config)
	case S3Backend:
		return f.createS3Backend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := memory.NewFromFile(config.RecordsFile, config.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to load records file: %w", err)
	}
	if config.RecordsWatch {
		if err := store.Watch(ctx, config.RecordsFile, config.Location, f.logger.WithComponent(applog.ComponentSource)); err != nil {
			f.logger.Warn("Records file watch disabled", applog.FieldError, err.Error())
		}
	}
	f.logger.Info("Initialized memory backend",
		applog.FieldBackend, MemoryBackend.String(),
		"records_file", config.RecordsFile,
		"watch", config.RecordsWatch)
	return &BackendResult{Fetcher: store}, nil
}

func (f *DefaultFactory) createRemoteBackend(config Config) (*BackendResult, error) {
	client, err := remote.New(config.RemoteAPIBaseURL, config.FetchTimeout, config.Location,
		remote.WithLogger(f.logger.WithComponent(applog.ComponentSource)))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize remote client: %w", err)
	}
	f.logger.Info("Initialized remote backend",
		applog.FieldBackend, RemoteBackend.String(),
		"base_url", config.RemoteAPIBaseURL)
	return &BackendResult{Fetcher: client}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, config.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend",
		applog.FieldBackend, SQLiteBackend.String(),
		"db_path", config.SQLiteDBPath)
	return &BackendResult{Fetcher: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	client, err := gsource.New(ctx, gsource.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
		Location:        config.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets backend",
		applog.FieldBackend, SheetsBackend.String(),
		"sheet", config.GoogleSheetName)
	return &BackendResult{Fetcher: client}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	src, err := postgres.Open(ctx, config.PostgresDSN, config.PostgresTable, config.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres source: %w", err)
	}
	f.logger.Info("Initialized Postgres backend",
		applog.FieldBackend, PostgresBackend.String(),
		"table", config.PostgresTable)
	return &BackendResult{Fetcher: src, Cleanup: src.Close}, nil
}

func (f *DefaultFactory) createS3Backend(ctx context.Context, config Config) (*BackendResult, error) {
	src, err := s3source.New(ctx, s3source.Config{
		Bucket:    config.S3Bucket,
		Key:       config.S3Key,
		Region:    config.AWSRegion,
		Endpoint:  config.S3Endpoint,
		PathStyle: config.S3PathStyle,
		Location:  config.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 source: %w", err)
	}
	f.logger.Info("Initialized S3 backend",
		applog.FieldBackend, S3Backend.String(),
		"bucket", config.S3Bucket,
		"key", config.S3Key)
	return &BackendResult{Fetcher: src}, nil
}
