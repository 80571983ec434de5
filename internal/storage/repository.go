package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"servicecalls/internal/core"
	applog "servicecalls/internal/log"
	"servicecalls/internal/source"

	_ "modernc.org/sqlite"
)

var (
	_ source.Fetcher = (*SQLiteRepository)(nil)
	_ source.Writer  = (*SQLiteRepository)(nil)
)

// ImportInfo describes the last dataset replacement.
type ImportInfo struct {
	Source      string
	RecordCount int
	ImportedAt  time.Time
}

// SQLiteRepository stores the dataset locally so the dashboard can run
// without reaching the upstream API.
type SQLiteRepository struct {
	db       *sql.DB
	location *time.Location
	logger   *applog.Logger
}

func NewSQLiteRepository(dbPath string, loc *time.Location) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	logger := applog.Default(applog.ComponentStorage)
	logger.Debug("SQLite schema ready", "path", dbPath, "schema_version", version)
	return &SQLiteRepository{
		db:       db,
		location: loc,
		logger:   logger,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// FetchRecords returns the stored dataset ordered by service call ID.
func (r *SQLiteRepository) FetchRecords(ctx context.Context) ([]core.ServiceCallRecord, error) {
	rows, err := r.db.QueryContext(ctx, source.SelectRecordsSQL("service_calls"))
	if err != nil {
		return nil, fmt.Errorf("query service calls: %w", err)
	}
	defer rows.Close()

	records := []core.ServiceCallRecord{}
	for rows.Next() {
		rec, err := source.ScanRecord(rows, r.location)
		if err != nil {
			return nil, fmt.Errorf("scan service call: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service calls: %w", err)
	}
	return records, nil
}

// ReplaceRecords swaps the whole dataset in one transaction. Duplicate IDs
// keep the last occurrence.
func (r *SQLiteRepository) ReplaceRecords(ctx context.Context, records []core.ServiceCallRecord) (int, error) {
	return r.replace(ctx, "unknown", records)
}

// Import is ReplaceRecords plus a row in the import log naming where the
// dataset came from.
func (r *SQLiteRepository) Import(ctx context.Context, from string, records []core.ServiceCallRecord) (int, error) {
	return r.replace(ctx, from, records)
}

func (r *SQLiteRepository) replace(ctx context.Context, from string, records []core.ServiceCallRecord) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM service_calls"); err != nil {
		return 0, fmt.Errorf("clear service calls: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(source.RecordColumns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT OR REPLACE INTO service_calls (%s) VALUES (%s)",
		strings.Join(source.RecordColumns, ", "), placeholders))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, source.RecordArgs(rec)...); err != nil {
			return 0, fmt.Errorf("insert service call %d: %w", rec.ServiceCallID, err)
		}
	}

	var stored int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM service_calls").Scan(&stored); err != nil {
		return 0, fmt.Errorf("count service calls: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO imports (source, record_count, imported_at) VALUES (?, ?, ?)",
		from, stored, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return 0, fmt.Errorf("record import: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	r.logger.InfoContext(ctx, "Service calls replaced",
		applog.FieldOperation, applog.OpImport,
		applog.FieldRecordCount, stored,
		"source", from)
	return stored, nil
}

// Count returns the number of stored records.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM service_calls").Scan(&n); err != nil {
		return 0, fmt.Errorf("count service calls: %w", err)
	}
	return n, nil
}

// LastImport returns the most recent import, or ok=false if none happened.
func (r *SQLiteRepository) LastImport(ctx context.Context) (ImportInfo, bool, error) {
	var (
		info ImportInfo
		at   string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT source, record_count, imported_at FROM imports ORDER BY id DESC LIMIT 1").
		Scan(&info.Source, &info.RecordCount, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return ImportInfo{}, false, nil
	}
	if err != nil {
		return ImportInfo{}, false, fmt.Errorf("read last import: %w", err)
	}
	info.ImportedAt, err = time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return ImportInfo{}, false, fmt.Errorf("parse import time: %w", err)
	}
	return info, true, nil
}
