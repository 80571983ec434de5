// Package postgres reads service calls from a Postgres table. The table is
// owned by the ticketing system; this package never writes to it.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"servicecalls/internal/core"
	"servicecalls/internal/source"
)

const (
	defaultDriver = "pgx"
	DefaultTable  = "service_calls"
)

var (
	sqlOpen    = sql.Open
	identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)
)

var _ source.Fetcher = (*Source)(nil)

type Source struct {
	db       *sql.DB
	query    string
	location *time.Location
}

// Open connects with dsn and checks the connection. table may be
// schema-qualified.
func Open(ctx context.Context, dsn, table string, loc *time.Location) (*Source, error) {
	if dsn == "" {
		return nil, fmt.Errorf("missing POSTGRES_DSN")
	}
	if table == "" {
		table = DefaultTable
	}
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	db, err := sqlOpen(defaultDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Source{db: db, query: source.SelectRecordsSQL(table), location: loc}, nil
}

func (s *Source) FetchRecords(ctx context.Context) ([]core.ServiceCallRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("query service calls: %w", err)
	}
	defer rows.Close()

	records := []core.ServiceCallRecord{}
	for rows.Next() {
		r, err := source.ScanRecord(rows, s.location)
		if err != nil {
			return nil, fmt.Errorf("scan service call: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service calls: %w", err)
	}
	return records, nil
}

func (s *Source) Close() error {
	return s.db.Close()
}
