package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Open connects to Postgres, sizes the pool and makes sure the schema exists.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	sqldb.SetMaxOpenConns(20)
	sqldb.SetMaxIdleConns(10)

	if err := CreateTables(ctx, sqldb); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return sqldb, nil
}

// CreateTables is idempotent.
func CreateTables(ctx context.Context, sqldb *sql.DB) error {
	createAdminsTable := `
	CREATE TABLE IF NOT EXISTS admins (
		id BIGSERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL
	);`
	if _, err := sqldb.ExecContext(ctx, createAdminsTable); err != nil {
		return fmt.Errorf("could not create admins table: %w", err)
	}

	// Dates are stored as YYYY-MM-DD text so that openness checks stay plain string comparisons.
	createEventsTable := `
	CREATE TABLE IF NOT EXISTS events (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		category VARCHAR(255) NOT NULL DEFAULT '',
		registration_start CHAR(10) NOT NULL,
		registration_end CHAR(10) NOT NULL,
		event_date CHAR(10) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	if _, err := sqldb.ExecContext(ctx, createEventsTable); err != nil {
		return fmt.Errorf("could not create events table: %w", err)
	}

	// event_date is copied from the event so (email, event_date) can be a real unique key;
	// two concurrent submissions cannot both pass the duplicate check.
	createRegistrationsTable := `
	CREATE TABLE IF NOT EXISTS registrations (
		id UUID PRIMARY KEY,
		full_name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		college_name VARCHAR(255) NOT NULL,
		department VARCHAR(255) NOT NULL,
		event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		event_date CHAR(10) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT date_trunc('second', now()),
		UNIQUE (email, event_date)
	);`
	if _, err := sqldb.ExecContext(ctx, createRegistrationsTable); err != nil {
		return fmt.Errorf("could not create registrations table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_registrations_event_id ON registrations(event_id);`,
		`CREATE INDEX IF NOT EXISTS idx_registrations_created_at ON registrations(created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_events_event_date ON events(event_date);`,
	}
	for _, stmt := range indexes {
		if _, err := sqldb.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("could not create index: %w", err)
		}
	}
	return nil
}
