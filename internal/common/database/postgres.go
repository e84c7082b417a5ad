// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"filing-automation/internal/common/config"

	_ "github.com/lib/pq"
)

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens a pooled PostgreSQL connection. It does not dial; call Ping.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// Schema creates the tables used by the record and job stores.
const Schema = `
CREATE TABLE IF NOT EXISTS application_records (
	submission_id      TEXT PRIMARY KEY,
	registration_type  TEXT NOT NULL,
	status             TEXT NOT NULL,
	uploaded_documents JSONB NOT NULL DEFAULT '{}'::jsonb,
	generated_drafts   JSONB NOT NULL DEFAULT '{}'::jsonb,
	form_data          JSONB NOT NULL DEFAULT '{}'::jsonb,
	package_path       TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS automation_jobs (
	id             UUID PRIMARY KEY,
	seq            BIGSERIAL,
	order_id       TEXT NOT NULL,
	type           TEXT NOT NULL,
	current_stage  TEXT NOT NULL,
	status         TEXT NOT NULL,
	logs           JSONB NOT NULL DEFAULT '[]'::jsonb,
	failure_reason JSONB,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	completed_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_automation_jobs_order ON automation_jobs (order_id, created_at DESC, seq DESC);
`

// Migrate applies Schema.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
