package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements creates the events and sessions tables with the indexes the
// aggregate queries rely on. Every statement is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id BIGSERIAL PRIMARY KEY,
		event_type TEXT NOT NULL,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		page_url TEXT,
		country TEXT NOT NULL DEFAULT 'Unknown',
		properties JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_created_at ON events (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_event_user_created ON events (user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_event_type_created ON events (event_type, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_events_app_domain ON events ((properties->>'app_name'), (properties->>'domain'))`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id BIGSERIAL PRIMARY KEY,
		session_id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		start_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		country TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_last_activity ON sessions (last_activity)`,
	`CREATE INDEX IF NOT EXISTS idx_session_user_activity ON sessions (user_id, last_activity)`,
}

// EnsureSchema applies schemaStatements in order.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
