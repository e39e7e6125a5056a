// api/store/event_store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"analyticsdash/api/models"
)

// EventStore is the durable, append-only event log in Postgres.
type EventStore struct {
	db       *sql.DB
	sessions *SessionStore
}

func NewEventStore(db *sql.DB, sessions *SessionStore) *EventStore {
	return &EventStore{db: db, sessions: sessions}
}

// Record inserts ev and upserts its session in one transaction. ID and CreatedAt are
// filled in from the database.
func (s *EventStore) Record(ctx context.Context, ev *models.Event) error {
	if ev.Properties == nil {
		ev.Properties = models.Properties{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO events (event_type, user_id, session_id, page_url, country, properties)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err = tx.QueryRowContext(ctx, query,
		ev.EventType,
		ev.UserID,
		ev.SessionID,
		ev.PageURL,
		ev.Country,
		ev.Properties,
	).Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	if err := s.sessions.touch(ctx, tx, ev); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event: %w", err)
	}
	return nil
}

// CountEvents counts events matching f.
func (s *EventStore) CountEvents(ctx context.Context, f EventFilter) (int64, error) {
	args := &queryArgs{}
	query := "SELECT COUNT(*) FROM events WHERE " + f.where(args)

	var n int64
	if err := s.db.QueryRowContext(ctx, query, args.values...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// CountDistinctUsers counts distinct user_id values among events matching f.
func (s *EventStore) CountDistinctUsers(ctx context.Context, f EventFilter) (int64, error) {
	args := &queryArgs{}
	query := "SELECT COUNT(DISTINCT user_id) FROM events WHERE " + f.where(args)

	var n int64
	if err := s.db.QueryRowContext(ctx, query, args.values...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count distinct users: %w", err)
	}
	return n, nil
}

// CountNewUsers counts distinct users matching f whose earliest event in f's app/domain
// scope, at any time, is on or after f.Start.
func (s *EventStore) CountNewUsers(ctx context.Context, f EventFilter) (int64, error) {
	if f.Start.IsZero() {
		return 0, errors.New("new user count requires a window start")
	}

	args := &queryArgs{}
	window := f.where(args)
	scope := f.Scope().where(args)
	firstSeen := args.add(f.Start)

	query := fmt.Sprintf(`
		SELECT COUNT(DISTINCT user_id)
		FROM events
		WHERE %s
		AND user_id IN (
			SELECT user_id
			FROM events
			WHERE %s
			GROUP BY user_id
			HAVING MIN(created_at) >= %s
		)
	`, window, scope, firstSeen)

	var n int64
	if err := s.db.QueryRowContext(ctx, query, args.values...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count new users: %w", err)
	}
	return n, nil
}

// ListApps groups every event by (app_name, domain), defaulting missing values to
// "legacy" and "unknown".
func (s *EventStore) ListApps(ctx context.Context) ([]models.AppInfo, error) {
	query := `
		SELECT
			COALESCE(properties->>'app_name', 'legacy') AS app_name,
			COALESCE(properties->>'domain', 'unknown') AS domain,
			COUNT(*) AS event_count,
			COUNT(DISTINCT user_id) AS user_count,
			MIN(created_at) AS first_seen,
			MAX(created_at) AS last_seen
		FROM events
		GROUP BY 1, 2
		ORDER BY last_seen DESC, app_name ASC, domain ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query apps: %w", err)
	}
	defer rows.Close()

	apps := []models.AppInfo{}
	for rows.Next() {
		var app models.AppInfo
		if err := rows.Scan(&app.AppName, &app.Domain, &app.EventCount, &app.UserCount, &app.FirstSeen, &app.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan app row: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for apps: %w", err)
	}

	return apps, nil
}
