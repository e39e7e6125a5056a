package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"analyticsdash/api/models"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// upsertSessionQuery creates the session on its first event. Later events move
// last_activity forward and may upgrade an "Unknown" country, never the reverse.
const upsertSessionQuery = `
	INSERT INTO sessions (session_id, user_id, start_time, last_activity, country)
	VALUES ($1, $2, $3, $3, $4)
	ON CONFLICT (session_id) DO UPDATE SET
		last_activity = GREATEST(sessions.last_activity, EXCLUDED.last_activity),
		country = CASE
			WHEN sessions.country = 'Unknown' AND EXCLUDED.country <> 'Unknown' THEN EXCLUDED.country
			ELSE sessions.country
		END
`

// touch applies ev to its session inside the caller's transaction.
func (s *SessionStore) touch(ctx context.Context, tx *sql.Tx, ev *models.Event) error {
	if _, err := tx.ExecContext(ctx, upsertSessionQuery, ev.SessionID, ev.UserID, ev.CreatedAt, ev.Country); err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", ev.SessionID, err)
	}
	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `
		SELECT session_id, user_id, start_time, last_activity, COALESCE(country, '')
		FROM sessions
		WHERE session_id = $1
	`
	var sess models.Session
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&sess.SessionID,
		&sess.UserID,
		&sess.StartTime,
		&sess.LastActivity,
		&sess.Country,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return &sess, nil
}

// CountActiveUsers counts distinct users with a session active at or after since.
func (s *SessionStore) CountActiveUsers(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM sessions WHERE last_activity >= $1`, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active users: %w", err)
	}
	return n, nil
}

// UsersByCountry groups sessions active since the given time by country. Empty and NULL
// countries are folded into "Unknown".
func (s *SessionStore) UsersByCountry(ctx context.Context, since time.Time) ([]models.CountryCount, error) {
	query := `
		SELECT COALESCE(NULLIF(country, ''), 'Unknown') AS country_name, COUNT(DISTINCT user_id) AS users
		FROM sessions
		WHERE last_activity >= $1
		GROUP BY country_name
		ORDER BY users DESC, country_name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query users by country: %w", err)
	}
	defer rows.Close()

	var results []models.CountryCount
	for rows.Next() {
		var cc models.CountryCount
		if err := rows.Scan(&cc.Country, &cc.Users); err != nil {
			return nil, fmt.Errorf("failed to scan users by country: %w", err)
		}
		results = append(results, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for users by country: %w", err)
	}

	return results, nil
}
