// api/store/archive_store.go
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"analyticsdash/api/models"
)

// batchConn is the part of clickhouse.Conn the archive needs.
type batchConn interface {
	PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error)
}

// ArchiveStore mirrors persisted events into ClickHouse for long-range analysis.
type ArchiveStore struct {
	conn batchConn
}

func NewArchiveStore(conn batchConn) *ArchiveStore {
	return &ArchiveStore{conn: conn}
}

const archiveInsert = `
	INSERT INTO analytics_events (
		event_id, id, event_type, user_id, session_id, page_url, country,
		app_name, domain, properties, created_at
	)
`

// Append writes events in a single batch. Events must already carry their Postgres id.
func (s *ArchiveStore) Append(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, archiveInsert)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, ev := range events {
		props, err := json.Marshal(ev.Properties)
		if err != nil {
			batch.Abort()
			return fmt.Errorf("failed to encode properties for event %d: %w", ev.ID, err)
		}

		pageURL := ""
		if ev.PageURL != nil {
			pageURL = *ev.PageURL
		}

		err = batch.Append(
			uuid.New(),
			ev.ID,
			ev.EventType,
			ev.UserID,
			ev.SessionID,
			pageURL,
			ev.Country,
			ev.Properties.String(models.PropertyAppName),
			ev.Properties.String(models.PropertyDomain),
			string(props),
			ev.CreatedAt,
		)
		if err != nil {
			batch.Abort()
			return fmt.Errorf("failed to append event %d to batch: %w", ev.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}
