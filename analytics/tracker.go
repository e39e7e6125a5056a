package analytics

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"analyticsdash/api/metrics"
	"analyticsdash/api/models"
	"analyticsdash/api/utils"
)

// EventWriter persists an event together with its session update.
type EventWriter interface {
	Record(ctx context.Context, ev *models.Event) error
}

// CounterIncrementer bumps the realtime tallies for an event.
type CounterIncrementer interface {
	Increment(ctx context.Context, at time.Time, country string) error
}

// Archiver mirrors events into a secondary store.
type Archiver interface {
	Append(ctx context.Context, events []models.Event) error
}

// Tracker is the ingestion path: durable write first, then best-effort side effects.
type Tracker struct {
	events   EventWriter
	counters CounterIncrementer
	archive  Archiver
	metrics  *metrics.Metrics
	log      *logrus.Logger
}

// NewTracker wires the ingestion path. archive may be nil when no archive is configured.
func NewTracker(events EventWriter, counters CounterIncrementer, archive Archiver, m *metrics.Metrics, logger *logrus.Logger) *Tracker {
	return &Tracker{events: events, counters: counters, archive: archive, metrics: m, log: logger}
}

// Track validates req, records the event and its session, then updates the realtime
// counters and the archive. Only the durable write can fail the call.
func (t *Tracker) Track(ctx context.Context, req models.EventCreateRequest) (*models.Event, error) {
	if strings.TrimSpace(req.EventType) == "" || strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.SessionID) == "" {
		return nil, utils.NewValidationError("event_type, user_id and session_id are required")
	}

	country := strings.TrimSpace(req.Country)
	if country == "" {
		country = models.UnknownCountry
	}
	props := req.Properties
	if props == nil {
		props = models.Properties{}
	}

	ev := &models.Event{
		EventType:  req.EventType,
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		PageURL:    req.PageURL,
		Country:    country,
		Properties: props,
	}

	if err := t.events.Record(ctx, ev); err != nil {
		return nil, utils.NewStorageError("record event", err)
	}
	t.metrics.EventsIngestedTotal.WithLabelValues(ev.EventType).Inc()

	entry := t.log.WithFields(logrus.Fields{
		"event_id":   ev.ID,
		"event_type": ev.EventType,
		"session_id": ev.SessionID,
	})

	if err := t.counters.Increment(ctx, ev.CreatedAt, ev.Country); err != nil {
		t.metrics.CounterErrorsTotal.Inc()
		entry.WithError(err).Warn("Realtime counter update failed")
	}

	if t.archive != nil {
		if err := t.archive.Append(ctx, []models.Event{*ev}); err != nil {
			t.metrics.ArchiveErrorsTotal.Inc()
			entry.WithError(err).Warn("Event archive write failed")
		}
	}

	entry.Debug("Event tracked")
	return ev, nil
}
