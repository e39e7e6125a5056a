// api/models/event.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// UnknownCountry is stored when the client does not report a country.
	UnknownCountry = "Unknown"

	EventTypeConversion = "conversion"

	PropertyAppName = "app_name"
	PropertyDomain  = "domain"
)

// Properties is the free-form property bag attached to every event. It round-trips
// through a JSONB column and is never NULL.
type Properties map[string]interface{}

// Value implements driver.Valuer.
func (p Properties) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner.
func (p *Properties) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = Properties{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported properties type %T", src)
	}

	out := Properties{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to decode properties: %w", err)
	}
	*p = out
	return nil
}

// String returns the value stored under key when it is a string.
func (p Properties) String(key string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return ""
}

// Event is one tracked client action.
type Event struct {
	ID         int64      `json:"id"`
	EventType  string     `json:"event_type"`
	UserID     string     `json:"user_id"`
	SessionID  string     `json:"session_id"`
	PageURL    *string    `json:"page_url"`
	Country    string     `json:"country"`
	Properties Properties `json:"properties"`
	CreatedAt  time.Time  `json:"created_at"`
}

// EventCreateRequest is the body of POST /api/events.
type EventCreateRequest struct {
	EventType  string     `json:"event_type" binding:"required"`
	UserID     string     `json:"user_id" binding:"required"`
	SessionID  string     `json:"session_id" binding:"required"`
	PageURL    *string    `json:"page_url"`
	Country    string     `json:"country"`
	Properties Properties `json:"properties"`
}

// Session is one continuous visit, keyed by the client-generated session id.
type Session struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	StartTime    time.Time `json:"start_time"`
	LastActivity time.Time `json:"last_activity"`
	Country      string    `json:"country"`
}
