package store

import (
	"fmt"
	"strings"
	"time"

	"analyticsdash/api/models"
)

// EventFilter is a conjunction of predicates over the events table. Zero values are
// left out of the WHERE clause.
type EventFilter struct {
	Start time.Time
	End   time.Time
	// EndExclusive makes End an open bound (created_at < End).
	EndExclusive bool
	EventType    string
	AppName      string
	Domain       string
}

// Scope keeps only the property predicates.
func (f EventFilter) Scope() EventFilter {
	return EventFilter{AppName: f.AppName, Domain: f.Domain}
}

// WithRange returns a copy bounded to the closed range [start, end].
func (f EventFilter) WithRange(start, end time.Time) EventFilter {
	f.Start, f.End, f.EndExclusive = start, end, false
	return f
}

// WithEventType returns a copy restricted to one event type.
func (f EventFilter) WithEventType(eventType string) EventFilter {
	f.EventType = eventType
	return f
}

// queryArgs numbers positional parameters for lib/pq.
type queryArgs struct {
	values []interface{}
}

func (a *queryArgs) add(v interface{}) string {
	a.values = append(a.values, v)
	return fmt.Sprintf("$%d", len(a.values))
}

// where renders the filter as a SQL boolean expression, appending its parameters to args.
func (f EventFilter) where(args *queryArgs) string {
	var conds []string

	if !f.Start.IsZero() {
		conds = append(conds, "created_at >= "+args.add(f.Start))
	}
	if !f.End.IsZero() {
		op := "<="
		if f.EndExclusive {
			op = "<"
		}
		conds = append(conds, fmt.Sprintf("created_at %s %s", op, args.add(f.End)))
	}
	if f.EventType != "" {
		conds = append(conds, "event_type = "+args.add(f.EventType))
	}
	if f.AppName != "" {
		conds = append(conds, fmt.Sprintf("properties->>'%s' = %s", models.PropertyAppName, args.add(f.AppName)))
	}
	if f.Domain != "" {
		conds = append(conds, fmt.Sprintf("properties->>'%s' = %s", models.PropertyDomain, args.add(f.Domain)))
	}

	if len(conds) == 0 {
		return "TRUE"
	}
	return strings.Join(conds, " AND ")
}
