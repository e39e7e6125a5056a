// Package analytics computes the dashboard's summary, realtime and app directory views
// and runs the event ingestion path.
package analytics

import (
	"context"
	"sort"
	"time"

	"analyticsdash/api/models"
	"analyticsdash/api/store"
	"analyticsdash/api/utils"
)

const (
	defaultSummaryDays = 7
	maxSummaryDays     = 366
	realtimeMinutes    = 30
	topCountries       = 10
	day                = 24 * time.Hour
)

// EventReader is the read side of the event store.
type EventReader interface {
	CountEvents(ctx context.Context, f store.EventFilter) (int64, error)
	CountDistinctUsers(ctx context.Context, f store.EventFilter) (int64, error)
	CountNewUsers(ctx context.Context, f store.EventFilter) (int64, error)
	ListApps(ctx context.Context) ([]models.AppInfo, error)
}

// SessionReader is the read side of the session tracker.
type SessionReader interface {
	CountActiveUsers(ctx context.Context, since time.Time) (int64, error)
	UsersByCountry(ctx context.Context, since time.Time) ([]models.CountryCount, error)
}

// SummaryQuery carries the raw dashboard parameters. Empty strings mean "not given".
type SummaryQuery struct {
	StartDate string
	EndDate   string
	AppName   string
	Domain    string
}

type RealtimeQuery struct {
	AppName string
	Domain  string
}

type Aggregator struct {
	events   EventReader
	sessions SessionReader
	now      func() time.Time
}

func NewAggregator(events EventReader, sessions SessionReader) *Aggregator {
	return &Aggregator{events: events, sessions: sessions, now: time.Now}
}

// periodMetrics are the headline numbers for one window.
type periodMetrics struct {
	users       int64
	events      int64
	conversions int64
	newUsers    int64
}

// Summary computes headline metrics for the requested window, their change against the
// preceding window of equal whole-day length, and a per-day distinct user trend.
func (a *Aggregator) Summary(ctx context.Context, q SummaryQuery) (*models.Summary, error) {
	end := a.now().UTC()
	if q.EndDate != "" {
		t, err := utils.ParseTimestamp(q.EndDate)
		if err != nil {
			return nil, err
		}
		end = t
	}

	start := end.AddDate(0, 0, -defaultSummaryDays)
	if q.StartDate != "" {
		t, err := utils.ParseTimestamp(q.StartDate)
		if err != nil {
			return nil, err
		}
		start = t
	}

	days := utils.WholeDays(end.Sub(start))
	if days > maxSummaryDays {
		return nil, utils.NewValidationError("Date range too large: at most %d days per summary", maxSummaryDays)
	}
	periodLength := time.Duration(days) * day
	prevStart := start.Add(-periodLength)

	scope := store.EventFilter{AppName: q.AppName, Domain: q.Domain}

	current, err := a.periodMetrics(ctx, scope.WithRange(start, end))
	if err != nil {
		return nil, err
	}
	previous, err := a.periodMetrics(ctx, scope.WithRange(prevStart, start))
	if err != nil {
		return nil, err
	}

	trend, err := a.trend(ctx, scope, start, end)
	if err != nil {
		return nil, err
	}

	return &models.Summary{
		TotalUsers:        current.users,
		TotalUsersChange:  utils.PercentChange(current.users, previous.users),
		EventCount:        current.events,
		EventCountChange:  utils.PercentChange(current.events, previous.events),
		Conversions:       current.conversions,
		ConversionsChange: utils.PercentChange(current.conversions, previous.conversions),
		NewUsers:          current.newUsers,
		NewUsersChange:    utils.PercentChange(current.newUsers, previous.newUsers),
		TrendData:         trend,
	}, nil
}

func (a *Aggregator) periodMetrics(ctx context.Context, f store.EventFilter) (periodMetrics, error) {
	var m periodMetrics
	var err error

	if m.users, err = a.events.CountDistinctUsers(ctx, f); err != nil {
		return m, utils.NewStorageError("count users", err)
	}
	if m.events, err = a.events.CountEvents(ctx, f); err != nil {
		return m, utils.NewStorageError("count events", err)
	}
	if m.conversions, err = a.events.CountEvents(ctx, f.WithEventType(models.EventTypeConversion)); err != nil {
		return m, utils.NewStorageError("count conversions", err)
	}
	if m.newUsers, err = a.events.CountNewUsers(ctx, f); err != nil {
		return m, utils.NewStorageError("count new users", err)
	}
	return m, nil
}

// trend walks the window in 24h steps from start. Each step counts the closed range
// [d, d+24h], so the last point may cover a partial day. Labels use start's offset.
func (a *Aggregator) trend(ctx context.Context, scope store.EventFilter, start, end time.Time) ([]models.TrendPoint, error) {
	points := []models.TrendPoint{}
	for d := start; !d.After(end); d = d.Add(day) {
		users, err := a.events.CountDistinctUsers(ctx, scope.WithRange(d, d.Add(day)))
		if err != nil {
			return nil, utils.NewStorageError("count daily users", err)
		}
		points = append(points, models.TrendPoint{Date: d.Format("2006-01-02"), Users: users})
	}
	return points, nil
}

// Realtime reports the trailing 30 minutes. Only the per-minute series honours the
// app/domain filter; sessions carry no properties, so active users and countries are
// always global.
func (a *Aggregator) Realtime(ctx context.Context, q RealtimeQuery) (*models.Realtime, error) {
	now := a.now().UTC()
	since := now.Add(-realtimeMinutes * time.Minute)

	active, err := a.sessions.CountActiveUsers(ctx, since)
	if err != nil {
		return nil, utils.NewStorageError("count active users", err)
	}

	scope := store.EventFilter{AppName: q.AppName, Domain: q.Domain}
	byMinute := make([]models.MinuteCount, 0, realtimeMinutes)
	for i := 0; i < realtimeMinutes; i++ {
		minuteStart := now.Add(-time.Duration(realtimeMinutes-1-i) * time.Minute).Truncate(time.Minute)
		f := scope
		f.Start, f.End, f.EndExclusive = minuteStart, minuteStart.Add(time.Minute), true

		users, err := a.events.CountDistinctUsers(ctx, f)
		if err != nil {
			return nil, utils.NewStorageError("count users by minute", err)
		}
		byMinute = append(byMinute, models.MinuteCount{Minute: minuteStart.Format("15:04"), Users: users})
	}

	countries, err := a.sessions.UsersByCountry(ctx, since)
	if err != nil {
		return nil, utils.NewStorageError("count users by country", err)
	}

	return &models.Realtime{
		ActiveUsers:    active,
		UsersByMinute:  byMinute,
		UsersByCountry: rankCountries(countries),
	}, nil
}

// rankCountries sorts by users descending, keeping input order for ties, and returns
// the top ten.
func rankCountries(in []models.CountryCount) []models.CountryCount {
	out := make([]models.CountryCount, 0, len(in))
	for _, c := range in {
		if c.Country == "" {
			c.Country = models.UnknownCountry
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Users > out[j].Users })
	if len(out) > topCountries {
		out = out[:topCountries]
	}
	return out
}

// Apps lists every (app_name, domain) pair seen in the event store.
func (a *Aggregator) Apps(ctx context.Context) ([]models.AppInfo, error) {
	apps, err := a.events.ListApps(ctx)
	if err != nil {
		return nil, utils.NewStorageError("list apps", err)
	}
	return apps, nil
}
