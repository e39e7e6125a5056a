package analytics

import (
	"context"
	"errors"
	"sort"
	"time"

	"analyticsdash/api/models"
	"analyticsdash/api/store"
)

// memStore is an in-memory event store and session tracker with the same
// semantics as the Postgres implementation.
type memStore struct {
	events   []models.Event
	sessions map[string]*models.Session
	nextID   int64
	clock    func() time.Time
	err      error
}

func newMemStore(clock func() time.Time) *memStore {
	return &memStore{sessions: map[string]*models.Session{}, clock: clock}
}

func (m *memStore) Record(_ context.Context, ev *models.Event) error {
	if m.err != nil {
		return m.err
	}
	m.nextID++
	ev.ID = m.nextID
	ev.CreatedAt = m.clock()
	m.events = append(m.events, *ev)

	sess, ok := m.sessions[ev.SessionID]
	if !ok {
		m.sessions[ev.SessionID] = &models.Session{
			SessionID: ev.SessionID, UserID: ev.UserID,
			StartTime: ev.CreatedAt, LastActivity: ev.CreatedAt, Country: ev.Country,
		}
		return nil
	}
	if ev.CreatedAt.After(sess.LastActivity) {
		sess.LastActivity = ev.CreatedAt
	}
	if sess.Country == models.UnknownCountry && ev.Country != models.UnknownCountry {
		sess.Country = ev.Country
	}
	return nil
}

func matches(f store.EventFilter, e models.Event) bool {
	if !f.Start.IsZero() && e.CreatedAt.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() {
		if f.EndExclusive && !e.CreatedAt.Before(f.End) {
			return false
		}
		if !f.EndExclusive && e.CreatedAt.After(f.End) {
			return false
		}
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.AppName != "" && e.Properties.String(models.PropertyAppName) != f.AppName {
		return false
	}
	if f.Domain != "" && e.Properties.String(models.PropertyDomain) != f.Domain {
		return false
	}
	return true
}

func (m *memStore) CountEvents(_ context.Context, f store.EventFilter) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, e := range m.events {
		if matches(f, e) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountDistinctUsers(_ context.Context, f store.EventFilter) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	users := map[string]bool{}
	for _, e := range m.events {
		if matches(f, e) {
			users[e.UserID] = true
		}
	}
	return int64(len(users)), nil
}

func (m *memStore) CountNewUsers(_ context.Context, f store.EventFilter) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	if f.Start.IsZero() {
		return 0, errors.New("window start required")
	}
	firstSeen := map[string]time.Time{}
	for _, e := range m.events {
		if !matches(f.Scope(), e) {
			continue
		}
		if t, ok := firstSeen[e.UserID]; !ok || e.CreatedAt.Before(t) {
			firstSeen[e.UserID] = e.CreatedAt
		}
	}
	users := map[string]bool{}
	for _, e := range m.events {
		if matches(f, e) && !firstSeen[e.UserID].Before(f.Start) {
			users[e.UserID] = true
		}
	}
	return int64(len(users)), nil
}

func (m *memStore) ListApps(_ context.Context) ([]models.AppInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	type key struct{ app, domain string }
	byKey := map[key]*models.AppInfo{}
	users := map[key]map[string]bool{}
	var order []key
	for _, e := range m.events {
		k := key{e.Properties.String(models.PropertyAppName), e.Properties.String(models.PropertyDomain)}
		if k.app == "" {
			k.app = "legacy"
		}
		if k.domain == "" {
			k.domain = "unknown"
		}
		info, ok := byKey[k]
		if !ok {
			info = &models.AppInfo{AppName: k.app, Domain: k.domain, FirstSeen: e.CreatedAt, LastSeen: e.CreatedAt}
			byKey[k] = info
			users[k] = map[string]bool{}
			order = append(order, k)
		}
		info.EventCount++
		users[k][e.UserID] = true
		info.UserCount = int64(len(users[k]))
		if e.CreatedAt.Before(info.FirstSeen) {
			info.FirstSeen = e.CreatedAt
		}
		if e.CreatedAt.After(info.LastSeen) {
			info.LastSeen = e.CreatedAt
		}
	}
	out := []models.AppInfo{}
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	return out, nil
}

func (m *memStore) CountActiveUsers(_ context.Context, since time.Time) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	users := map[string]bool{}
	for _, s := range m.sessions {
		if !s.LastActivity.Before(since) {
			users[s.UserID] = true
		}
	}
	return int64(len(users)), nil
}

func (m *memStore) UsersByCountry(_ context.Context, since time.Time) ([]models.CountryCount, error) {
	if m.err != nil {
		return nil, m.err
	}
	byCountry := map[string]map[string]bool{}
	for _, s := range m.sessions {
		if s.LastActivity.Before(since) {
			continue
		}
		c := s.Country
		if c == "" {
			c = models.UnknownCountry
		}
		if byCountry[c] == nil {
			byCountry[c] = map[string]bool{}
		}
		byCountry[c][s.UserID] = true
	}
	var out []models.CountryCount
	for c, users := range byCountry {
		out = append(out, models.CountryCount{Country: c, Users: int64(len(users))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Country < out[j].Country })
	return out, nil
}

// fakeClock is a settable time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
