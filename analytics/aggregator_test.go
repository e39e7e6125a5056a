package analytics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analyticsdash/api/metrics"
	"analyticsdash/api/models"
	"analyticsdash/api/utils"
)

type noopCounters struct{}

func (noopCounters) Increment(context.Context, time.Time, string) error { return nil }

type fixture struct {
	clock   *fakeClock
	store   *memStore
	agg     *Aggregator
	tracker *Tracker
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	clock := &fakeClock{t: now}
	mem := newMemStore(clock.Now)

	agg := NewAggregator(mem, mem)
	agg.now = clock.Now

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	tracker := NewTracker(mem, noopCounters{}, nil, metrics.NewMetrics(prometheus.NewRegistry()), logger)

	return &fixture{clock: clock, store: mem, agg: agg, tracker: tracker}
}

func (f *fixture) track(t *testing.T, eventType, user, session, country string, props models.Properties) *models.Event {
	t.Helper()
	ev, err := f.tracker.Track(context.Background(), models.EventCreateRequest{
		EventType: eventType, UserID: user, SessionID: session, Country: country, Properties: props,
	})
	require.NoError(t, err)
	return ev
}

func TestSummary_EndToEndScenario(t *testing.T) {
	f := newFixture(t, time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))

	f.track(t, "pageview", "u1", "s1", "Unknown", nil)
	f.clock.Advance(time.Minute)
	f.track(t, "pageview", "u1", "s1", "France", nil)
	f.clock.Advance(time.Minute)
	f.track(t, "conversion", "u1", "s1", "France", nil)

	summary, err := f.agg.Summary(context.Background(), SummaryQuery{
		StartDate: "2024-05-09T00:00:00Z",
		EndDate:   "2024-05-11T00:00:00Z",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), summary.EventCount)
	assert.Equal(t, int64(1), summary.Conversions)
	assert.Equal(t, int64(1), summary.TotalUsers)
	assert.Equal(t, int64(1), summary.NewUsers)
	assert.Equal(t, 100.0, summary.EventCountChange)
	assert.Equal(t, 100.0, summary.NewUsersChange)

	sess := f.store.sessions["s1"]
	require.NotNil(t, sess)
	assert.Equal(t, "France", sess.Country)
}

func TestSummary_PercentChangeAgainstPreviousWindow(t *testing.T) {
	start := time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, start.Add(-3*24*time.Hour))

	// previous window [May 1, May 8]
	f.track(t, "pageview", "u1", "s1", "", nil)
	f.track(t, "pageview", "u2", "s2", "", nil)

	// current window [May 8, May 15]
	f.clock.t = start.Add(2 * 24 * time.Hour)
	f.track(t, "pageview", "u1", "s3", "", nil)
	f.track(t, "pageview", "u2", "s4", "", nil)

	summary, err := f.agg.Summary(context.Background(), SummaryQuery{
		StartDate: "2024-05-08T00:00:00Z",
		EndDate:   "2024-05-15T00:00:00Z",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), summary.TotalUsers)
	assert.Equal(t, 0.0, summary.TotalUsersChange, "equal non-zero periods report no change")
	assert.Equal(t, int64(2), summary.EventCount)
	assert.Equal(t, 0.0, summary.EventCountChange)
	assert.Equal(t, int64(0), summary.NewUsers, "both users were first seen in the previous window")
	assert.Equal(t, -100.0, summary.NewUsersChange)
	assert.Equal(t, int64(0), summary.Conversions)
	assert.Equal(t, 0.0, summary.ConversionsChange)
}

func TestSummary_NewUsersIgnoreEarlierActivityOutsideScope(t *testing.T) {
	f := newFixture(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))

	// u1 was seen long ago, but only in another app.
	f.track(t, "pageview", "u1", "s1", "", models.Properties{"app_name": "blog"})

	f.clock.t = time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC)
	f.track(t, "pageview", "u1", "s2", "", models.Properties{"app_name": "shop"})

	shop, err := f.agg.Summary(context.Background(), SummaryQuery{
		StartDate: "2024-05-08", EndDate: "2024-05-10", AppName: "shop",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), shop.NewUsers)

	all, err := f.agg.Summary(context.Background(), SummaryQuery{StartDate: "2024-05-08", EndDate: "2024-05-10"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), all.NewUsers, "across all apps u1 is a returning user")
	assert.Equal(t, int64(1), all.TotalUsers)
}

func TestSummary_AppAndDomainFilter(t *testing.T) {
	f := newFixture(t, time.Date(2024, 5, 9, 10, 0, 0, 0, time.UTC))

	f.track(t, "pageview", "u1", "s1", "", models.Properties{"app_name": "shop", "domain": "shop.example"})
	f.track(t, "conversion", "u2", "s2", "", models.Properties{"app_name": "shop", "domain": "eu.shop.example"})
	f.track(t, "pageview", "u3", "s3", "", models.Properties{"app_name": "blog", "domain": "shop.example"})
	f.track(t, "pageview", "u4", "s4", "", nil)

	q := SummaryQuery{StartDate: "2024-05-09T00:00:00Z", EndDate: "2024-05-10T00:00:00Z"}

	q.AppName = "shop"
	s, err := f.agg.Summary(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.EventCount)
	assert.Equal(t, int64(1), s.Conversions)

	q.Domain = "shop.example"
	s, err = f.agg.Summary(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.EventCount)
	assert.Equal(t, int64(0), s.Conversions)
	assert.Equal(t, []models.TrendPoint{{Date: "2024-05-09", Users: 1}, {Date: "2024-05-10", Users: 0}}, s.TrendData)
}

func TestSummary_TrendCoversEveryDayInOrder(t *testing.T) {
	f := newFixture(t, time.Date(2024, 5, 3, 15, 0, 0, 0, time.UTC))
	f.track(t, "pageview", "u1", "s1", "", nil)
	f.track(t, "pageview", "u2", "s2", "", nil)

	s, err := f.agg.Summary(context.Background(), SummaryQuery{
		StartDate: "2024-05-01T00:00:00Z",
		EndDate:   "2024-05-08T00:00:00Z",
	})
	require.NoError(t, err)

	require.Len(t, s.TrendData, 8)
	for i, p := range s.TrendData {
		assert.Equal(t, fmt.Sprintf("2024-05-%02d", i+1), p.Date)
	}
	assert.Equal(t, int64(2), s.TrendData[2].Users)
	assert.Equal(t, int64(0), s.TrendData[0].Users)
}

func TestSummary_TrendLabelsFollowRequestedOffset(t *testing.T) {
	f := newFixture(t, time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC))
	f.track(t, "pageview", "u1", "s1", "", nil)

	s, err := f.agg.Summary(context.Background(), SummaryQuery{
		StartDate: "2024-05-01T00:00:00+05:00",
		EndDate:   "2024-05-03T00:00:00+05:00",
	})
	require.NoError(t, err)

	require.Len(t, s.TrendData, 3)
	assert.Equal(t, models.TrendPoint{Date: "2024-05-01", Users: 1}, s.TrendData[0])
	assert.Equal(t, models.TrendPoint{Date: "2024-05-03", Users: 0}, s.TrendData[2])
	assert.Equal(t, int64(1), s.TotalUsers)
}

func TestSummary_RejectsOversizedRange(t *testing.T) {
	f := newFixture(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	f.store.err = errors.New("must not be queried")

	_, err := f.agg.Summary(context.Background(), SummaryQuery{StartDate: "0001-01-01", EndDate: "2024-05-01"})
	var vErr *utils.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Contains(t, vErr.Message, "366")

	f.store.err = nil
	s, err := f.agg.Summary(context.Background(), SummaryQuery{StartDate: "2023-05-01", EndDate: "2024-05-01"})
	require.NoError(t, err)
	assert.Len(t, s.TrendData, 367)
}

func TestSummary_PartialFinalDay(t *testing.T) {
	f := newFixture(t, time.Date(2024, 5, 3, 15, 0, 0, 0, time.UTC))

	s, err := f.agg.Summary(context.Background(), SummaryQuery{
		StartDate: "2024-05-01T00:00:00Z",
		EndDate:   "2024-05-03T06:00:00Z",
	})
	require.NoError(t, err)
	require.Len(t, s.TrendData, 3)
	assert.Equal(t, "2024-05-03", s.TrendData[2].Date)
}

func TestSummary_ZeroLengthWindowHasOnePoint(t *testing.T) {
	f := newFixture(t, time.Date(2024, 5, 3, 15, 0, 0, 0, time.UTC))

	s, err := f.agg.Summary(context.Background(), SummaryQuery{
		StartDate: "2024-05-03T12:00:00Z",
		EndDate:   "2024-05-03T12:00:00Z",
	})
	require.NoError(t, err)
	require.Len(t, s.TrendData, 1)
	assert.Equal(t, "2024-05-03", s.TrendData[0].Date)
}

func TestSummary_DefaultsToTrailingWeek(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)
	f := newFixture(t, now)

	s, err := f.agg.Summary(context.Background(), SummaryQuery{})
	require.NoError(t, err)
	require.Len(t, s.TrendData, 8)
	assert.Equal(t, "2024-05-03", s.TrendData[0].Date)
	assert.Equal(t, "2024-05-10", s.TrendData[7].Date)

	s, err = f.agg.Summary(context.Background(), SummaryQuery{EndDate: "2024-06-01T00:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-25", s.TrendData[0].Date)
}

func TestSummary_MalformedDates(t *testing.T) {
	f := newFixture(t, time.Now())

	for _, q := range []SummaryQuery{
		{StartDate: "last tuesday"},
		{EndDate: "2024-13-45"},
	} {
		_, err := f.agg.Summary(context.Background(), q)
		var vErr *utils.ValidationError
		assert.True(t, errors.As(err, &vErr), "query %+v", q)
	}
}

func TestSummary_StorageFailureHasNoPartialResult(t *testing.T) {
	f := newFixture(t, time.Now())
	f.store.err = errors.New("connection refused")

	s, err := f.agg.Summary(context.Background(), SummaryQuery{})
	assert.Nil(t, s)
	var sErr *utils.StorageError
	require.True(t, errors.As(err, &sErr))
	assert.ErrorContains(t, err, "connection refused")
}

func TestRealtime_MinuteBuckets(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 30, 0, time.UTC)
	f := newFixture(t, now.Add(-5*time.Minute))
	f.track(t, "pageview", "u1", "s1", "France", models.Properties{"app_name": "shop"})
	f.track(t, "pageview", "u2", "s2", "Spain", models.Properties{"app_name": "blog"})
	f.clock.t = now

	rt, err := f.agg.Realtime(context.Background(), RealtimeQuery{})
	require.NoError(t, err)

	require.Len(t, rt.UsersByMinute, 30)
	assert.Equal(t, "11:31", rt.UsersByMinute[0].Minute)
	assert.Equal(t, "12:00", rt.UsersByMinute[29].Minute)

	seen := map[string]bool{}
	for _, m := range rt.UsersByMinute {
		assert.False(t, seen[m.Minute], "duplicate minute %s", m.Minute)
		seen[m.Minute] = true
	}

	assert.Equal(t, "11:55", rt.UsersByMinute[24].Minute)
	assert.Equal(t, int64(2), rt.UsersByMinute[24].Users)
	assert.Equal(t, int64(2), rt.ActiveUsers)
}

func TestRealtime_FilterOnlyAppliesToMinuteSeries(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 30, 0, time.UTC)
	f := newFixture(t, now.Add(-2*time.Minute))
	f.track(t, "pageview", "u1", "s1", "France", models.Properties{"app_name": "shop"})
	f.track(t, "pageview", "u2", "s2", "Spain", models.Properties{"app_name": "blog"})
	f.clock.t = now

	rt, err := f.agg.Realtime(context.Background(), RealtimeQuery{AppName: "shop"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), rt.UsersByMinute[27].Users)
	assert.Equal(t, int64(2), rt.ActiveUsers)
	assert.Len(t, rt.UsersByCountry, 2)
}

func TestRealtime_IgnoresStaleSessions(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now.Add(-31*time.Minute))
	f.track(t, "pageview", "old", "s-old", "Peru", nil)
	f.clock.t = now.Add(-time.Minute)
	f.track(t, "pageview", "new", "s-new", "Chile", nil)
	f.clock.t = now

	rt, err := f.agg.Realtime(context.Background(), RealtimeQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rt.ActiveUsers)
	assert.Equal(t, []models.CountryCount{{Country: "Chile", Users: 1}}, rt.UsersByCountry)
}

type stubSessions struct {
	countries []models.CountryCount
}

func (s stubSessions) CountActiveUsers(context.Context, time.Time) (int64, error) { return 0, nil }

func (s stubSessions) UsersByCountry(context.Context, time.Time) ([]models.CountryCount, error) {
	return s.countries, nil
}

func TestRealtime_TopTenCountries(t *testing.T) {
	var countries []models.CountryCount
	for i := 0; i < 14; i++ {
		countries = append(countries, models.CountryCount{Country: fmt.Sprintf("C%02d", i), Users: int64(i % 7)})
	}
	countries = append(countries, models.CountryCount{Country: "", Users: 9})

	agg := NewAggregator(newMemStore(time.Now), stubSessions{countries: countries})
	rt, err := agg.Realtime(context.Background(), RealtimeQuery{})
	require.NoError(t, err)

	require.Len(t, rt.UsersByCountry, 10)
	assert.Equal(t, models.CountryCount{Country: "Unknown", Users: 9}, rt.UsersByCountry[0])
	for i := 1; i < len(rt.UsersByCountry); i++ {
		assert.GreaterOrEqual(t, rt.UsersByCountry[i-1].Users, rt.UsersByCountry[i].Users)
	}
	// ties keep input order
	assert.Equal(t, "C06", rt.UsersByCountry[1].Country)
	assert.Equal(t, "C13", rt.UsersByCountry[2].Country)
}

func TestApps_CountsAndBounds(t *testing.T) {
	start := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, start)

	f.track(t, "pageview", "u1", "s1", "", models.Properties{"app_name": "shop", "domain": "shop.example"})
	apps, err := f.agg.Apps(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, int64(1), apps[0].EventCount)

	f.clock.Advance(time.Hour)
	f.track(t, "click", "u2", "s2", "", models.Properties{"app_name": "shop", "domain": "shop.example"})
	f.track(t, "click", "u3", "s3", "", nil)

	apps, err = f.agg.Apps(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, models.AppInfo{
		AppName: "shop", Domain: "shop.example", EventCount: 2, UserCount: 2,
		FirstSeen: start, LastSeen: start.Add(time.Hour),
	}, apps[0])
	assert.Equal(t, "legacy", apps[1].AppName)
	assert.Equal(t, "unknown", apps[1].Domain)
}

func TestApps_StorageError(t *testing.T) {
	f := newFixture(t, time.Now())
	f.store.err = errors.New("gone")
	_, err := f.agg.Apps(context.Background())
	var sErr *utils.StorageError
	assert.True(t, errors.As(err, &sErr))
}
