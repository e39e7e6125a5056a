package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	EventsIngestedTotal *prometheus.CounterVec
	CounterErrorsTotal  prometheus.Counter
	ArchiveErrorsTotal  prometheus.Counter
}

// NewMetrics creates the collectors and registers them on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		EventsIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_events_ingested_total",
				Help: "Events persisted to the event store",
			},
			[]string{"event_type"},
		),
		CounterErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analytics_counter_errors_total",
			Help: "Failed realtime counter increments",
		}),
		ArchiveErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analytics_archive_errors_total",
			Help: "Failed ClickHouse archive writes",
		}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.EventsIngestedTotal,
		m.CounterErrorsTotal,
		m.ArchiveErrorsTotal,
	)

	return m
}
