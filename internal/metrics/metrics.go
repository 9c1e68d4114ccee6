// Package metrics provides Prometheus metrics for ingestion, publishing and
// monitoring. All metrics live under the "curator" namespace.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsNamespace is the namespace for all curator metrics.
const MetricsNamespace = "curator"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Ingest metrics
	FeedPollsTotal     *prometheus.CounterVec
	ItemsIngestedTotal *prometheus.CounterVec
	PageCrawlsTotal    *prometheus.CounterVec
	IngestDurationSecs *prometheus.HistogramVec

	// Publish metrics
	PublishedTotal     *prometheus.CounterVec
	PublishFailedTotal *prometheus.CounterVec
	PublishDuration    *prometheus.HistogramVec
	OutboxPending      prometheus.Gauge

	// Monitor metrics
	MonitorChecksTotal *prometheus.CounterVec
	MonitorAlertsTotal *prometheus.CounterVec
}

// New creates and registers all curator metrics. A nil registerer falls back
// to the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		FeedPollsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: "ingest",
				Name:      "feed_polls_total",
				Help:      "Total number of feed polls",
			},
			[]string{"status"}, // ok, not_modified, error
		),
		ItemsIngestedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: "ingest",
				Name:      "items_ingested_total",
				Help:      "Total number of content items ingested",
			},
			[]string{"organisation", "content_type"},
		),
		PageCrawlsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: "ingest",
				Name:      "page_crawls_total",
				Help:      "Total number of listing page crawls",
			},
			[]string{"status"},
		),
		IngestDurationSecs: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: MetricsNamespace,
				Subsystem: "ingest",
				Name:      "duration_seconds",
				Help:      "Duration of a single source ingest pass",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"kind"},
		),
		PublishedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: "publish",
				Name:      "published_total",
				Help:      "Total number of content items published per channel",
			},
			[]string{"channel"},
		),
		PublishFailedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: "publish",
				Name:      "failed_total",
				Help:      "Total number of failed publish attempts per channel",
			},
			[]string{"channel"},
		),
		PublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: MetricsNamespace,
				Subsystem: "publish",
				Name:      "duration_seconds",
				Help:      "Duration of publishing one outbox entry",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"channel"},
		),
		OutboxPending: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: MetricsNamespace,
				Subsystem: "publish",
				Name:      "outbox_pending",
				Help:      "Number of outbox entries waiting to be published",
			},
		),
		MonitorChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: "monitor",
				Name:      "checks_total",
				Help:      "Total number of monitor checks per outcome",
			},
			[]string{"status"}, // ok, drift, error
		),
		MonitorAlertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: "monitor",
				Name:      "alerts_total",
				Help:      "Total number of monitor alerts raised per kind",
			},
			[]string{"kind"},
		),
	}
}

// RecordFeedPoll records the outcome of one feed poll.
func (m *Metrics) RecordFeedPoll(status string) {
	m.FeedPollsTotal.WithLabelValues(status).Inc()
}

// RecordIngested records ingested items for an organisation and content type.
func (m *Metrics) RecordIngested(organisation, contentType string, count int) {
	m.ItemsIngestedTotal.WithLabelValues(organisation, contentType).Add(float64(count))
}

// RecordPageCrawl records the outcome of one listing page crawl.
func (m *Metrics) RecordPageCrawl(status string) {
	m.PageCrawlsTotal.WithLabelValues(status).Inc()
}

// RecordPublish records a publish attempt outcome with its duration.
func (m *Metrics) RecordPublish(channel string, success bool, durationSeconds float64) {
	if success {
		m.PublishedTotal.WithLabelValues(channel).Inc()
	} else {
		m.PublishFailedTotal.WithLabelValues(channel).Inc()
	}
	m.PublishDuration.WithLabelValues(channel).Observe(durationSeconds)
}

// SetOutboxPending sets the pending outbox depth.
func (m *Metrics) SetOutboxPending(depth int64) {
	m.OutboxPending.Set(float64(depth))
}

// RecordMonitorCheck records the outcome of one monitor check.
func (m *Metrics) RecordMonitorCheck(status string) {
	m.MonitorChecksTotal.WithLabelValues(status).Inc()
}

// RecordMonitorAlert records an alert being raised.
func (m *Metrics) RecordMonitorAlert(kind string) {
	m.MonitorAlertsTotal.WithLabelValues(kind).Inc()
}
