// Package metrics exposes Prometheus instruments for the lookup pipeline.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	LookupsTotal           *prometheus.CounterVec
	CacheRequestsTotal     *prometheus.CounterVec
	UpstreamAttemptsTotal  *prometheus.CounterVec
	UpstreamRequestSeconds prometheus.Histogram
	QuotaDenialsTotal      prometheus.Counter
	BatchItemsTotal        *prometheus.CounterVec
	ActiveSessions         prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rcintel_lookups_total",
			Help: "Total number of RC lookups by result",
		}, []string{"result"}),
		CacheRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rcintel_cache_requests_total",
			Help: "Total number of report cache reads by outcome",
		}, []string{"outcome"}),
		UpstreamAttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rcintel_upstream_attempts_total",
			Help: "Total number of HTTP attempts against the lookup service by outcome",
		}, []string{"outcome"}),
		UpstreamRequestSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rcintel_upstream_request_duration_seconds",
			Help:    "Duration of single HTTP attempts against the lookup service",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		QuotaDenialsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rcintel_quota_denials_total",
			Help: "Total number of requests rejected by the daily quota",
		}),
		BatchItemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rcintel_batch_items_total",
			Help: "Total number of batch items processed by result",
		}, []string{"result"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rcintel_active_sessions",
			Help: "Current number of sessions waiting for user input",
		}),
	}
}

func (m *Metrics) ObserveLookup(result string) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.CacheRequestsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveUpstreamAttempt(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamAttemptsTotal.WithLabelValues(outcome).Inc()
	m.UpstreamRequestSeconds.Observe(took.Seconds())
}

func (m *Metrics) IncrementQuotaDenials() {
	if m == nil {
		return
	}
	m.QuotaDenialsTotal.Inc()
}

func (m *Metrics) ObserveBatchItem(ok bool) {
	if m == nil {
		return
	}
	m.BatchItemsTotal.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}
