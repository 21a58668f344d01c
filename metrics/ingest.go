package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	upstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Duration of Wildberries API requests by endpoint and outcome.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint", "outcome"},
	)
	ingestPagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "pages_total",
			Help:      "Search pages processed by outcome.",
		},
		[]string{"outcome"},
	)
	ingestRecordsFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_fetched_total",
			Help:      "Raw records observed in search pages.",
		},
	)
	ingestNormalizationErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "normalization_errors_total",
			Help:      "Raw records rejected by the normalizer.",
		},
	)
	ingestRecordsPersisted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_persisted_total",
			Help:      "Normalized records by persist outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		upstreamRequestDuration,
		ingestPagesTotal,
		ingestRecordsFetched,
		ingestNormalizationErrors,
		ingestRecordsPersisted,
	)
}

func RecordUpstream(endpoint, outcome string, duration time.Duration) {
	upstreamRequestDuration.WithLabelValues(endpoint, outcome).Observe(duration.Seconds())
}

func RecordPage(outcome string) {
	ingestPagesTotal.WithLabelValues(outcome).Inc()
}

func RecordFetched(n int) {
	ingestRecordsFetched.Add(float64(n))
}

func RecordNormalizationError() {
	ingestNormalizationErrors.Inc()
}

// RecordPersisted - outcome: inserted, updated, skipped, rejected, conflict, failed.
func RecordPersisted(outcome string, n int) {
	if n <= 0 {
		return
	}
	ingestRecordsPersisted.WithLabelValues(outcome).Add(float64(n))
}
