package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// PartnerImportMetrics records price-list import runs.
type PartnerImportMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	listings prometheus.Histogram
}

// NewPartnerImportMetrics registers the import metrics on the provided registerer.
func NewPartnerImportMetrics(reg prometheus.Registerer) *PartnerImportMetrics {
	if reg == nil {
		return &PartnerImportMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "partner_import_duration_seconds",
		Help:    "Duration of partner price-list imports in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partner_import_total",
		Help: "Partner price-list imports by outcome and failure reason.",
	}, []string{"outcome", "reason"})
	listings := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "partner_import_listings",
		Help:    "Number of product listings written by a successful import.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})
	reg.MustRegister(duration, runs, listings)
	return &PartnerImportMetrics{
		duration: duration,
		runs:     runs,
		listings: listings,
	}
}

// ObserveSuccess records a completed import and the number of listings it wrote.
func (m *PartnerImportMetrics) ObserveSuccess(duration time.Duration, listings int) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(OutcomeSuccess).Observe(duration.Seconds())
	m.runs.WithLabelValues(OutcomeSuccess, "").Inc()
	m.listings.Observe(float64(listings))
}

// ObserveFailure records an aborted import; reason is usually an error code.
func (m *PartnerImportMetrics) ObserveFailure(duration time.Duration, reason string) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(OutcomeFailure).Observe(duration.Seconds())
	m.runs.WithLabelValues(OutcomeFailure, normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
