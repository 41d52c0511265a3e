package metrics

import "github.com/prometheus/client_golang/prometheus"

// AnalyticsMetrics counts consumed analytics messages by outcome.
type AnalyticsMetrics struct {
	consumed *prometheus.CounterVec
}

func NewAnalyticsMetrics(reg prometheus.Registerer) *AnalyticsMetrics {
	if reg == nil {
		return &AnalyticsMetrics{}
	}
	consumed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_messages_total",
		Help: "Analytics messages consumed from Pub/Sub by event type and outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(consumed)
	return &AnalyticsMetrics{consumed: consumed}
}

func (m *AnalyticsMetrics) IncConsumed(eventType, outcome string) {
	if m == nil || m.consumed == nil {
		return
	}
	m.consumed.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
