package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// series returns the sample of family name whose labels include every
// name/value pair in match, failing the test when there is none.
func series(t *testing.T, reg *prometheus.Registry, name string, match map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if hasLabels(m, match) {
				return m
			}
		}
	}
	require.Failf(t, "series not found", "%s%v", name, match)
	return nil
}

func hasLabels(m *dto.Metric, match map[string]string) bool {
	found := 0
	for _, pair := range m.GetLabel() {
		if want, ok := match[pair.GetName()]; ok && want == pair.GetValue() {
			found++
		}
	}
	return found == len(match)
}

func TestPartnerImportMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPartnerImportMetrics(reg)
	m.ObserveSuccess(250*time.Millisecond, 12)
	m.ObserveFailure(10*time.Millisecond, "VALIDATION_ERROR")
	m.ObserveFailure(10*time.Millisecond, "")

	assert.Equal(t, 1.0, series(t, reg, "partner_import_total", map[string]string{"reason": "VALIDATION_ERROR"}).GetCounter().GetValue())
	assert.Equal(t, 1.0, series(t, reg, "partner_import_total", map[string]string{"reason": "unknown"}).GetCounter().GetValue())

	success := series(t, reg, "partner_import_duration_seconds", map[string]string{"outcome": OutcomeSuccess}).GetHistogram()
	assert.Equal(t, uint64(1), success.GetSampleCount())
	assert.InDelta(t, 0.25, success.GetSampleSum(), 1e-9)
	assert.Equal(t, 12.0, series(t, reg, "partner_import_listings", nil).GetHistogram().GetSampleSum())
}

func TestOrderMetricsSeparatesRejectedTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetrics(reg)
	m.IncTransition("basket", "new")
	m.IncTransition("new", "confirmed")
	m.IncRejected("new", "delivered")

	assert.Equal(t, 1.0, series(t, reg, "order_status_transitions_total", map[string]string{"from": "basket", "to": "new"}).GetCounter().GetValue())
	assert.Equal(t, 1.0, series(t, reg, "order_status_transitions_rejected_total", map[string]string{"to": "delivered"}).GetCounter().GetValue())
}

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncPublished("order.placed")
	m.IncPublished("order.placed")
	m.IncFailed("order.placed")
	m.IncDeadLettered("user.registered", "max_attempts")

	assert.Equal(t, 2.0, series(t, reg, "outbox_events_published_total", map[string]string{"event_type": "order.placed"}).GetCounter().GetValue())
	assert.Equal(t, 1.0, series(t, reg, "outbox_events_failed_total", map[string]string{"event_type": "order.placed"}).GetCounter().GetValue())
	assert.Equal(t, 1.0, series(t, reg, "outbox_events_dead_lettered_total", map[string]string{"reason": "max_attempts"}).GetCounter().GetValue())
}

func TestCronJobMetricsIgnoresEmptySweeps(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.IncSuccess("outbox-retention")
	m.IncFailure("outbox-retention")
	m.AddDeleted("notification-retention", 7)
	m.AddDeleted("notification-retention", 0)
	m.ObserveDuration("outbox-retention", 40*time.Millisecond)

	assert.Equal(t, 1.0, series(t, reg, "maintenance_job_runs_total", map[string]string{"outcome": OutcomeFailure}).GetCounter().GetValue())
	assert.Equal(t, 7.0, series(t, reg, "maintenance_rows_deleted_total", map[string]string{"job": "notification-retention"}).GetCounter().GetValue())
	assert.Positive(t, series(t, reg, "maintenance_job_duration_seconds", map[string]string{"job": "outbox-retention"}).GetHistogram().GetSampleSum())
}

func TestHTTPMetricsLabelsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.ObserveRequest("GET", "/api/v1/orders/{orderId}", 200, 30*time.Millisecond)
	m.ObserveRequest("GET", "", 404, time.Millisecond)

	assert.Equal(t, 1.0, series(t, reg, "http_requests_total", map[string]string{
		"method": "GET", "route": "/api/v1/orders/{orderId}", "status": "200",
	}).GetCounter().GetValue())
	assert.Equal(t, 1.0, series(t, reg, "http_requests_total", map[string]string{"route": "unknown", "status": "404"}).GetCounter().GetValue())
}

func TestAnalyticsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAnalyticsMetrics(reg)
	m.IncConsumed("order.placed", OutcomeSuccess)
	m.IncConsumed("", OutcomeFailure)

	assert.Equal(t, 1.0, series(t, reg, "analytics_messages_total", map[string]string{"event_type": "order.placed", "outcome": OutcomeSuccess}).GetCounter().GetValue())
	assert.Equal(t, 1.0, series(t, reg, "analytics_messages_total", map[string]string{"event_type": "unknown"}).GetCounter().GetValue())
}

func TestNilRegistererIsNoop(t *testing.T) {
	var partner *PartnerImportMetrics
	assert.NotPanics(t, func() {
		partner.ObserveSuccess(time.Second, 1)
		NewPartnerImportMetrics(nil).ObserveFailure(time.Second, "x")
		NewOrderMetrics(nil).IncTransition("a", "b")
		NewOutboxMetrics(nil).IncPublished("x")
		NewCronJobMetrics(nil).AddDeleted("x", 3)
		NewHTTPMetrics(nil).ObserveRequest("GET", "/", 200, time.Millisecond)
		NewAnalyticsMetrics(nil).IncConsumed("x", OutcomeSuccess)
	})
}
