package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBookingMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveBooking(OutcomeSuccess, "", 0.02)
	m.ObserveBooking(OutcomeRejected, "SLOT_UNAVAILABLE", 0.01)
	m.ObserveBooking(OutcomeRejected, "SLOT_UNAVAILABLE", 0.01)
	m.ObserveVideoSession(OutcomeError)
	m.ObserveJoinToken(OutcomeRejected, "TOO_EARLY")
	m.ObservePayout(OutcomeSuccess, "")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.bookingsTotal.WithLabelValues(OutcomeSuccess, "")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.bookingsTotal.WithLabelValues(OutcomeRejected, "SLOT_UNAVAILABLE")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.videoSessionsTotal.WithLabelValues(OutcomeError)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.joinTokensTotal.WithLabelValues(OutcomeRejected, "TOO_EARLY")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.payoutsTotal.WithLabelValues(OutcomeSuccess, "")))
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveBooking(OutcomeSuccess, "", 0.1)
	m.ObserveVideoSession(OutcomeSuccess)
	m.ObserveJoinToken(OutcomeSuccess, "")
	m.ObservePayout(OutcomeError, "INTERNAL")
}
