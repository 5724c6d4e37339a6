package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// BookingMetrics exposes counters/histograms for bookings, payouts and video.
type BookingMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	bookingLatency     *prometheus.HistogramVec
	videoSessionsTotal *prometheus.CounterVec
	joinTokensTotal    *prometheus.CounterVec
	payoutsTotal       *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "booking",
			Name:      "appointments_total",
			Help:      "Booking attempts by outcome and error kind",
		}, []string{"outcome", "kind"}),
		bookingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "telehealth",
			Subsystem: "booking",
			Name:      "latency_seconds",
			Help:      "Latency of booking requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		videoSessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "video",
			Name:      "sessions_total",
			Help:      "Video session provisioning attempts",
		}, []string{"outcome"}),
		joinTokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "video",
			Name:      "join_tokens_total",
			Help:      "Join token requests by outcome and error kind",
		}, []string{"outcome", "kind"}),
		payoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "payout",
			Name:      "requests_total",
			Help:      "Payout requests by outcome and error kind",
		}, []string{"outcome", "kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.bookingLatency, m.videoSessionsTotal, m.joinTokensTotal, m.payoutsTotal)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome, kind string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome, kind).Inc()
	m.bookingLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *BookingMetrics) ObserveVideoSession(outcome string) {
	if m == nil {
		return
	}
	m.videoSessionsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveJoinToken(outcome, kind string) {
	if m == nil {
		return
	}
	m.joinTokensTotal.WithLabelValues(outcome, kind).Inc()
}

func (m *BookingMetrics) ObservePayout(outcome, kind string) {
	if m == nil {
		return
	}
	m.payoutsTotal.WithLabelValues(outcome, kind).Inc()
}
