package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records payment settlement outcomes.
type SettlementMetrics struct {
	duration *prometheus.HistogramVec
	success  prometheus.Counter
	failure  *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_settlement_duration_seconds",
		Help:    "Duration of payment settlement transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	success := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_settlement_success_total",
		Help: "Settlements that decremented stock and marked orders paid.",
	})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_settlement_failure_total",
		Help: "Settlements aborted before any mutation.",
	}, []string{"reason"})
	reg.MustRegister(duration, success, failure)
	return &SettlementMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

// ObserveDuration records how long a settlement attempt took.
func (s *SettlementMetrics) ObserveDuration(outcome string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter.
func (s *SettlementMetrics) IncSuccess() {
	if s == nil || s.success == nil {
		return
	}
	s.success.Inc()
}

// IncFailure increments the failure counter for the given reason.
func (s *SettlementMetrics) IncFailure(reason string) {
	if s == nil || s.failure == nil {
		return
	}
	s.failure.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
