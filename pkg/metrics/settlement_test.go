package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSettlementMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSettlementMetrics(reg)

	m.IncSuccess()
	m.IncFailure("stock_shortage")
	m.IncFailure("")
	m.ObserveDuration("success", 25*time.Millisecond)

	if got := testutil.ToFloat64(m.success); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(m.failure.WithLabelValues("stock_shortage")); got != 1 {
		t.Fatalf("expected 1 stock_shortage failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.failure.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("expected empty reason to normalize to unknown, got %v", got)
	}
}

func TestSettlementMetricsNilSafe(t *testing.T) {
	var m *SettlementMetrics
	m.IncSuccess()
	m.IncFailure("x")
	m.ObserveDuration("success", time.Second)

	empty := NewSettlementMetrics(nil)
	empty.IncSuccess()
}
