package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestOrderMetricsCounters(t *testing.T) {
	m := newOrderMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordOrderCreated(false)
	m.RecordOrderCreated(true)
	m.RecordLineAdded()
	m.RecordShipment()
	m.RecordRejected("not_found")
	m.RecordRejected("not_found")
	m.RecordOperationDuration("create_order", 5*time.Millisecond)

	if got := counterValue(t, m.ordersCreated); got != 2 {
		t.Fatalf("ordersCreated = %v, want 2", got)
	}
	if got := counterValue(t, m.discountsGranted); got != 1 {
		t.Fatalf("discountsGranted = %v, want 1", got)
	}
	if got := counterValue(t, m.linesAdded); got != 1 {
		t.Fatalf("linesAdded = %v, want 1", got)
	}
	if got := counterValue(t, m.shipmentsRecorded); got != 1 {
		t.Fatalf("shipmentsRecorded = %v, want 1", got)
	}
	if got := counterValue(t, m.rejectedOps.WithLabelValues("not_found")); got != 2 {
		t.Fatalf("rejectedOps[not_found] = %v, want 2", got)
	}
}

func TestOrderMetricsDoubleRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()

	first := newOrderMetricsWithRegisterer(registry)
	second := newOrderMetricsWithRegisterer(registry)

	first.RecordOrderCreated(false)
	second.RecordOrderCreated(false)

	if got := counterValue(t, second.ordersCreated); got != 2 {
		t.Fatalf("ordersCreated = %v, want 2 (collectors must be shared)", got)
	}
}
