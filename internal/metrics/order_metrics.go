package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики бизнес-операций над заказами.
type OrderMetrics struct {
	// Счётчики операций
	ordersCreated     prometheus.Counter
	discountsGranted  prometheus.Counter
	linesAdded        prometheus.Counter
	shipmentsRecorded prometheus.Counter

	// Отказы по причинам (not_found, already_shipped, insufficient_stock, ...)
	rejectedOps *prometheus.CounterVec

	// Гистограмма времени выполнения по операциям
	opDuration *prometheus.HistogramVec

	// Счётчики событий timeline/outbox
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
}

// NewOrderMetrics создаёт новый экземпляр метрик заказов.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "comptoirs_orders_created_total",
			Help: "Total number of orders created",
		}),
		discountsGranted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "comptoirs_discounts_granted_total",
			Help: "Total number of orders created with the loyalty discount",
		}),
		linesAdded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "comptoirs_order_lines_added_total",
			Help: "Total number of order lines added",
		}),
		shipmentsRecorded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "comptoirs_shipments_recorded_total",
			Help: "Total number of order shipments recorded",
		}),
		rejectedOps: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "comptoirs_operations_rejected_total",
			Help: "Total number of operations rejected grouped by reason",
		}, []string{"reason"}),
		opDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "comptoirs_operation_duration_seconds",
			Help:    "Duration of business operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"operation"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "comptoirs_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "comptoirs_outbox_events_total",
			Help: "Total number of events enqueued to the transactional outbox",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated(discounted bool) {
	m.ordersCreated.Inc()
	if discounted {
		m.discountsGranted.Inc()
	}
}

// RecordLineAdded увеличивает счётчик добавленных строк.
func (m *OrderMetrics) RecordLineAdded() {
	m.linesAdded.Inc()
}

// RecordShipment увеличивает счётчик отправленных заказов.
func (m *OrderMetrics) RecordShipment() {
	m.shipmentsRecorded.Inc()
}

// RecordRejected увеличивает счётчик отклонённых операций по причине.
func (m *OrderMetrics) RecordRejected(reason string) {
	m.rejectedOps.WithLabelValues(reason).Inc()
}

// RecordOperationDuration записывает время выполнения операции.
func (m *OrderMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	m.opDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *OrderMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *OrderMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
