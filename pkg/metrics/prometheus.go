package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	BookingsCreated    prometheus.Counter
	StatusTransitions  *prometheus.CounterVec
	ConflictsDetected  prometheus.Counter
	PaymentsProcessed  *prometheus.CounterVec
	DuplicatePayments  prometheus.Counter
	RefundsProcessed   prometheus.Counter
	CommissionsCreated prometheus.Counter
	CommissionsPaid    prometheus.Counter
	EventsDispatched   *prometheus.CounterVec
	EventsFailed       *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	ErrorsCount        *prometheus.CounterVec
}

// NewMetrics creates new prometheus metrics registered on reg.
// Passing nil registers on the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		BookingsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "The total number of bookings created",
		}),
		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_status_transitions_total",
			Help:      "Booking status transitions by target status",
		}, []string{"to"}),
		ConflictsDetected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_total",
			Help:      "The total number of overlapping bookings rejected",
		}),
		PaymentsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_processed_total",
			Help:      "Payment attempts by outcome",
		}, []string{"status"}),
		DuplicatePayments: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_payments_total",
			Help:      "The total number of payments rejected as duplicates",
		}),
		RefundsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunds_processed_total",
			Help:      "The total number of refunds recorded",
		}),
		CommissionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commissions_created_total",
			Help:      "The total number of commissions created",
		}),
		CommissionsPaid: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commissions_paid_total",
			Help:      "The total number of commissions paid out",
		}),
		EventsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "Domain events delivered to handlers",
		}, []string{"type"}),
		EventsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Domain event handler failures",
		}, []string{"type"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time taken by engine operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		ErrorsCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of errors",
		}, []string{"operation"}),
	}
}

// NewNopMetrics returns metrics bound to a private registry, for tests and tools
func NewNopMetrics() *Metrics {
	return NewMetrics("test", prometheus.NewRegistry())
}

// Track records the latency of an operation and counts it as an error when err is non-nil
func (m *Metrics) Track(operation string, start time.Time, err error) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		m.ErrorsCount.WithLabelValues(operation).Inc()
	}
}
