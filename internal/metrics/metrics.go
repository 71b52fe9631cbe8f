package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for scheduling operations.
type BookingMetrics struct {
	operationsTotal *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "appointments",
			Name:      "operations_total",
			Help:      "Scheduling operations by outcome",
		}, []string{"operation", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal)
	return m
}

func (m *BookingMetrics) Observe(operation, outcome string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
}
