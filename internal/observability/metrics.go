// internal/observability/metrics.go
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the order-flow collectors, kept on a private registry so tests
// can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	OrdersPlaced         prometheus.Counter
	OrdersRejected       *prometheus.CounterVec
	AvailabilityConflict *prometheus.CounterVec
	OrdersCancelled      prometheus.Counter
	TxDuration           *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dish_order",
			Name:      "orders_placed_total",
			Help:      "Orders committed.",
		}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dish_order",
			Name:      "orders_rejected_total",
			Help:      "Orders refused before reaching storage, by validation code.",
		}, []string{"code"}),
		AvailabilityConflict: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dish_order",
			Name:      "availability_conflicts_total",
			Help:      "Orders rolled back because an ingredient ran out, by ingredient.",
		}, []string{"ingredient"}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dish_order",
			Name:      "orders_cancelled_total",
			Help:      "Orders deleted by their owner.",
		}),
		TxDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dish_order",
			Name:      "inventory_tx_duration_seconds",
			Help:      "Duration of inventory transactions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.OrdersPlaced,
		m.OrdersRejected,
		m.AvailabilityConflict,
		m.OrdersCancelled,
		m.TxDuration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
