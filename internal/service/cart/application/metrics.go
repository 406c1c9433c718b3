// internal/service/cart/application/metrics.go
package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_reservations_created_total",
		Help: "Number of reservation records created.",
	})
	reservationsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_reservations_released_total",
		Help: "Number of reservations explicitly released by shoppers.",
	})
	reservationsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_reservations_consumed_total",
		Help: "Number of reservations consumed into orders at checkout.",
	})
	reservationsReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_reservations_reaped_total",
		Help: "Number of expired reservations released by the sweep.",
	})
	insufficientStockRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_insufficient_stock_rejections_total",
		Help: "Number of reserve/adjust calls rejected for insufficient stock.",
	})
	ordersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_orders_placed_total",
		Help: "Number of orders created at checkout.",
	})
	ordersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_orders_cancelled_total",
		Help: "Number of orders cancelled with stock restored.",
	})
	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cart_sweep_duration_seconds",
		Help:    "Duration of expired-reservation sweeps.",
		Buckets: prometheus.DefBuckets,
	})
	sweepFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_sweep_record_failures_total",
		Help: "Number of expired records the sweep failed to process.",
	})
)
