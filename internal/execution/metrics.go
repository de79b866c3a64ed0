package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersPlacedTotal counts successfully placed orders.
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_exchange_orders_placed_total",
		Help: "Total number of orders placed on the exchange",
	})

	// OrdersCancelledTotal counts successful order cancellations.
	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_exchange_orders_cancelled_total",
		Help: "Total number of orders cancelled",
	})

	// OrderErrorsTotal counts failed exchange operations by kind.
	OrderErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "updown_exchange_order_errors_total",
		Help: "Total number of failed exchange operations",
	}, []string{"operation"})
)
