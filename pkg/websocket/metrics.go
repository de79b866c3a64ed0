package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks active WebSocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_ws_active_connections",
		Help: "Number of active WebSocket connections",
	})

	// ReconnectAttemptsTotal tracks reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_ws_reconnect_attempts_total",
		Help: "Total number of WebSocket reconnection attempts",
	})

	// ReconnectFailuresTotal tracks reconnection failures.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_ws_reconnect_failures_total",
		Help: "Total number of WebSocket reconnection failures",
	})

	// MessagesReceivedTotal tracks channel events received by type.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_ws_messages_received_total",
			Help: "Total number of WebSocket events received",
		},
		[]string{"event_type"},
	)

	// TicksEmittedTotal tracks price ticks delivered to the consumer.
	TicksEmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_ws_ticks_emitted_total",
		Help: "Total number of price ticks delivered downstream",
	})

	// TicksDroppedTotal tracks ticks dropped before delivery.
	TicksDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_ws_ticks_dropped_total",
			Help: "Total number of price ticks dropped before delivery",
		},
		[]string{"reason"},
	)

	// SubscriptionCount tracks active token subscriptions.
	SubscriptionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_ws_subscription_count",
		Help: "Number of active token subscriptions",
	})

	// ConnectionDuration tracks WebSocket connection lifetime.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "updown_ws_connection_duration_seconds",
		Help:    "Duration of WebSocket connections before disconnect",
		Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800, 43200, 86400},
	})

	// UnsubscriptionsTotal tracks token unsubscriptions.
	UnsubscriptionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_ws_unsubscriptions_total",
		Help: "Total number of token unsubscriptions",
	})
)
