package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionNetPnl is the running session profit estimate in dollars.
	SessionNetPnl = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_session_net_pnl_dollars",
		Help: "Running session profit estimate (cost basis debited at entry, payout credited at resolution)",
	})

	// SessionGuardBlocked is 1 while the loss floor blocks new entries.
	SessionGuardBlocked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_session_guard_blocked",
		Help: "Whether the session loss limit is currently blocking new entries (1 = blocked)",
	})
)
