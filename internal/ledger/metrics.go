package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PositionsCreatedTotal counts positions written to the ledger by execution mode.
	PositionsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "updown_ledger_positions_created_total",
		Help: "Total number of positions created",
	}, []string{"mode"})

	// PositionsFinalizedTotal counts terminal outcome transitions by outcome.
	PositionsFinalizedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "updown_ledger_positions_finalized_total",
		Help: "Total number of positions finalized",
	}, []string{"outcome"})
)
