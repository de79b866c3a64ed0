package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SweepsTotal counts reconciliation passes.
	SweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_reconcile_sweeps_total",
		Help: "Total reconciliation sweeps",
	})

	// SweepErrorsTotal counts sweeps that failed before checking any window.
	SweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_reconcile_sweep_errors_total",
		Help: "Total sweeps aborted by a ledger listing error",
	})

	// SettlementErrorsTotal counts failed settlement queries.
	SettlementErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_reconcile_settlement_errors_total",
		Help: "Total settlement queries that failed with a non-pending error",
	})

	// FinalizeErrorsTotal counts failed ledger finalizations.
	FinalizeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_reconcile_finalize_errors_total",
		Help: "Total position finalizations rejected by the ledger",
	})

	// ResolutionsTotal counts finalized positions by outcome.
	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "updown_reconcile_resolutions_total",
		Help: "Total positions finalized, by outcome",
	}, []string{"outcome"})

	// WindowsExpiredTotal counts windows abandoned after the attempt budget.
	WindowsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_reconcile_windows_expired_total",
		Help: "Total windows finalized as timeouts after exhausting settlement attempts",
	})

	// PendingPositions is the pending position count seen by the last sweep.
	PendingPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_reconcile_pending_positions",
		Help: "Pending positions observed by the most recent sweep",
	})

	// RealizedProfitDollars accumulates realized profit across resolutions.
	RealizedProfitDollars = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_realized_profit_dollars",
		Help: "Cumulative realized profit across resolved positions",
	})
)
