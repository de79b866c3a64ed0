package gate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicksTotal counts price ticks seen for known tokens.
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_gate_ticks_total",
		Help: "Total number of price ticks processed",
	})

	// TicksRejectedTotal counts ticks that did not produce an entry, by reason.
	TicksRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "updown_gate_ticks_rejected_total",
		Help: "Total number of ticks rejected by the gate",
	}, []string{"reason"})

	// EntriesTotal counts entry decisions by side.
	EntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "updown_gate_entries_total",
		Help: "Total number of entry decisions fired",
	}, []string{"side"})

	// SettledEarlyTotal counts windows flagged as settled before their end.
	SettledEarlyTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_gate_settled_early_total",
		Help: "Total number of windows detected as settled early",
	})
)
