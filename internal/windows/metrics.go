package windows

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolveRequestsTotal counts window resolution lookups.
	ResolveRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_directory_resolve_requests_total",
		Help: "Total number of window resolution lookups",
	})

	// ResolveErrorsTotal counts failed window resolutions (excluding ordinary not-found).
	ResolveErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_directory_resolve_errors_total",
		Help: "Total number of failed window resolutions",
	})

	// SettlementChecksTotal counts settlement status queries.
	SettlementChecksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_directory_settlement_checks_total",
		Help: "Total number of settlement status queries",
	})

	// SettlementsResolvedTotal counts settlement queries that returned a definitive winner.
	SettlementsResolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_directory_settlements_resolved_total",
		Help: "Total number of settlement queries that returned a winning side",
	})
)
