package race

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RacesTotal tracks race outcomes by terminal state.
	RacesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "updown_races_total",
		Help: "Total order races by outcome",
	}, []string{"outcome"})

	// RaceDurationSeconds tracks time from first placement to observed fill.
	RaceDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "updown_race_duration_seconds",
		Help:    "Duration of won races from placement to fill observation",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)
