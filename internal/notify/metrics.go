package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeSkipped = "skipped"
)

var (
	eventsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pvebridge_events_dispatched_total",
		Help: "Number of events fanned out to the configured channels.",
	})

	deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pvebridge_deliveries_total",
		Help: "Per-channel delivery attempts by outcome.",
	}, []string{"channel", "outcome"})
)
