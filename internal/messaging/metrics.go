package messaging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultProcessed = "processed"
	resultDropped   = "dropped"
	resultRetried   = "retried"
)

var eventsConsumed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "admission",
		Subsystem: "events",
		Name:      "consumed_total",
		Help:      "Consumed messages by topic and outcome",
	},
	[]string{"topic", "result"},
)
