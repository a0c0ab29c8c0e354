package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	backendShared = "shared"
	backendLocal  = "local"

	resultAllowed = "allowed"
	resultDenied  = "denied"
	resultError   = "error"
)

var (
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "admission",
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Rate limit decisions by serving backend and result",
		},
		[]string{"backend", "result"},
	)

	fallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "admission",
			Subsystem: "ratelimit",
			Name:      "backend_fallbacks_total",
			Help:      "Decisions served by the local backend because the shared backend failed",
		},
	)

	decisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "admission",
			Subsystem: "ratelimit",
			Name:      "decision_duration_seconds",
			Help:      "Time spent in a single backend check",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"backend"},
	)
)

func resultLabel(v Verdict) string {
	if v.Allowed {
		return resultAllowed
	}

	return resultDenied
}
