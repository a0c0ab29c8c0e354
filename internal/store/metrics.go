package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var localRecords = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "admission",
		Subsystem: "ratelimit",
		Name:      "local_records",
		Help:      "Counter records held by the local backend after the last sweep",
	},
)
