package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	completionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beagle",
		Subsystem: "orchestrator",
		Name:      "completions_total",
		Help:      "Completions by provider and outcome.",
	}, []string{"provider", "outcome"})

	completionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "beagle",
		Subsystem: "orchestrator",
		Name:      "completion_duration_seconds",
		Help:      "Completion latency by provider.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"provider"})
)
