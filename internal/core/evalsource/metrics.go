package evalsource

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values.
const (
	ResultOK       = "ok"
	ResultMissing  = "missing"
	ResultError    = "error"
	ResultCacheHit = "cache_hit"
)

var (
	// FetchDuration measures upstream document fetch latency.
	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evalboard_upstream_fetch_duration_seconds",
		Help:    "Duration of upstream evaluation document fetches",
		Buckets: prometheus.DefBuckets,
	}, []string{"document"})

	// FetchTotal counts upstream document fetches by outcome.
	FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evalboard_upstream_fetch_total",
		Help: "Total number of upstream evaluation document fetches",
	}, []string{"document", "result"})

	// RunsTriggered counts evaluation runs started upstream.
	RunsTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evalboard_upstream_runs_total",
		Help: "Total number of upstream evaluation runs triggered",
	}, []string{"kind", "result"})
)
