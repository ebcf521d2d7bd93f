package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values.
const (
	ReasonBadKey      = "bad_key"
	ReasonRateLimited = "rate_limited"

	ErrorTypeUpstream = "upstream_error"
	ErrorTypeRender   = "render_error"
	ErrorTypeEncode   = "encode_error"
)

var (
	// HitsTotal counts requests by route and HTTP status code.
	HitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evalboard_dashboard_hits_total",
		Help: "Total number of dashboard requests",
	}, []string{"route", "status"})

	// DeniedTotal counts denied requests by reason.
	DeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evalboard_dashboard_denied_total",
		Help: "Total number of denied dashboard requests",
	}, []string{"reason"})

	// ErrorsTotal counts errors by type.
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evalboard_dashboard_errors_total",
		Help: "Total number of dashboard errors",
	}, []string{"type"})

	// LatencyHistogram measures request latency by route.
	LatencyHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evalboard_dashboard_latency_seconds",
		Help:    "Latency of dashboard requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)
