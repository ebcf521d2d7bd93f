package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evalboard_evaluations_total",
		Help: "The total number of report evaluations by outcome",
	}, []string{"status"})

	MergeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "evalboard_merge_duration_seconds",
		Help:    "Duration of merging and summarizing one report level",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	MergedClusters = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "evalboard_merged_clusters",
		Help:    "Number of clusters in a merged evaluation",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 200},
	})

	SnapshotsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evalboard_snapshots_written_total",
		Help: "The total number of summary snapshots written",
	}, []string{"status"})

	SnapshotLastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "evalboard_snapshot_last_success_timestamp_seconds",
		Help: "Unix time of the last successful snapshot per report",
	}, []string{"slug"})

	SourceCachePurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evalboard_source_cache_purged_total",
		Help: "The total number of expired source documents removed",
	})
)
