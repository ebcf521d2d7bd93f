package evaluation

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/cluster-eval-board/internal/platform/observability"
	"github.com/lueurxax/cluster-eval-board/internal/platform/worker"
)

const (
	workerName             = "snapshot-worker"
	defaultPurgeInterval   = time.Hour
	defaultSnapshotTimeout = 2 * time.Minute
)

// CachePurger removes stale upstream documents.
type CachePurger interface {
	DeleteStaleDocuments(ctx context.Context, before time.Time) (int64, error)
}

// WorkerConfig configures the snapshot worker.
type WorkerConfig struct {
	Slugs    []string
	Level    int
	Interval time.Duration
	CacheTTL time.Duration
}

// Worker periodically snapshots the configured reports and purges the
// document cache.
type Worker struct {
	cfg    WorkerConfig
	svc    *Service
	purger CachePurger
	logger *zerolog.Logger
}

// NewWorker creates the snapshot worker. purger may be nil.
func NewWorker(cfg WorkerConfig, svc *Service, purger CachePurger, logger *zerolog.Logger) *Worker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Worker{
		cfg:    cfg,
		svc:    svc,
		purger: purger,
		logger: logger,
	}
}

// Run blocks until ctx is canceled. Snapshots need slugs and a snapshot
// store; cache purging needs a purger and a TTL. With neither it returns nil
// immediately.
func (w *Worker) Run(ctx context.Context) error {
	snapshots := len(w.cfg.Slugs) > 0 && w.svc.snapshots != nil
	purging := w.purger != nil && w.cfg.CacheTTL > 0
	purgeInterval := max(w.cfg.CacheTTL, defaultPurgeInterval)

	cfg := worker.TickerConfig{
		Name:       workerName,
		RunOnStart: true,
		Logger:     w.logger,
	}

	switch {
	case snapshots:
		cfg.Interval = w.cfg.Interval
		cfg.OnTick = w.snapshotAll

		if purging {
			cfg.SecondaryInterval = purgeInterval
			cfg.OnSecondaryTick = w.purgeCache
		}
	case purging:
		w.logger.Info().Msg("no snapshot slugs configured, only purging the source cache")

		cfg.Interval = purgeInterval
		cfg.OnTick = w.purgeCache
	default:
		w.logger.Info().Msg("snapshot worker disabled")

		return nil
	}

	return worker.TickerLoop(ctx, cfg) //nolint:wrapcheck // already wrapped with the worker name
}

func (w *Worker) snapshotAll(ctx context.Context) {
	for _, slug := range w.cfg.Slugs {
		if ctx.Err() != nil {
			return
		}

		err := worker.RunWithTimeout(ctx, defaultSnapshotTimeout, func(ctx context.Context) error {
			snap, err := w.svc.Snapshot(ctx, slug, w.cfg.Level)
			if err != nil {
				return err
			}

			w.logger.Info().
				Str(logFieldSlug, slug).
				Int(logFieldLevel, w.cfg.Level).
				Str("snapshot_id", snap.ID).
				Int("clusters", snap.Summary.Clusters).
				Msg("summary snapshot stored")

			return nil
		})
		if err != nil {
			w.logger.Error().Err(err).Str(logFieldSlug, slug).Int(logFieldLevel, w.cfg.Level).Msg("snapshot failed")
		}
	}
}

func (w *Worker) purgeCache(ctx context.Context) {
	removed, err := w.purger.DeleteStaleDocuments(ctx, time.Now().Add(-w.cfg.CacheTTL))
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to purge source cache")

		return
	}

	observability.SourceCachePurged.Add(float64(removed))

	if removed > 0 {
		w.logger.Debug().Int64("removed", removed).Msg("purged stale source documents")
	}
}
