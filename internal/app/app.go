// Package app provides the main application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and exposes methods to run
// different operational modes:
//
//   - HTTP mode: dashboard, probes and metrics
//   - Snapshot mode: periodic summary snapshots and cache housekeeping
//
// Run starts both; each can also be run on its own.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lueurxax/cluster-eval-board/internal/core/evalsource"
	"github.com/lueurxax/cluster-eval-board/internal/core/scoring"
	"github.com/lueurxax/cluster-eval-board/internal/dashboard"
	"github.com/lueurxax/cluster-eval-board/internal/platform/config"
	"github.com/lueurxax/cluster-eval-board/internal/platform/observability"
	"github.com/lueurxax/cluster-eval-board/internal/process/evaluation"
	db "github.com/lueurxax/cluster-eval-board/internal/storage"
)

// App holds the application dependencies and provides methods to run different modes.
type App struct {
	cfg      *config.Config
	database *db.DB
	service  *evaluation.Service
	logger   *zerolog.Logger
}

// New wires the application. database may be nil, which disables the
// document cache and snapshot history.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) (*App, error) {
	buckets, err := cfg.BucketConfig()
	if err != nil {
		return nil, err
	}

	engine, err := scoring.NewEngine(buckets)
	if err != nil {
		return nil, fmt.Errorf("scoring engine init: %w", err)
	}

	var (
		cache     evalsource.Cache
		snapshots evaluation.SnapshotStore
	)

	if database != nil {
		cache = database
		snapshots = database
	}

	client := evalsource.New(evalsource.Config{
		BaseURL:   cfg.UpstreamBaseURL,
		AdminKey:  cfg.UpstreamAdminKey,
		PublicKey: cfg.UpstreamPublicKey,
		Timeout:   cfg.UpstreamTimeout,
		RPS:       cfg.UpstreamRPS,
		CacheTTL:  cfg.SourceCacheTTL,
	}, cache, logger)

	service := evaluation.NewService(client, engine, snapshots, evaluation.Options{
		Model:        cfg.EvalModel,
		SamplingRate: cfg.EvalSamplingRate,
	}, logger)

	return &App{
		cfg:      cfg,
		database: database,
		service:  service,
		logger:   logger,
	}, nil
}

// Service returns the evaluation service.
func (a *App) Service() *evaluation.Service {
	return a.service
}

// Run serves HTTP and runs the snapshot worker until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.RunHTTP(gctx)
	})

	g.Go(func() error {
		err := a.RunSnapshots(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}

		return err
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("app run: %w", err)
	}

	return nil
}

// RunHTTP serves the dashboard, probes and metrics.
func (a *App) RunHTTP(ctx context.Context) error {
	handler, err := dashboard.NewHandler(dashboard.Config{
		APIKey:       a.cfg.DashboardAPIKey,
		DefaultLevel: a.cfg.DefaultLevel,
		Language:     a.cfg.DashboardLanguage,
		RPS:          a.cfg.DashboardRPS,
	}, a.service, a.logger)
	if err != nil {
		return fmt.Errorf("dashboard handler init: %w", err)
	}

	if a.cfg.DashboardAPIKey == "" {
		a.logger.Warn().Msg("DASHBOARD_API_KEY is not set, dashboard is open")
	}

	var pinger observability.Pinger
	if a.database != nil {
		pinger = a.database
	}

	server := observability.NewServer(pinger, a.cfg.DashboardPort, handler.Routes(), a.logger)

	return server.Start(ctx) //nolint:wrapcheck // already wrapped by the server
}

// RunSnapshots runs the snapshot worker for SNAPSHOT_SLUGS.
func (a *App) RunSnapshots(ctx context.Context) error {
	var purger evaluation.CachePurger
	if a.database != nil {
		purger = a.database
	}

	w := evaluation.NewWorker(evaluation.WorkerConfig{
		Slugs:    a.cfg.SnapshotSlugs,
		Level:    a.cfg.DefaultLevel,
		Interval: a.cfg.SnapshotInterval,
		CacheTTL: a.cfg.SourceCacheTTL,
	}, a.service, purger, a.logger)

	return w.Run(ctx) //nolint:wrapcheck // worker errors carry the worker name
}
