// Package evaluation ties the upstream source client, the scoring engine and
// snapshot storage together for one report at a time.
package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lueurxax/cluster-eval-board/internal/core/domain"
	apperrors "github.com/lueurxax/cluster-eval-board/internal/core/errors"
	"github.com/lueurxax/cluster-eval-board/internal/core/evalsource"
	"github.com/lueurxax/cluster-eval-board/internal/core/scoring"
	"github.com/lueurxax/cluster-eval-board/internal/platform/observability"
	db "github.com/lueurxax/cluster-eval-board/internal/storage"
)

const (
	statusOK    = "ok"
	statusError = "error"

	logFieldSlug  = "slug"
	logFieldLevel = "level"
)

// Source fetches evaluation documents and starts upstream evaluation runs.
type Source interface {
	FetchAll(ctx context.Context, slug string, level int) (*evalsource.Bundle, error)
	RunConsistency(ctx context.Context, req evalsource.ConsistencyRequest) (*evalsource.RunResult, error)
	RunSilhouette(ctx context.Context, slug string, level int, space domain.Space) (*evalsource.RunResult, error)
}

// Evaluator merges and summarizes one level of a report.
type Evaluator interface {
	Evaluate(report *domain.Report, level int, src domain.Sources) (*scoring.Result, error)
}

// SnapshotStore persists summary history.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, slug string, level int, summary domain.ReportSummary) (*db.Snapshot, error)
	ListSnapshots(ctx context.Context, slug string, level, limit int) ([]db.Snapshot, error)
}

// Options configures upstream evaluation runs.
type Options struct {
	Model        string
	SamplingRate float64
}

// Evaluation is the merged view of one report level.
type Evaluation struct {
	Slug       string                           `json:"slug"`
	Level      int                              `json:"level"`
	Overview   string                           `json:"overview"`
	CommentNum int                              `json:"commentNum"`
	Clusters   []domain.MergedClusterEvaluation `json:"clusters"`
	Summary    domain.ReportSummary             `json:"summary"`
	Missing    []string                         `json:"missing,omitempty"`
}

// RunSummary reports the upstream runs started by Trigger.
type RunSummary struct {
	Slug        string                                 `json:"slug"`
	Level       int                                    `json:"level"`
	Consistency *evalsource.RunResult                  `json:"consistency"`
	Silhouette  map[domain.Space]*evalsource.RunResult `json:"silhouette"`
}

type Service struct {
	source    Source
	evaluator Evaluator
	snapshots SnapshotStore
	opts      Options
	logger    *zerolog.Logger
}

// NewService creates the service. snapshots may be nil, which disables history.
func NewService(source Source, evaluator Evaluator, snapshots SnapshotStore, opts Options, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Service{
		source:    source,
		evaluator: evaluator,
		snapshots: snapshots,
		opts:      opts,
		logger:    logger,
	}
}

// Evaluate fetches every source for slug at level and merges them.
func (s *Service) Evaluate(ctx context.Context, slug string, level int) (*Evaluation, error) {
	bundle, err := s.source.FetchAll(ctx, slug, level)
	if err != nil {
		observability.EvaluationsTotal.WithLabelValues(statusError).Inc()

		return nil, fmt.Errorf("fetch sources for %s: %w", slug, err)
	}

	start := time.Now()
	result, err := s.evaluator.Evaluate(bundle.Report, level, bundle.Sources)

	observability.MergeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		observability.EvaluationsTotal.WithLabelValues(statusError).Inc()

		return nil, fmt.Errorf("evaluate %s: %w", slug, err)
	}

	observability.EvaluationsTotal.WithLabelValues(statusOK).Inc()
	observability.MergedClusters.Observe(float64(len(result.Clusters)))

	eval := &Evaluation{
		Slug:       slug,
		Level:      result.Level,
		Overview:   bundle.Report.Overview,
		CommentNum: bundle.Report.CommentNum,
		Clusters:   result.Clusters,
		Summary:    result.Summary,
	}

	for _, doc := range bundle.Documents {
		if doc.Missing {
			eval.Missing = append(eval.Missing, doc.Name)
		}
	}

	return eval, nil
}

// Documents returns the upstream documents for slug at level as fetched.
func (s *Service) Documents(ctx context.Context, slug string, level int) ([]evalsource.Document, error) {
	bundle, err := s.source.FetchAll(ctx, slug, level)
	if err != nil {
		return nil, fmt.Errorf("fetch documents for %s: %w", slug, err)
	}

	return bundle.Documents, nil
}

// Trigger starts the LLM judgment and the silhouette computation in both
// spaces. All runs are attempted; the first failure is returned.
func (s *Service) Trigger(ctx context.Context, slug string, level int) (*RunSummary, error) {
	if err := evalsource.ValidateSlug(slug); err != nil {
		return nil, fmt.Errorf("trigger: %w", err)
	}

	if level < 1 {
		return nil, fmt.Errorf("trigger: %w", apperrors.ErrInvalidLevel)
	}

	summary := &RunSummary{Slug: slug, Level: level}
	silhouette := make([]*evalsource.RunResult, len(domain.Spaces))

	var g errgroup.Group

	g.Go(func() error {
		res, err := s.source.RunConsistency(ctx, evalsource.ConsistencyRequest{
			Dataset:      slug,
			Level:        level,
			SamplingRate: s.opts.SamplingRate,
			Model:        s.opts.Model,
		})
		if err != nil {
			return err
		}

		summary.Consistency = res

		return nil
	})

	for i, space := range domain.Spaces {
		g.Go(func() error {
			res, err := s.source.RunSilhouette(ctx, slug, level, space)
			if err != nil {
				return err
			}

			silhouette[i] = res

			return nil
		})
	}

	err := g.Wait()

	summary.Silhouette = make(map[domain.Space]*evalsource.RunResult, len(domain.Spaces))

	for i, space := range domain.Spaces {
		if silhouette[i] != nil {
			summary.Silhouette[space] = silhouette[i]
		}
	}

	if err != nil {
		s.logger.Error().Err(err).Str(logFieldSlug, slug).Int(logFieldLevel, level).Msg("evaluation run failed")

		return summary, fmt.Errorf("trigger %s: %w", slug, err)
	}

	s.logger.Info().Str(logFieldSlug, slug).Int(logFieldLevel, level).Msg("evaluation runs started")

	return summary, nil
}

// Snapshot evaluates slug at level and stores the summary.
func (s *Service) Snapshot(ctx context.Context, slug string, level int) (*db.Snapshot, error) {
	if s.snapshots == nil {
		return nil, apperrors.ErrSnapshotsDisabled
	}

	eval, err := s.Evaluate(ctx, slug, level)
	if err != nil {
		observability.SnapshotsWritten.WithLabelValues(statusError).Inc()

		return nil, err
	}

	snap, err := s.snapshots.InsertSnapshot(ctx, slug, level, eval.Summary)
	if err != nil {
		observability.SnapshotsWritten.WithLabelValues(statusError).Inc()

		return nil, fmt.Errorf("store snapshot for %s: %w", slug, err)
	}

	observability.SnapshotsWritten.WithLabelValues(statusOK).Inc()
	observability.SnapshotLastSuccess.WithLabelValues(slug).Set(float64(snap.CreatedAt.Unix()))

	return snap, nil
}

// Snapshots returns stored summaries for slug at level, newest first.
func (s *Service) Snapshots(ctx context.Context, slug string, level, limit int) ([]db.Snapshot, error) {
	if s.snapshots == nil {
		return nil, apperrors.ErrSnapshotsDisabled
	}

	snaps, err := s.snapshots.ListSnapshots(ctx, slug, level, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots for %s: %w", slug, err)
	}

	return snaps, nil
}
