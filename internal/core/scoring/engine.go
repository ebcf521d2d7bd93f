package scoring

import (
	"fmt"

	"github.com/lueurxax/cluster-eval-board/internal/core/domain"
	apperrors "github.com/lueurxax/cluster-eval-board/internal/core/errors"
)

// Result is the merged evaluation of one hierarchy level of a report.
type Result struct {
	Level    int                              `json:"level"`
	Clusters []domain.MergedClusterEvaluation `json:"clusters"`
	Summary  domain.ReportSummary             `json:"summary"`
}

// Engine composes level filtering, merging and aggregation.
type Engine struct {
	joiner *Joiner
}

// NewEngine creates an engine with the given tier thresholds.
func NewEngine(cfg BucketConfig) (*Engine, error) {
	bucketizer, err := NewBucketizer(cfg)
	if err != nil {
		return nil, err
	}

	return &Engine{joiner: NewJoiner(bucketizer)}, nil
}

// Evaluate merges the clusters of report at level with src and summarizes them.
func (e *Engine) Evaluate(report *domain.Report, level int, src domain.Sources) (*Result, error) {
	if level < 1 {
		return nil, fmt.Errorf("evaluate level %d: %w", level, apperrors.ErrInvalidLevel)
	}

	clusters := domain.FilterLevel(report.Clusters, level)

	merged, err := e.joiner.Merge(clusters, report.Arguments, src)
	if err != nil {
		return nil, err
	}

	return &Result{
		Level:    level,
		Clusters: merged,
		Summary:  WithOverall(Summarize(merged), src),
	}, nil
}
