package evaluation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/cluster-eval-board/internal/core/domain"
	apperrors "github.com/lueurxax/cluster-eval-board/internal/core/errors"
	"github.com/lueurxax/cluster-eval-board/internal/core/evalsource"
	"github.com/lueurxax/cluster-eval-board/internal/core/scoring"
	db "github.com/lueurxax/cluster-eval-board/internal/storage"
)

const testSlug = "city-survey"

var errUpstream = errors.New("upstream down")

type fakeSource struct {
	mu          sync.Mutex
	bundle      *evalsource.Bundle
	fetchErr    error
	runErr      map[string]error
	consistency []evalsource.ConsistencyRequest
	silhouette  []domain.Space
}

func (f *fakeSource) FetchAll(_ context.Context, slug string, level int) (*evalsource.Bundle, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}

	return f.bundle, nil
}

func (f *fakeSource) RunConsistency(_ context.Context, req evalsource.ConsistencyRequest) (*evalsource.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.consistency = append(f.consistency, req)

	if err := f.runErr["consistency"]; err != nil {
		return nil, err
	}

	return &evalsource.RunResult{Status: "success", Dataset: req.Dataset}, nil
}

func (f *fakeSource) RunSilhouette(_ context.Context, _ string, _ int, space domain.Space) (*evalsource.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.silhouette = append(f.silhouette, space)

	if err := f.runErr[string(space)]; err != nil {
		return nil, err
	}

	return &evalsource.RunResult{Status: "success"}, nil
}

type fakeStore struct {
	mu    sync.Mutex
	snaps []db.Snapshot
	err   error
}

func (f *fakeStore) InsertSnapshot(_ context.Context, slug string, level int, summary domain.ReportSummary) (*db.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	snap := db.Snapshot{ID: "snap", Slug: slug, Level: level, Summary: summary, CreatedAt: time.Now()}
	f.snaps = append(f.snaps, snap)

	return &snap, nil
}

func (f *fakeStore) ListSnapshots(_ context.Context, slug string, level, limit int) ([]db.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []db.Snapshot

	for _, s := range f.snaps {
		if s.Slug == slug && s.Level == level {
			out = append(out, s)
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.snaps)
}

func testBundle() *evalsource.Bundle {
	return &evalsource.Bundle{
		Report: &domain.Report{
			Overview:   "Residents want better transit.",
			CommentNum: 2,
			Arguments: []domain.Argument{
				{ArgID: "A1_0", Text: "more buses", ClusterIDs: []string{"1_1"}},
				{ArgID: "A2_0", Text: "bigger parks", ClusterIDs: []string{"1_2"}},
			},
			Clusters: []domain.Cluster{
				{ID: "1_1", InnerID: "1_1", Level: 1, Label: "Transit"},
				{ID: "1_2", InnerID: "1_2", Level: 1, Label: "Parks"},
				{ID: "2_1", InnerID: "2_1", Level: 2, Label: "Buses", ParentID: "1_1"},
			},
		},
		Sources: domain.Sources{
			Qualitative: map[string]domain.QualitativeEvaluation{
				"1_1": {Clarity: domain.Present(4), Coherence: domain.Present(3)},
			},
			ClusterCohesion: map[domain.Space]domain.CohesionMap{
				domain.SpaceRaw: {Scores: map[string]domain.Score{"1_1": domain.Present(0.02), "1_2": domain.Present(-0.1)}},
			},
		},
		Documents: []evalsource.Document{
			{Name: evalsource.DocReport},
			{Name: evalsource.DocPointRaw, Missing: true},
		},
	}
}

func newTestService(t *testing.T, src *fakeSource, store SnapshotStore) *Service {
	t.Helper()

	engine, err := scoring.NewEngine(scoring.DefaultBucketConfig())
	require.NoError(t, err)

	logger := zerolog.Nop()

	return NewService(src, engine, store, Options{Model: "gpt-4o-mini", SamplingRate: 0.5}, &logger)
}

func TestService_Evaluate(t *testing.T) {
	svc := newTestService(t, &fakeSource{bundle: testBundle()}, nil)

	eval, err := svc.Evaluate(context.Background(), testSlug, 1)
	require.NoError(t, err)

	require.Equal(t, testSlug, eval.Slug)
	require.Equal(t, "Residents want better transit.", eval.Overview)
	require.Len(t, eval.Clusters, 2)
	require.Equal(t, domain.Tier(3), eval.Clusters[0].Raw.Tier)
	require.Equal(t, domain.Tier(1), eval.Clusters[1].Raw.Tier)
	require.Nil(t, eval.Clusters[1].Qualitative)
	require.Equal(t, []string{evalsource.DocPointRaw}, eval.Missing)

	clarity, ok := eval.Summary.Clarity.Value()
	require.True(t, ok)
	require.InDelta(t, 4.0, clarity, 1e-12)
}

func TestService_Evaluate_Errors(t *testing.T) {
	svc := newTestService(t, &fakeSource{fetchErr: apperrors.ErrReportNotFound}, nil)

	_, err := svc.Evaluate(context.Background(), testSlug, 1)
	require.ErrorIs(t, err, apperrors.ErrReportNotFound)

	bundle := testBundle()
	bundle.Report.Clusters[0].InnerID = ""
	svc = newTestService(t, &fakeSource{bundle: bundle}, nil)

	_, err = svc.Evaluate(context.Background(), testSlug, 1)
	require.ErrorIs(t, err, apperrors.ErrMissingInnerID)
}

func TestService_Trigger(t *testing.T) {
	src := &fakeSource{}
	svc := newTestService(t, src, nil)

	runs, err := svc.Trigger(context.Background(), testSlug, 2)
	require.NoError(t, err)
	require.Equal(t, "success", runs.Consistency.Status)
	require.Len(t, runs.Silhouette, 2)
	require.ElementsMatch(t, domain.Spaces, src.silhouette)
	require.Equal(t, []evalsource.ConsistencyRequest{{
		Dataset:      testSlug,
		Level:        2,
		SamplingRate: 0.5,
		Model:        "gpt-4o-mini",
	}}, src.consistency)
}

func TestService_Trigger_PartialFailure(t *testing.T) {
	src := &fakeSource{runErr: map[string]error{string(domain.SpaceRaw): errUpstream}}
	svc := newTestService(t, src, nil)

	runs, err := svc.Trigger(context.Background(), testSlug, 1)
	require.ErrorIs(t, err, errUpstream)
	require.NotNil(t, runs.Consistency, "other runs still happen")
	require.Contains(t, runs.Silhouette, domain.SpaceReduced)
	require.NotContains(t, runs.Silhouette, domain.SpaceRaw)

	_, err = svc.Trigger(context.Background(), "", 1)
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestService_Trigger_RejectsPathSlug(t *testing.T) {
	src := &fakeSource{}
	svc := newTestService(t, src, nil)

	runs, err := svc.Trigger(context.Background(), "x/prompt", 1)
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	require.Nil(t, runs)
	require.Empty(t, src.consistency)
	require.Empty(t, src.silhouette)
}

func TestService_Snapshots(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(t, &fakeSource{bundle: testBundle()}, store)

	snap, err := svc.Snapshot(context.Background(), testSlug, 1)
	require.NoError(t, err)
	require.Equal(t, 2, snap.Summary.Clusters)

	snaps, err := svc.Snapshots(context.Background(), testSlug, 1, 10)
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	snaps, err = svc.Snapshots(context.Background(), testSlug, 2, 10)
	require.NoError(t, err)
	require.Empty(t, snaps)
}

func TestService_SnapshotsDisabled(t *testing.T) {
	svc := newTestService(t, &fakeSource{bundle: testBundle()}, nil)

	_, err := svc.Snapshot(context.Background(), testSlug, 1)
	require.ErrorIs(t, err, apperrors.ErrSnapshotsDisabled)

	_, err = svc.Snapshots(context.Background(), testSlug, 1, 10)
	require.ErrorIs(t, err, apperrors.ErrSnapshotsDisabled)
}
