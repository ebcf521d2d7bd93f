package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lueurxax/cluster-eval-board/internal/core/domain"
	apperrors "github.com/lueurxax/cluster-eval-board/internal/core/errors"
)

func newTestJoiner(t *testing.T) *Joiner {
	t.Helper()

	return NewJoiner(newTestBucketizer(t))
}

func qualitative(clarity, coherence, consistency, distinctiveness float64, comment string) domain.QualitativeEvaluation {
	return domain.QualitativeEvaluation{
		Clarity:         domain.Present(clarity),
		Coherence:       domain.Present(coherence),
		Consistency:     domain.Present(consistency),
		Distinctiveness: domain.Present(distinctiveness),
		Comment:         comment,
	}
}

func scores(kv map[string]float64) map[string]domain.Score {
	out := make(map[string]domain.Score, len(kv))
	for k, v := range kv {
		out[k] = domain.Present(v)
	}

	return out
}

func testClusters() []domain.Cluster {
	return []domain.Cluster{
		{ID: "1", InnerID: "c1", Label: "Transit", Level: 1, Value: 2},
		{ID: "2", InnerID: "c2", Label: "Parks", Level: 1, Value: 1},
	}
}

func testArguments() []domain.Argument {
	return []domain.Argument{
		{ArgID: "A1_0", Text: "more buses", ClusterIDs: []string{"c1", "c1-1"}},
		{ArgID: "A2_0", Text: "bigger parks", ClusterIDs: []string{"c2"}},
		{ArgID: "A3_0", Text: "later trains", ClusterIDs: []string{"c1", "c1"}},
	}
}

func testSources() domain.Sources {
	return domain.Sources{
		Qualitative: map[string]domain.QualitativeEvaluation{
			"c1": qualitative(4, 5, 4, 3, "clear"),
		},
		ClusterCohesion: map[domain.Space]domain.CohesionMap{
			domain.SpaceRaw: {
				Scores:  scores(map[string]float64{"c1": 0.02, "c2": -0.10}),
				Overall: domain.Present(0.01),
			},
			domain.SpaceReduced: {
				Scores: scores(map[string]float64{"c1": 0.4}),
			},
		},
		PointCohesion: map[domain.Space]domain.CohesionMap{
			domain.SpaceRaw:     {Scores: scores(map[string]float64{"A1_0": 0.12, "A2_0": -0.01})},
			domain.SpaceReduced: {Scores: scores(map[string]float64{"A3_0": -0.3})},
		},
	}
}

func TestMerge_EndToEnd(t *testing.T) {
	j := newTestJoiner(t)

	merged, err := j.Merge(testClusters(), testArguments(), testSources())
	require.NoError(t, err)
	require.Len(t, merged, 2)

	c1, c2 := merged[0], merged[1]

	require.Equal(t, "c1", c1.Cluster.InnerID)
	require.Equal(t, domain.Tier(3), c1.Raw.Tier)
	require.Equal(t, domain.Tier(4), c1.Reduced.Tier)
	require.NotNil(t, c1.Qualitative)
	require.Equal(t, "clear", c1.Qualitative.Comment)

	require.Equal(t, "c2", c2.Cluster.InnerID)
	require.Equal(t, domain.Tier(1), c2.Raw.Tier)
	require.Equal(t, domain.TierUnavailable, c2.Reduced.Tier)
	require.False(t, c2.Reduced.Raw.IsPresent())
	require.Nil(t, c2.Qualitative)

	summary := Summarize(merged)
	clarity, ok := summary.Clarity.Value()
	require.True(t, ok)
	require.InDelta(t, 4.0, clarity, 1e-9)
}

func TestMerge_Members(t *testing.T) {
	j := newTestJoiner(t)

	merged, err := j.Merge(testClusters(), testArguments(), testSources())
	require.NoError(t, err)

	c1 := merged[0]
	require.Len(t, c1.Arguments, 2)
	require.Equal(t, "A1_0", c1.Arguments[0].ArgID)
	require.Equal(t, "A3_0", c1.Arguments[1].ArgID)

	require.Equal(t, domain.Tier(5), c1.Arguments[0].Raw.Tier)
	require.Equal(t, domain.TierUnavailable, c1.Arguments[0].Reduced.Tier)
	require.Equal(t, domain.Tier(1), c1.Arguments[1].Reduced.Tier)
	require.Equal(t, domain.TierUnavailable, c1.Arguments[1].Raw.Tier)

	c2 := merged[1]
	require.Len(t, c2.Arguments, 1)
	require.Equal(t, domain.Tier(2), c2.Arguments[0].Raw.Tier)
}

func TestMerge_OverallKeyIsNotACluster(t *testing.T) {
	j := newTestJoiner(t)

	src := testSources()
	src.ClusterCohesion[domain.SpaceRaw].Scores[domain.OverallKey] = domain.Present(0.5)

	clusters := []domain.Cluster{{ID: "x", InnerID: domain.OverallKey, Level: 1}}

	merged, err := j.Merge(clusters, nil, src)
	require.NoError(t, err)
	require.Equal(t, domain.TierUnavailable, merged[0].Raw.Tier)
}

func TestMerge_MissingInnerID(t *testing.T) {
	j := newTestJoiner(t)

	clusters := []domain.Cluster{{ID: "1", InnerID: "c1"}, {ID: "2"}}

	_, err := j.Merge(clusters, nil, testSources())
	require.ErrorIs(t, err, apperrors.ErrMissingInnerID)
}

func TestMerge_EmptySources(t *testing.T) {
	j := newTestJoiner(t)

	merged, err := j.Merge(testClusters(), testArguments(), domain.Sources{})
	require.NoError(t, err)
	require.Len(t, merged, 2)

	for _, m := range merged {
		require.Nil(t, m.Qualitative)
		require.Equal(t, domain.TierUnavailable, m.Raw.Tier)
		require.Equal(t, domain.TierUnavailable, m.Reduced.Tier)

		for _, a := range m.Arguments {
			require.False(t, a.Raw.Raw.IsPresent())
			require.False(t, a.Reduced.Raw.IsPresent())
		}
	}
}

// Sources are filled by concurrent fetches; the merge must not depend on
// which one arrived first.
func TestMerge_OrderIndependent(t *testing.T) {
	j := newTestJoiner(t)
	base := testSources()

	type part func(*domain.Sources)

	parts := []part{
		func(s *domain.Sources) { s.Qualitative = base.Qualitative },
		func(s *domain.Sources) {
			s.ClusterCohesion[domain.SpaceReduced] = base.ClusterCohesion[domain.SpaceReduced]
			s.PointCohesion[domain.SpaceReduced] = base.PointCohesion[domain.SpaceReduced]
		},
		func(s *domain.Sources) {
			s.ClusterCohesion[domain.SpaceRaw] = base.ClusterCohesion[domain.SpaceRaw]
			s.PointCohesion[domain.SpaceRaw] = base.PointCohesion[domain.SpaceRaw]
		},
	}

	permutations := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

	var want []domain.MergedClusterEvaluation

	for _, perm := range permutations {
		src := domain.Sources{
			ClusterCohesion: map[domain.Space]domain.CohesionMap{},
			PointCohesion:   map[domain.Space]domain.CohesionMap{},
		}

		for _, idx := range perm {
			parts[idx](&src)
		}

		got, err := j.Merge(testClusters(), testArguments(), src)
		require.NoError(t, err)

		if want == nil {
			want = got

			continue
		}

		require.Equal(t, want, got, "permutation %v", perm)
	}
}

func TestMerge_ReversedMapInsertion(t *testing.T) {
	j := newTestJoiner(t)

	forward := scores(map[string]float64{})
	backward := scores(map[string]float64{})
	keys := []string{"c1", "c2"}
	vals := []float64{0.02, -0.10}

	for i := range keys {
		forward[keys[i]] = domain.Present(vals[i])
	}

	for i := len(keys) - 1; i >= 0; i-- {
		backward[keys[i]] = domain.Present(vals[i])
	}

	mk := func(m map[string]domain.Score) domain.Sources {
		return domain.Sources{ClusterCohesion: map[domain.Space]domain.CohesionMap{domain.SpaceRaw: {Scores: m}}}
	}

	a, err := j.Merge(testClusters(), nil, mk(forward))
	require.NoError(t, err)

	b, err := j.Merge(testClusters(), nil, mk(backward))
	require.NoError(t, err)

	require.Equal(t, a, b)
}
