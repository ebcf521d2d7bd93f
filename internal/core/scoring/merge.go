package scoring

import (
	"fmt"

	"github.com/lueurxax/cluster-eval-board/internal/core/domain"
	apperrors "github.com/lueurxax/cluster-eval-board/internal/core/errors"
)

// Joiner merges clusters, their member arguments and the evaluation sources.
type Joiner struct {
	bucketizer *Bucketizer
}

// NewJoiner creates a joiner that tiers cohesion values with bucketizer.
func NewJoiner(bucketizer *Bucketizer) *Joiner {
	return &Joiner{bucketizer: bucketizer}
}

// Merge joins every cluster with the sources by inner id, and every member
// argument with the point-level sources by arg id.
//
// The clusters are used as given; callers pick the hierarchy level. Output
// follows the cluster order and, within a cluster, the argument order, so the
// result does not depend on how or when the source maps were populated.
func (j *Joiner) Merge(clusters []domain.Cluster, arguments []domain.Argument, src domain.Sources) ([]domain.MergedClusterEvaluation, error) {
	for i := range clusters {
		if clusters[i].InnerID == "" {
			return nil, fmt.Errorf("merge cluster %d (id %q): %w", i, clusters[i].ID, apperrors.ErrMissingInnerID)
		}
	}

	members := indexMembers(arguments)
	merged := make([]domain.MergedClusterEvaluation, 0, len(clusters))

	for _, c := range clusters {
		merged = append(merged, domain.MergedClusterEvaluation{
			Cluster:     c,
			Qualitative: lookupQualitative(src.Qualitative, c.InnerID),
			Reduced:     j.bucketizer.Cohesion(src.ClusterCohesion[domain.SpaceReduced].Lookup(c.InnerID), domain.SpaceReduced),
			Raw:         j.bucketizer.Cohesion(src.ClusterCohesion[domain.SpaceRaw].Lookup(c.InnerID), domain.SpaceRaw),
			Arguments:   j.mergeArguments(arguments, members[c.InnerID], src),
		})
	}

	return merged, nil
}

func (j *Joiner) mergeArguments(arguments []domain.Argument, indexes []int, src domain.Sources) []domain.ArgumentEvaluation {
	out := make([]domain.ArgumentEvaluation, 0, len(indexes))

	for _, idx := range indexes {
		arg := arguments[idx]
		out = append(out, domain.ArgumentEvaluation{
			Argument: arg,
			Reduced:  j.bucketizer.Cohesion(src.PointCohesion[domain.SpaceReduced].Lookup(arg.ArgID), domain.SpaceReduced),
			Raw:      j.bucketizer.Cohesion(src.PointCohesion[domain.SpaceRaw].Lookup(arg.ArgID), domain.SpaceRaw),
		})
	}

	return out
}

// indexMembers maps each cluster inner id to the positions of its arguments.
// An argument listing the same cluster twice is attached once.
func indexMembers(arguments []domain.Argument) map[string][]int {
	members := make(map[string][]int)

	for i, arg := range arguments {
		seen := make(map[string]struct{}, len(arg.ClusterIDs))

		for _, id := range arg.ClusterIDs {
			if _, dup := seen[id]; dup {
				continue
			}

			seen[id] = struct{}{}
			members[id] = append(members[id], i)
		}
	}

	return members
}

func lookupQualitative(m map[string]domain.QualitativeEvaluation, innerID string) *domain.QualitativeEvaluation {
	q, ok := m[innerID]
	if !ok {
		return nil
	}

	return &q
}
