package scoring

import "github.com/lueurxax/cluster-eval-board/internal/core/domain"

// mean accumulates present values only.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(s domain.Score) {
	if v, ok := s.Value(); ok {
		m.sum += v
		m.n++
	}
}

func (m *mean) result() domain.Score {
	if m.n == 0 {
		return domain.Absent()
	}

	return domain.Present(m.sum / float64(m.n))
}

type cohesionMean struct {
	tier mean
	raw  mean
}

// add counts c in both means only when it has a tier, so tier and raw
// means always cover the same clusters.
func (m *cohesionMean) add(c domain.Cohesion) {
	if !c.Tier.Available() || !c.Raw.IsPresent() {
		return
	}

	m.tier.add(domain.Present(float64(c.Tier)))
	m.raw.add(c.Raw)
}

func (m *cohesionMean) result() domain.CohesionSummary {
	return domain.CohesionSummary{
		TierMean: m.tier.result(),
		RawMean:  m.raw.result(),
		Count:    m.tier.n,
	}
}

// Summarize computes report-level means in a single pass over merged.
//
// Qualitative means cover clusters with a present value for that metric.
// Cohesion is reported per space as two independent means, one over tiers and
// one over raw statistics. Any mean with no contributing cluster is absent.
// The overall values are left absent; see WithOverall.
func Summarize(merged []domain.MergedClusterEvaluation) domain.ReportSummary {
	var clarity, coherence, consistency, distinctiveness mean

	var reduced, raw cohesionMean

	for i := range merged {
		m := &merged[i]

		if q := m.Qualitative; q != nil {
			clarity.add(q.Clarity)
			coherence.add(q.Coherence)
			consistency.add(q.Consistency)
			distinctiveness.add(q.Distinctiveness)
		}

		reduced.add(m.Reduced)
		raw.add(m.Raw)
	}

	return domain.ReportSummary{
		Clusters:        len(merged),
		Clarity:         clarity.result(),
		Coherence:       coherence.result(),
		Consistency:     consistency.result(),
		Distinctiveness: distinctiveness.result(),
		Reduced:         reduced.result(),
		Raw:             raw.result(),
	}
}

// WithOverall copies the report-wide cohesion values of src into summary unchanged.
func WithOverall(summary domain.ReportSummary, src domain.Sources) domain.ReportSummary {
	summary.Reduced.Overall = src.ClusterCohesion[domain.SpaceReduced].Overall
	summary.Raw.Overall = src.ClusterCohesion[domain.SpaceRaw].Overall

	return summary
}
