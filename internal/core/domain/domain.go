package domain

import "encoding/json"

// OverallKey is the reserved key carrying the report-wide cohesion value
// inside a cluster-level cohesion document.
const OverallKey = "__overall"

// Cluster is a node of the hierarchical cluster report.
type Cluster struct {
	ID       string    `json:"id"`
	InnerID  string    `json:"innerId"`
	Label    string    `json:"label"`
	Level    int       `json:"level"`
	ParentID string    `json:"parentId,omitempty"`
	Takeaway string    `json:"takeaway"`
	Value    int       `json:"value"`
	Children []Cluster `json:"children,omitempty"`
}

// IsTopLevel reports whether the cluster sits at the first hierarchy level
// without a parent.
func (c *Cluster) IsTopLevel() bool {
	return c.Level == 1 && c.ParentID == ""
}

// Argument is an atomic opinion extracted from a comment.
type Argument struct {
	ArgID      string   `json:"argId"`
	Text       string   `json:"argument"`
	ClusterIDs []string `json:"clusterIds"`
}

// Report is the cluster report tree produced by the clustering pipeline.
type Report struct {
	Overview   string     `json:"overview"`
	CommentNum int        `json:"commentNum"`
	Arguments  []Argument `json:"arguments"`
	Clusters   []Cluster  `json:"clusters"`
}

// FilterLevel returns the clusters at the given hierarchy level, preserving order.
// Level 1 additionally excludes clusters that declare a parent.
func FilterLevel(clusters []Cluster, level int) []Cluster {
	out := make([]Cluster, 0, len(clusters))

	for _, c := range clusters {
		if c.Level != level {
			continue
		}

		if level == 1 && c.ParentID != "" {
			continue
		}

		out = append(out, c)
	}

	return out
}

// Space identifies the vector space a cohesion statistic was computed in.
type Space string

// Cohesion spaces.
const (
	// SpaceReduced is the post-dimensionality-reduction space (UMAP).
	SpaceReduced Space = "reduced"
	// SpaceRaw is the original high-dimensional embedding space.
	SpaceRaw Space = "raw"
)

// Spaces lists every cohesion space in display order.
var Spaces = []Space{SpaceReduced, SpaceRaw}

// Granularity identifies whether a cohesion statistic is per cluster or per argument.
type Granularity string

// Cohesion granularities.
const (
	GranularityCluster Granularity = "cluster"
	GranularityPoint   Granularity = "point"
)

// QualitativeEvaluation holds the LLM judgement of a single cluster.
type QualitativeEvaluation struct {
	Clarity         Score  `json:"clarity"`
	Coherence       Score  `json:"coherence"`
	Consistency     Score  `json:"consistency"`
	Distinctiveness Score  `json:"distinctiveness"`
	Comment         string `json:"comment"`
}

// Metric names for qualitative scores.
const (
	MetricClarity         = "clarity"
	MetricCoherence       = "coherence"
	MetricConsistency     = "consistency"
	MetricDistinctiveness = "distinctiveness"
)

// QualitativeMetrics lists the qualitative metric names in display order.
var QualitativeMetrics = []string{MetricClarity, MetricCoherence, MetricConsistency, MetricDistinctiveness}

// Metric returns the score for a metric name. Unknown names are absent.
func (q *QualitativeEvaluation) Metric(name string) Score {
	switch name {
	case MetricClarity:
		return q.Clarity
	case MetricCoherence:
		return q.Coherence
	case MetricConsistency:
		return q.Consistency
	case MetricDistinctiveness:
		return q.Distinctiveness
	default:
		return Absent()
	}
}

// CohesionMap holds one cohesion document: scores keyed by cluster inner id
// or argument id, plus the optional report-wide value.
type CohesionMap struct {
	Scores  map[string]Score
	Overall Score
}

// Lookup returns the score for key. The reserved overall key never matches.
func (m CohesionMap) Lookup(key string) Score {
	if key == OverallKey || m.Scores == nil {
		return Absent()
	}

	return m.Scores[key]
}

// Sources bundles the evaluation inputs joined against a report.
// Each map is keyed by inner id (clusters) or arg id (points).
type Sources struct {
	Qualitative     map[string]QualitativeEvaluation
	ClusterCohesion map[Space]CohesionMap
	PointCohesion   map[Space]CohesionMap
}

// Tier is a discrete 1–5 quality rating. The zero value means unavailable.
type Tier int

// TierUnavailable marks a tier with no underlying statistic.
const TierUnavailable Tier = 0

// Tier bounds.
const (
	TierMin Tier = 1
	TierMax Tier = 5
)

// Available reports whether the tier holds a rating.
func (t Tier) Available() bool {
	return t >= TierMin && t <= TierMax
}

// MarshalJSON renders an unavailable tier as null.
func (t Tier) MarshalJSON() ([]byte, error) {
	if !t.Available() {
		return []byte("null"), nil
	}

	return json.Marshal(int(t))
}

// Cohesion is a raw cohesion statistic together with the tier derived from it.
type Cohesion struct {
	Raw  Score `json:"raw"`
	Tier Tier  `json:"tier"`
}

// ArgumentEvaluation is a member argument with its point-level cohesion.
type ArgumentEvaluation struct {
	Argument
	Reduced Cohesion `json:"reduced"`
	Raw     Cohesion `json:"raw"`
}

// MergedClusterEvaluation is a cluster joined with every evaluation source.
// Qualitative is nil when the qualitative source had no entry for the cluster.
type MergedClusterEvaluation struct {
	Cluster     Cluster                `json:"cluster"`
	Qualitative *QualitativeEvaluation `json:"qualitative"`
	Reduced     Cohesion               `json:"reduced"`
	Raw         Cohesion               `json:"raw"`
	Arguments   []ArgumentEvaluation   `json:"arguments"`
}

// CohesionFor returns the cluster cohesion for a space.
func (m *MergedClusterEvaluation) CohesionFor(space Space) Cohesion {
	if space == SpaceRaw {
		return m.Raw
	}

	return m.Reduced
}

// CohesionSummary aggregates one space's cohesion over a report.
// TierMean and RawMean are computed over the same subset of clusters.
type CohesionSummary struct {
	TierMean Score `json:"tierMean"`
	RawMean  Score `json:"rawMean"`
	Count    int   `json:"count"`
	Overall  Score `json:"overall"`
}

// ReportSummary is the whole-report aggregate of merged evaluations.
type ReportSummary struct {
	Clusters        int             `json:"clusters"`
	Clarity         Score           `json:"clarity"`
	Coherence       Score           `json:"coherence"`
	Consistency     Score           `json:"consistency"`
	Distinctiveness Score           `json:"distinctiveness"`
	Reduced         CohesionSummary `json:"reduced"`
	Raw             CohesionSummary `json:"raw"`
}

// Metric returns the qualitative mean for a metric name.
func (s *ReportSummary) Metric(name string) Score {
	switch name {
	case MetricClarity:
		return s.Clarity
	case MetricCoherence:
		return s.Coherence
	case MetricConsistency:
		return s.Consistency
	case MetricDistinctiveness:
		return s.Distinctiveness
	default:
		return Absent()
	}
}

// CohesionFor returns the cohesion summary for a space.
func (s *ReportSummary) CohesionFor(space Space) CohesionSummary {
	if space == SpaceRaw {
		return s.Raw
	}

	return s.Reduced
}
