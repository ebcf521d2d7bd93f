package evalsource

import (
	"encoding/json"
	"fmt"

	"github.com/lueurxax/cluster-eval-board/internal/core/domain"
)

// Keys of the wrapped cohesion document written by the silhouette job.
const (
	keyClusters   = "clusters"
	keyOverallAvg = "overall_avg"
)

// Qualitative metrics are judged on a 1–5 scale.
const (
	minQualitativeScore = 1
	maxQualitativeScore = 5
)

type wireReport struct {
	Overview   string         `json:"overview"`
	CommentNum int            `json:"comment_num"`
	Arguments  []wireArgument `json:"arguments"`
	Clusters   []wireCluster  `json:"clusters"`
}

type wireArgument struct {
	ArgID      string   `json:"arg_id"`
	Argument   string   `json:"argument"`
	ClusterIDs []string `json:"cluster_ids"`
}

type wireCluster struct {
	ID           string        `json:"id"`
	InnerID      string        `json:"innerId"`
	InnerIDSnake string        `json:"inner_id"`
	Label        string        `json:"label"`
	Level        int           `json:"level"`
	Parent       string        `json:"parent"`
	ParentID     string        `json:"parentId"`
	Takeaway     string        `json:"takeaway"`
	Value        int           `json:"value"`
	Children     []wireCluster `json:"children"`
}

func (w *wireCluster) toDomain() domain.Cluster {
	c := domain.Cluster{
		ID:       w.ID,
		InnerID:  firstNonEmpty(w.InnerID, w.InnerIDSnake),
		Label:    w.Label,
		Level:    w.Level,
		ParentID: firstNonEmpty(w.ParentID, w.Parent),
		Takeaway: w.Takeaway,
		Value:    w.Value,
	}

	for i := range w.Children {
		c.Children = append(c.Children, w.Children[i].toDomain())
	}

	return c
}

// DecodeReport parses the report tree document.
// Clusters are returned as sent; a missing inner id is reported later by the merge.
func DecodeReport(data []byte) (*domain.Report, error) {
	var w wireReport
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}

	report := &domain.Report{
		Overview:   w.Overview,
		CommentNum: w.CommentNum,
		Arguments:  make([]domain.Argument, 0, len(w.Arguments)),
		Clusters:   make([]domain.Cluster, 0, len(w.Clusters)),
	}

	for _, a := range w.Arguments {
		report.Arguments = append(report.Arguments, domain.Argument{
			ArgID:      a.ArgID,
			Text:       a.Argument,
			ClusterIDs: a.ClusterIDs,
		})
	}

	for i := range w.Clusters {
		report.Clusters = append(report.Clusters, w.Clusters[i].toDomain())
	}

	return report, nil
}

type wireQualitative struct {
	Clarity         domain.Score    `json:"clarity"`
	Coherence       domain.Score    `json:"coherence"`
	Consistency     domain.Score    `json:"consistency"`
	Distinctiveness domain.Score    `json:"distinctiveness"`
	Comment         json.RawMessage `json:"comment"`
}

// DecodeQualitative parses the LLM evaluation document keyed by cluster id.
// Entries nested one level under their own id are unwrapped. Entries that are
// not objects are skipped, and metrics outside the 1–5 scale are absent.
func DecodeQualitative(data []byte) (map[string]domain.QualitativeEvaluation, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("decode qualitative evaluation: %w", err)
	}

	out := make(map[string]domain.QualitativeEvaluation, len(top))

	for id, raw := range top {
		entry, ok := unwrapSelfKeyed(id, raw)
		if !ok {
			continue
		}

		var w wireQualitative
		if err := json.Unmarshal(entry, &w); err != nil {
			continue
		}

		out[id] = domain.QualitativeEvaluation{
			Clarity:         clampQualitative(w.Clarity),
			Coherence:       clampQualitative(w.Coherence),
			Consistency:     clampQualitative(w.Consistency),
			Distinctiveness: clampQualitative(w.Distinctiveness),
			Comment:         decodeString(w.Comment),
		}
	}

	return out, nil
}

// unwrapSelfKeyed returns the object stored under id, descending once into
// {id: {id: {...}}} documents.
func unwrapSelfKeyed(id string, raw json.RawMessage) (json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}

	if inner, ok := obj[id]; ok {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(inner, &nested); err == nil && nested != nil {
			return inner, true
		}
	}

	return raw, true
}

func clampQualitative(s domain.Score) domain.Score {
	v, ok := s.Value()
	if !ok || v < minQualitativeScore || v > maxQualitativeScore {
		return domain.Absent()
	}

	return s
}

// DecodeCohesion parses a cohesion document of either granularity.
//
// Two shapes are accepted: a flat map of key to number or {"score": n} with an
// optional "__overall" entry, and the wrapped form
// {"clusters": {...}, "overall_avg": n} written by the silhouette job.
func DecodeCohesion(data []byte) (domain.CohesionMap, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return domain.CohesionMap{}, fmt.Errorf("decode cohesion: %w", err)
	}

	if inner, ok := top[keyClusters]; ok {
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(inner, &wrapped); err != nil {
			wrapped = nil
		}

		m := decodeFlatCohesion(wrapped)
		if !m.Overall.IsPresent() {
			m.Overall = decodeScoreValue(top[keyOverallAvg])
		}

		return m, nil
	}

	return decodeFlatCohesion(top), nil
}

func decodeFlatCohesion(entries map[string]json.RawMessage) domain.CohesionMap {
	m := domain.CohesionMap{Scores: make(map[string]domain.Score, len(entries))}

	for key, raw := range entries {
		if key == domain.OverallKey {
			m.Overall = decodeScoreValue(raw)

			continue
		}

		if s := decodeScoreValue(raw); s.IsPresent() {
			m.Scores[key] = s
		}
	}

	return m
}

// decodeScoreValue reads a bare number or an object with a "score" field.
func decodeScoreValue(raw json.RawMessage) domain.Score {
	if len(raw) == 0 {
		return domain.Absent()
	}

	var s domain.Score
	if err := json.Unmarshal(raw, &s); err == nil && s.IsPresent() {
		return s
	}

	var obj struct {
		Score domain.Score `json:"score"`
	}

	if err := json.Unmarshal(raw, &obj); err != nil {
		return domain.Absent()
	}

	return obj.Score
}

func decodeString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}

	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
