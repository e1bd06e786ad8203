package model

import "time"

// Retrieval sources.
const (
	SourceVector  = "vector"
	SourceKeyword = "keyword"
)

// CaseRecord is one precedent case returned by retrieval.
type CaseRecord struct {
	CaseID   string  `json:"case_id"`
	CaseType string  `json:"case_type,omitempty"`
	Summary  string  `json:"summary,omitempty"` // fact summary stored with the case
	Score    float64 `json:"score"`             // cosine similarity for vector hits, BM25 for keyword hits
	Source   string  `json:"source"`            // SourceVector or SourceKeyword
}

// RetrievalResult is the outcome of one retrieval, ordered by score
// descending and never longer than the requested top-k.
type RetrievalResult struct {
	Cases         []CaseRecord  `json:"cases"`
	Query         string        `json:"query"`
	CaseType      CaseType      `json:"case_type"`               // filter actually used for the returned hits
	UsedFallback  bool          `json:"used_fallback"`           // keyword path served the result
	FilterRelaxed bool          `json:"filter_relaxed"`          // case-type filter widened or dropped
	Normalized    bool          `json:"normalized"`              // requested type was unknown, default applied
	Elapsed       time.Duration `json:"elapsed_ms,omitempty"`
	CachedAt      time.Time     `json:"cached_at,omitempty"`
}

// CaseIDs lists the retrieved case ids in result order.
func (r *RetrievalResult) CaseIDs() []string {
	ids := make([]string, 0, len(r.Cases))
	for _, c := range r.Cases {
		ids = append(ids, c.CaseID)
	}
	return ids
}

// RankedCase is a retrieved case with its paragraph-level rerank score.
type RankedCase struct {
	CaseRecord
	ParagraphScore float64 `json:"paragraph_score"` // max cosine over the case's paragraphs
}

// RerankedSet holds the rerank survivors, ordered by paragraph score
// descending. Every member scores at least MinScore.
type RerankedSet struct {
	Cases    []RankedCase `json:"cases"`
	MinScore float64      `json:"min_score"`
}

// CaseIDs lists the reranked case ids in rank order.
func (s *RerankedSet) CaseIDs() []string {
	ids := make([]string, 0, len(s.Cases))
	for _, c := range s.Cases {
		ids = append(ids, c.CaseID)
	}
	return ids
}

// Best returns the top-ranked case, or nil when the set is empty.
func (s *RerankedSet) Best() *RankedCase {
	if len(s.Cases) == 0 {
		return nil
	}
	return &s.Cases[0]
}

// Statute is one applicable statute with its corpus support.
type Statute struct {
	ID      string `json:"id"`      // e.g. "民法第191-2條"
	Text    string `json:"text"`    // one-line statutory content
	Support int    `json:"support"` // number of retrieved cases citing it
}

// StatuteSet holds resolved statutes ordered by support descending, ties
// broken by statute number ascending. Flagged marks an empty resolution
// that the pipeline proceeds through with the no-statute marker.
type StatuteSet struct {
	Statutes []Statute `json:"statutes"`
	Flagged  bool      `json:"flagged"`
}

// IDs lists the statute ids in order.
func (s *StatuteSet) IDs() []string {
	ids := make([]string, 0, len(s.Statutes))
	for _, st := range s.Statutes {
		ids = append(ids, st.ID)
	}
	return ids
}

// Empty reports whether no statute was resolved.
func (s *StatuteSet) Empty() bool {
	return len(s.Statutes) == 0
}
