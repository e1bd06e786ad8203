// Package rerank re-scores retrieved cases at paragraph granularity.
// Whole-chunk vectors blur a judgment's distinct sections; comparing the
// query against each stored paragraph and keeping the best match per
// case rewards the single most similar passage.
package rerank

import (
	"context"
	"math"
	"sort"

	"github.com/clweng/plaintgen/internal/logger"
	"github.com/clweng/plaintgen/internal/model"
	"github.com/clweng/plaintgen/internal/search"
	"github.com/clweng/plaintgen/internal/worker"
)

// ParagraphSource yields the stored paragraph vectors for a case.
type ParagraphSource interface {
	ParagraphVectors(ctx context.Context, caseID, label string) ([][]float32, error)
}

// Reranker re-orders retrieval candidates by paragraph similarity.
type Reranker struct {
	source  ParagraphSource
	limiter *worker.Limiter
	log     *logger.Logger
}

// New creates a Reranker. The limiter may be nil.
func New(source ParagraphSource, limiter *worker.Limiter, log *logger.Logger) *Reranker {
	if log == nil {
		log = logger.NewNop()
	}
	return &Reranker{
		source:  source,
		limiter: limiter,
		log:     log,
	}
}

// Rerank scores each candidate by the cosine similarity of its best
// paragraph against the query vector, drops candidates below minScore,
// and orders survivors by score descending. Ties keep retrieval order.
// Candidates without indexed paragraphs are skipped with a warning; the
// output is always a subset of the input.
func (r *Reranker) Rerank(ctx context.Context, queryVec []float32, cases []model.CaseRecord, minScore float64) (*model.RerankedSet, error) {
	ranked := make([]model.RankedCase, 0, len(cases))

	for _, c := range cases {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx, worker.BackendSearch); err != nil {
				return nil, err
			}
		}

		vecs, err := r.source.ParagraphVectors(ctx, c.CaseID, search.LabelFacts)
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 {
			r.log.Warn("no paragraph vectors for case, skipping", "case_id", c.CaseID)
			continue
		}

		score := maxPool(queryVec, vecs)
		if score < minScore {
			r.log.Debug("case below rerank threshold", "case_id", c.CaseID, "score", score, "min_score", minScore)
			continue
		}

		ranked = append(ranked, model.RankedCase{CaseRecord: c, ParagraphScore: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ParagraphScore > ranked[j].ParagraphScore
	})

	return &model.RerankedSet{Cases: ranked, MinScore: minScore}, nil
}

// maxPool returns the best cosine similarity between the query and any
// paragraph vector.
func maxPool(query []float32, vecs [][]float32) float64 {
	best := math.Inf(-1)
	for _, v := range vecs {
		if s := Cosine(query, v); s > best {
			best = s
		}
	}
	return best
}

// Cosine computes cosine similarity between two vectors. Mismatched
// lengths or zero magnitudes score 0 rather than NaN.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
