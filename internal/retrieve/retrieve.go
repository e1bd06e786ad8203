// Package retrieve finds precedent cases similar to the accident facts.
// The primary path embeds the facts and runs a vector search over the
// chunk index; when no embedding backend is available the keyword path
// serves as a degraded fallback. The case-type filter relaxes in steps
// (exact type, normalized base type, no filter) before a search is
// declared empty.
package retrieve

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/clweng/plaintgen/internal/cache"
	"github.com/clweng/plaintgen/internal/embed"
	"github.com/clweng/plaintgen/internal/logger"
	"github.com/clweng/plaintgen/internal/model"
	"github.com/clweng/plaintgen/internal/search"
	"github.com/clweng/plaintgen/internal/worker"
)

// ErrNoCandidates means both retrieval paths came back empty even with
// the filter fully relaxed.
var ErrNoCandidates = errors.New("no candidate cases found")

// Searcher is the slice of the search client retrieval needs.
type Searcher interface {
	VectorSearch(ctx context.Context, vec []float32, label, caseType string, topK int) ([]search.Hit, error)
	KeywordSearch(ctx context.Context, text, label, caseType string, topK int) ([]search.Hit, error)
}

// Retriever composes the embedder, search client, cache, and rate
// limiter. Embedder and cache may be nil; the retriever degrades to
// keyword search and uncached operation.
type Retriever struct {
	embedder embed.Embedder
	searcher Searcher
	cache    cache.Cache
	limiter  *worker.Limiter
	log      *logger.Logger
	cacheTTL time.Duration
}

// New creates a Retriever. Pass nil for embedder, cache, or limiter to
// disable that part.
func New(embedder embed.Embedder, searcher Searcher, c cache.Cache, limiter *worker.Limiter, log *logger.Logger, cacheTTL time.Duration) *Retriever {
	if log == nil {
		log = logger.NewNop()
	}
	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		cache:    c,
		limiter:  limiter,
		log:      log,
		cacheTTL: cacheTTL,
	}
}

// chain is the outcome of one filter relaxation sequence.
type chain struct {
	cases      []model.CaseRecord
	usedType   model.CaseType // filter that served the hits, "" when dropped
	normalized bool           // base-type mapping applied
	relaxed    bool           // filter dropped entirely
}

// Retrieve returns up to topK precedent cases for the query text,
// preferring vector search filtered by the given case type.
func (r *Retriever) Retrieve(ctx context.Context, query string, caseType model.CaseType, topK int) (*model.RetrievalResult, error) {
	start := time.Now()

	key := cache.RetrieveKey(query, string(caseType), topK)
	var cached model.RetrievalResult
	if cache.GetJSON(r.cache, key, &cached) {
		r.log.Debug("retrieval cache hit", "case_type", caseType, "cases", len(cached.Cases))
		return &cached, nil
	}

	result, err := r.retrieveUncached(ctx, query, caseType, topK)
	if err != nil {
		return nil, err
	}
	result.Elapsed = time.Since(start)
	result.CachedAt = time.Now()

	if err := cache.SetJSON(r.cache, key, result, r.cacheTTL); err != nil {
		r.log.Warn("retrieval cache write failed", "error", err)
	}
	return result, nil
}

func (r *Retriever) retrieveUncached(ctx context.Context, query string, caseType model.CaseType, topK int) (*model.RetrievalResult, error) {
	if vec, ok := r.embedQuery(ctx, query); ok {
		res, err := r.searchChain(ctx, caseType, func(filter string) ([]search.Hit, error) {
			if err := r.waitBackend(ctx, worker.BackendSearch); err != nil {
				return nil, err
			}
			return r.searcher.VectorSearch(ctx, vec, search.LabelFacts, filter, topK)
		})
		switch {
		case err != nil:
			// Keyword search may still answer on a different code path
			// (e.g. the vector mapping is broken but the index is up).
			r.log.Warn("vector search failed, degrading to keyword search", "error", err)
		case len(res.cases) > 0:
			for i := range res.cases {
				// Script scores are cosine+1.0; store plain cosines.
				res.cases[i].Score -= 1.0
				res.cases[i].Source = model.SourceVector
			}
			return buildResult(query, res, false, topK), nil
		default:
			r.log.Warn("vector search empty with filter fully relaxed, trying keyword fallback")
		}
	}

	res, err := r.searchChain(ctx, caseType, func(filter string) ([]search.Hit, error) {
		if err := r.waitBackend(ctx, worker.BackendSearch); err != nil {
			return nil, err
		}
		return r.searcher.KeywordSearch(ctx, query, search.LabelFacts, filter, topK)
	})
	if err != nil {
		return nil, err
	}
	if len(res.cases) == 0 {
		return nil, ErrNoCandidates
	}
	for i := range res.cases {
		res.cases[i].Source = model.SourceKeyword
	}
	return buildResult(query, res, true, topK), nil
}

// embedQuery returns the query vector, or false when the embedding path
// is unavailable. Embedding failures degrade to keyword search rather
// than failing the request.
func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, bool) {
	if r.embedder == nil {
		return nil, false
	}
	if err := r.waitBackend(ctx, worker.BackendEmbed); err != nil {
		return nil, false
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.log.Warn("embedding failed, degrading to keyword search", "error", err)
		return nil, false
	}
	return vec, true
}

// searchChain runs one search with the filter relaxation steps: the
// exact case type first, then the normalized base type, then no filter.
func (r *Retriever) searchChain(ctx context.Context, caseType model.CaseType, run func(filter string) ([]search.Hit, error)) (*chain, error) {
	hits, err := run(string(caseType))
	if err != nil {
		return nil, err
	}
	if len(hits) > 0 {
		return &chain{cases: toRecords(hits), usedType: caseType}, nil
	}

	if base := model.NormalizeCaseType(caseType); base != caseType {
		r.log.Debug("no hits for exact case type, retrying with base type", "case_type", caseType, "base", base)
		hits, err = run(string(base))
		if err != nil {
			return nil, err
		}
		if len(hits) > 0 {
			return &chain{cases: toRecords(hits), usedType: base, normalized: true}, nil
		}
	}

	r.log.Debug("no hits for base case type, retrying without filter")
	hits, err = run("")
	if err != nil {
		return nil, err
	}
	return &chain{cases: toRecords(hits), usedType: "", relaxed: true}, nil
}

func buildResult(query string, res *chain, fallback bool, topK int) *model.RetrievalResult {
	cases := res.cases
	sort.SliceStable(cases, func(i, j int) bool { return cases[i].Score > cases[j].Score })
	if len(cases) > topK {
		cases = cases[:topK]
	}

	return &model.RetrievalResult{
		Cases:         cases,
		Query:         query,
		CaseType:      res.usedType,
		UsedFallback:  fallback,
		FilterRelaxed: res.relaxed,
		Normalized:    res.normalized,
	}
}

func (r *Retriever) waitBackend(ctx context.Context, backend string) error {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx, backend)
}

func toRecords(hits []search.Hit) []model.CaseRecord {
	records := make([]model.CaseRecord, 0, len(hits))
	for _, h := range hits {
		records = append(records, model.CaseRecord{
			CaseID:   h.Source.CaseID,
			CaseType: h.Source.CaseType,
			Summary:  h.Source.OriginalText,
			Score:    h.Score,
		})
	}
	return records
}
