package embed

import (
	"context"
	"time"

	"github.com/clweng/plaintgen/internal/cache"
)

// cachedEmbedder wraps an Embedder with a read-through vector cache.
// Retrieval and reranking embed the same query text in one request; the
// cache collapses those into a single backend call and carries vectors
// across runs.
type cachedEmbedder struct {
	inner Embedder
	cache cache.Cache
	model string
	ttl   time.Duration
}

// NewCached wraps inner with a vector cache keyed by model and text.
// A nil inner or nil cache returns inner unchanged.
func NewCached(inner Embedder, c cache.Cache, model string, ttl time.Duration) Embedder {
	if inner == nil || c == nil {
		return inner
	}
	return &cachedEmbedder{inner: inner, cache: c, model: model, ttl: ttl}
}

func (e *cachedEmbedder) Name() string { return e.inner.Name() }

func (e *cachedEmbedder) Dimension() int { return e.inner.Dimension() }

func (e *cachedEmbedder) IsAvailable(ctx context.Context) bool { return e.inner.IsAvailable(ctx) }

func (e *cachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cache.EmbedKey(e.model, text)
	var vec []float32
	if cache.GetJSON(e.cache, key, &vec) && len(vec) > 0 {
		return vec, nil
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	// A write failure only costs the next call a backend round trip.
	_ = cache.SetJSON(e.cache, key, vec, e.ttl)
	return vec, nil
}
