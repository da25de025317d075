package search

import (
	"context"
	"math"
	"time"

	"github.com/relivre/popcorn/plugin/ai"
	"github.com/relivre/popcorn/plugin/ai/cache"
	"github.com/relivre/popcorn/plugin/ai/timeout"
	apperrors "github.com/relivre/popcorn/server/internal/errors"
)

// Embedder resolves query embeddings through the text service with a
// TTL cache keyed by (model, normalized text). Only validated vectors
// are cached; a bad vector must stay retryable on the next request.
type Embedder struct {
	svc      ai.TextService
	cache    *cache.Cache[[]float32]
	cacheTTL time.Duration
	cacheMax int

	// wantDim rejects vectors of the wrong dimension when positive.
	wantDim int
}

// NewEmbedder wires an embedder over the text service. wantDim of zero
// disables the dimension check.
func NewEmbedder(svc ai.TextService, wantDim int, ttl time.Duration, maxEntries int) *Embedder {
	return &Embedder{
		svc:      svc,
		cache:    cache.New[[]float32](),
		cacheTTL: ttl,
		cacheMax: maxEntries,
		wantDim:  wantDim,
	}
}

// Embed returns the embedding for text, serving repeats from cache.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, apperrors.InvalidArgument("cannot embed empty text")
	}
	if e.svc == nil {
		return nil, apperrors.LLMUnavailable("embedding service not configured", nil)
	}
	key := e.svc.EmbeddingModel() + "::" + text

	if vec, ok := e.cache.Get(key, e.cacheTTL); ok {
		return vec, nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, timeout.EmbeddingTimeout)
	defer cancel()

	vec, err := e.svc.Embedding(embedCtx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeContextCanceled, "embedding canceled")
		}
		return nil, apperrors.LLMUnavailable("embedding request failed", err)
	}
	if err := validateEmbedding(vec, e.wantDim); err != nil {
		return nil, err
	}

	e.cache.Set(key, vec, e.cacheMax)
	return vec, nil
}

// CacheSize reports the embedding cache occupancy.
func (e *Embedder) CacheSize() int {
	return e.cache.Size()
}

func validateEmbedding(vec []float32, wantDim int) error {
	if len(vec) == 0 {
		return apperrors.EmbeddingInvalid("model returned an empty embedding")
	}
	if wantDim > 0 && len(vec) != wantDim {
		return apperrors.EmbeddingInvalid("model returned an embedding of unexpected dimension")
	}
	allZero := true
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return apperrors.EmbeddingInvalid("model returned a non-finite embedding")
		}
		if v != 0 {
			allZero = false
		}
	}
	if allZero {
		return apperrors.EmbeddingInvalid("model returned a zero embedding")
	}
	return nil
}
