package embedding

import (
	"context"
	"time"

	"LegalMind/pkg/util"
)

// CachedModel wraps a Model with an LRU cache keyed by input text. Query
// reformulations repeat across rounds and sessions, so hits skip the
// provider round trip entirely.
type CachedModel struct {
	inner Model
	cache *util.LRUCache[string, []float32]
}

// NewCachedModel caches up to capacity embeddings for ttl.
func NewCachedModel(inner Model, capacity int, ttl time.Duration) (*CachedModel, error) {
	cache, err := util.NewLRU[string, []float32](capacity, ttl)
	if err != nil {
		return nil, err
	}
	return &CachedModel{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text when present.
func (m *CachedModel) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := m.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := m.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	m.cache.Put(text, vec)
	return vec, nil
}

// EmbedBatch embeds only the texts missing from the cache.
func (m *CachedModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := m.cache.Get(text); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := m.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, vec := range vecs {
		out[missingIdx[j]] = vec
		m.cache.Put(missing[j], vec)
	}
	return out, nil
}

var _ Model = (*CachedModel)(nil)
