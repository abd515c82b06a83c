package llm

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/xhad/wissen/internal/types"
)

var _ types.Embedder = (*CachedEmbedder)(nil)

// CachedEmbedder memoizes query embeddings. Support staff tend to ask the
// same questions repeatedly; document embeddings are never cached.
type CachedEmbedder struct {
	next  types.Embedder
	cache *lru.Cache[string, []float32]
}

func NewCachedEmbedder(next types.Embedder, size int) (*CachedEmbedder, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &CachedEmbedder{next: next, cache: cache}, nil
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if vector, ok := c.cache.Get(text); ok {
		return clone(vector), nil
	}

	vector, err := c.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, clone(vector))
	return vector, nil
}

func (c *CachedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.EmbedDocuments(ctx, texts)
}

// Len reports the number of cached queries.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
