package types

import (
	"context"

	"github.com/xhad/wissen/internal/models"
)

// Core interfaces

type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorSearcher runs nearest-neighbour queries. Hits below minSimilarity
// are discarded store-side and results are ordered by descending similarity.
type VectorSearcher interface {
	SearchVector(ctx context.Context, embedding []float32, minSimilarity float64, limit int, filter map[string]interface{}) ([]models.Candidate, error)
}

// KeywordSearcher runs case-insensitive substring queries against chunk content.
type KeywordSearcher interface {
	SearchKeyword(ctx context.Context, query string, limit int, filter map[string]interface{}) ([]models.Candidate, error)
}

type ChunkStore interface {
	VectorSearcher
	KeywordSearcher
	Insert(ctx context.Context, chunks []models.Chunk) error
	Replace(ctx context.Context, filename string, chunks []models.Chunk) (int64, error)
	Sources(ctx context.Context) ([]string, error)
	DeleteByFilename(ctx context.Context, filename string) (int64, error)
	Close()
}

// RelevanceScorer predicts a relevance score for each (query, passage) pair.
// The returned slice has the same length and order as passages.
type RelevanceScorer interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}

type SourceLister interface {
	Sources(ctx context.Context) ([]string, error)
}
