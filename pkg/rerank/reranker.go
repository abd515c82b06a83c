// Package rerank reorders fused retrieval candidates with a cross-encoder.
//
// The final score blends the vector similarity with the model's relevance
// prediction in equal parts, so a candidate only ranks high when both
// signals agree. Keyword-only candidates count as similarity 0. The stage
// never fails: without a scorer, or when scoring fails, candidates pass
// through in their original order.
package rerank

import (
	"context"
	"log/slog"
	"sort"

	"github.com/xhad/wissen/internal/models"
	"github.com/xhad/wissen/internal/types"
)

// Weights of the two blended signals.
const (
	SimilarityWeight = 0.5
	ModelWeight      = 0.5
)

// Reranker scores (query, passage) pairs and sorts candidates by the blended score.
type Reranker struct {
	scorer types.RelevanceScorer
	logger *slog.Logger
}

// Option configures a Reranker.
type Option func(*Reranker)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reranker) {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
	}
}

// New creates a reranker. A nil scorer makes Rerank a passthrough.
func New(scorer types.RelevanceScorer, opts ...Option) *Reranker {
	r := &Reranker{scorer: scorer, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BlendScore combines a similarity (nil counts as 0) with a model prediction.
func BlendScore(similarity *float64, prediction float64) float64 {
	s := 0.0
	if similarity != nil {
		s = *similarity
	}
	return SimilarityWeight*s + ModelWeight*prediction
}

// Rerank returns the candidates ordered by descending blended score. Ties
// keep their input order.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []models.Candidate) []models.RankedResult {
	if len(candidates) == 0 {
		return []models.RankedResult{}
	}
	if r.scorer == nil {
		r.logger.Debug("no rerank model loaded, keeping fused order")
		return passthrough(candidates)
	}

	passages := make([]string, len(candidates))
	for i, c := range candidates {
		passages[i] = c.Content
	}

	scores, err := r.scorer.Score(ctx, query, passages)
	if err != nil {
		r.logger.Warn("rerank failed, keeping fused order", "err", err)
		return passthrough(candidates)
	}
	if len(scores) != len(candidates) {
		r.logger.Warn("rerank returned wrong number of scores, keeping fused order",
			"got", len(scores), "want", len(candidates))
		return passthrough(candidates)
	}

	results := make([]models.RankedResult, len(candidates))
	for i, c := range candidates {
		results[i] = models.RankedResult{
			Candidate:   c,
			RerankScore: models.Float(BlendScore(c.Similarity, scores[i])),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return *results[i].RerankScore > *results[j].RerankScore
	})

	return results
}

func passthrough(candidates []models.Candidate) []models.RankedResult {
	results := make([]models.RankedResult, len(candidates))
	for i, c := range candidates {
		results[i] = models.RankedResult{Candidate: c}
	}
	return results
}
