package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/xhad/wissen/internal/models"
	"github.com/xhad/wissen/internal/types"
)

// VectorChannel runs nearest-neighbour queries against the chunk store.
// It never fails: store errors and timeouts yield an empty result.
type VectorChannel struct {
	searcher      types.VectorSearcher
	minSimilarity float64
	timeout       time.Duration
	dimension     int
	logger        *slog.Logger
}

// NewVectorChannel creates a vector channel. A zero timeout disables the
// per-call deadline and a zero dimension disables the length check.
func NewVectorChannel(searcher types.VectorSearcher, minSimilarity float64, timeout time.Duration, dimension int, logger *slog.Logger) *VectorChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorChannel{
		searcher:      searcher,
		minSimilarity: minSimilarity,
		timeout:       timeout,
		dimension:     dimension,
		logger:        logger,
	}
}

// Search returns up to count hits with similarity >= the channel floor,
// ordered by descending similarity.
func (c *VectorChannel) Search(ctx context.Context, embedding []float32, count int, filter map[string]interface{}) []models.Candidate {
	if count <= 0 || len(embedding) == 0 {
		return []models.Candidate{}
	}
	if c.dimension > 0 && len(embedding) != c.dimension {
		c.logger.Warn("query embedding has wrong dimension", "got", len(embedding), "want", c.dimension)
		return []models.Candidate{}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	hits, err := c.searcher.SearchVector(ctx, embedding, c.minSimilarity, count, filter)
	if err != nil {
		c.logger.Warn("vector search failed", "err", err)
		return []models.Candidate{}
	}

	results := make([]models.Candidate, 0, min(len(hits), count))
	for _, hit := range hits {
		if hit.Similarity == nil || *hit.Similarity < c.minSimilarity {
			continue
		}
		results = append(results, hit)
		if len(results) == count {
			break
		}
	}

	c.logger.Debug("vector search", "count", len(results))
	return results
}
