package retrieval

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/xhad/wissen/internal/models"
	"github.com/xhad/wissen/internal/types"
)

// KeywordChannel runs case-insensitive substring queries. It catches exact
// terms like units and product codes the embedding under-weights.
type KeywordChannel struct {
	searcher types.KeywordSearcher
	timeout  time.Duration
	logger   *slog.Logger
}

func NewKeywordChannel(searcher types.KeywordSearcher, timeout time.Duration, logger *slog.Logger) *KeywordChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeywordChannel{searcher: searcher, timeout: timeout, logger: logger}
}

// Search returns up to count chunks containing text. Hits carry no
// similarity. A blank text matches nothing.
func (c *KeywordChannel) Search(ctx context.Context, text string, count int, filter map[string]interface{}) []models.Candidate {
	if strings.TrimSpace(text) == "" || count <= 0 {
		return []models.Candidate{}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	hits, err := c.searcher.SearchKeyword(ctx, text, count, filter)
	if err != nil {
		c.logger.Warn("keyword search failed", "query", text, "err", err)
		return []models.Candidate{}
	}

	if len(hits) > count {
		hits = hits[:count]
	}
	results := make([]models.Candidate, len(hits))
	for i, hit := range hits {
		hit.Similarity = nil
		results[i] = hit
	}

	c.logger.Debug("keyword search", "query", text, "count", len(results))
	return results
}
