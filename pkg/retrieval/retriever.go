package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xhad/wissen/internal/models"
	"github.com/xhad/wissen/internal/types"
)

const (
	DefaultCandidateCount = 50
	DefaultMinSimilarity  = 0.5
	DefaultChannelTimeout = 5 * time.Second
)

// Searcher is the read side of the chunk store used by both channels.
type Searcher interface {
	types.VectorSearcher
	types.KeywordSearcher
}

// Reranker reorders fused candidates. Implementations must not fail; when
// they cannot score they return the candidates unchanged.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []models.Candidate) []models.RankedResult
}

// Query holds the parameters of one retrieval call.
type Query struct {
	Text         string
	MaxResults   int
	SourceFilter string
}

// Filter returns the metadata subset the query is restricted to, or nil.
func (q Query) Filter() map[string]interface{} {
	if q.SourceFilter == "" {
		return nil
	}
	return map[string]interface{}{models.MetaSource: q.SourceFilter}
}

// Response is the outcome of one retrieval call.
type Response struct {
	Query       Query
	Results     []models.RankedResult
	VectorHits  int
	KeywordHits int
	Reranked    bool
	Took        time.Duration
}

// Retriever runs the hybrid retrieval pipeline: embed, search both channels
// concurrently, fuse, optionally rerank and truncate.
type Retriever struct {
	searcher       Searcher
	embedder       types.Embedder
	reranker       Reranker
	candidateCount int
	minSimilarity  float64
	channelTimeout time.Duration
	dimension      int
	logger         *slog.Logger

	vector  *VectorChannel
	keyword *KeywordChannel
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithReranker enables the rerank stage.
func WithReranker(reranker Reranker) Option {
	return func(r *Retriever) error {
		r.reranker = reranker
		return nil
	}
}

// WithCandidateCount sets the over-fetch floor for both channels.
// Default is 50.
func WithCandidateCount(n int) Option {
	return func(r *Retriever) error {
		if n <= 0 {
			return fmt.Errorf("candidate count must be positive, got %d", n)
		}
		r.candidateCount = n
		return nil
	}
}

// WithMinSimilarity sets the vector channel floor.
// Default is 0.5.
func WithMinSimilarity(s float64) Option {
	return func(r *Retriever) error {
		if s < 0 || s > 1 {
			return fmt.Errorf("min similarity must be between 0 and 1, got %v", s)
		}
		r.minSimilarity = s
		return nil
	}
}

// WithChannelTimeout bounds each channel's store call. Zero disables it.
// Default is 5s.
func WithChannelTimeout(d time.Duration) Option {
	return func(r *Retriever) error {
		if d < 0 {
			return fmt.Errorf("channel timeout cannot be negative")
		}
		r.channelTimeout = d
		return nil
	}
}

// WithDimension makes the vector channel reject query embeddings of another length.
func WithDimension(dim int) Option {
	return func(r *Retriever) error {
		if dim < 0 {
			return fmt.Errorf("dimension cannot be negative")
		}
		r.dimension = dim
		return nil
	}
}

// New creates a retriever.
func New(searcher Searcher, embedder types.Embedder, opts ...Option) (*Retriever, error) {
	if searcher == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	r := &Retriever{
		searcher:       searcher,
		embedder:       embedder,
		candidateCount: DefaultCandidateCount,
		minSimilarity:  DefaultMinSimilarity,
		channelTimeout: DefaultChannelTimeout,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	r.vector = NewVectorChannel(searcher, r.minSimilarity, r.channelTimeout, r.dimension, r.logger)
	r.keyword = NewKeywordChannel(searcher, r.channelTimeout, r.logger)
	return r, nil
}

// Retrieve returns at most q.MaxResults results for q. Only invalid
// parameters and embedding failures are returned as errors; channel
// failures degrade to fewer results.
func (r *Retriever) Retrieve(ctx context.Context, q Query) (*Response, error) {
	start := time.Now()

	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuery
	}
	if q.MaxResults <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxResults, q.MaxResults)
	}

	embedding, err := r.embedder.EmbedQuery(ctx, q.Text)
	if err != nil {
		r.logger.Error("error generating embedding for query", "query", q.Text, "err", err)
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	fanOut := max(q.MaxResults, r.candidateCount)
	filter := q.Filter()

	var vectorHits, keywordHits []models.Candidate
	// Channels are fail-open and never return an error; only the caller's
	// ctx cancels them.
	var g errgroup.Group
	g.Go(func() error {
		vectorHits = r.vector.Search(ctx, embedding, fanOut, filter)
		return nil
	})
	g.Go(func() error {
		keywordHits = r.keyword.Search(ctx, q.Text, fanOut, filter)
		return nil
	})
	_ = g.Wait()

	fused := Fuse(vectorHits, keywordHits)

	var results []models.RankedResult
	reranked := false
	if r.reranker != nil && len(fused) > 0 {
		results = r.reranker.Rerank(ctx, q.Text, fused)
		reranked = len(results) > 0 && results[0].RerankScore != nil
	} else {
		results = make([]models.RankedResult, len(fused))
		for i, c := range fused {
			results[i] = models.RankedResult{Candidate: c}
		}
	}

	if len(results) > q.MaxResults {
		results = results[:q.MaxResults]
	}

	resp := &Response{
		Query:       q,
		Results:     results,
		VectorHits:  len(vectorHits),
		KeywordHits: len(keywordHits),
		Reranked:    reranked,
		Took:        time.Since(start),
	}

	r.logger.Debug("retrieval complete",
		"query", q.Text,
		"vector", resp.VectorHits,
		"keyword", resp.KeywordHits,
		"fused", len(fused),
		"results", len(results),
		"reranked", reranked,
		"took", resp.Took)

	return resp, nil
}
