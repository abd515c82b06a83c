// Package tool exposes knowledge base search to the generation layer. It is
// the only way the assistant obtains grounding evidence.
package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xhad/wissen/internal/models"
	"github.com/xhad/wissen/internal/types"
	"github.com/xhad/wissen/pkg/retrieval"
)

const (
	Name        = "search_knowledge_base"
	Description = "Durchsucht die Wissensdatenbank (Produktdatenblätter und interne Notizen) nach Textstellen zur Frage. " +
		"Liefert Inhalt, Quelle, Quelltyp, Ähnlichkeit und Metadaten jedes Treffers."

	DefaultMaxResults = 5
	MaxResultsLimit   = 15

	unknown = "Unknown"
)

// ErrSourcesUnavailable is returned when no source lister is configured.
var ErrSourcesUnavailable = errors.New("source listing not available")

// Params are the tool arguments.
type Params struct {
	Query        string `json:"query"`
	MaxResults   int    `json:"max_results,omitempty"`
	SourceFilter string `json:"source_filter,omitempty"`
}

// Result is one search hit as the generation layer sees it.
type Result struct {
	Content     string                 `json:"content"`
	Source      string                 `json:"source"`
	SourceType  string                 `json:"source_type"`
	Similarity  float64                `json:"similarity"`
	RerankScore *float64               `json:"rerank_score,omitempty"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// Response carries the tool results together with the raw ranked matches,
// which the citation layer needs for file and page information.
type Response struct {
	Results []Result              `json:"results"`
	Matches []models.RankedResult `json:"-"`
}

// Retriever runs one retrieval call.
type Retriever interface {
	Retrieve(ctx context.Context, q retrieval.Query) (*retrieval.Response, error)
}

type Config struct {
	DefaultMaxResults int
	MaxResultsLimit   int
	Logger            *slog.Logger
}

// KnowledgeBaseSearch is the search tool.
type KnowledgeBaseSearch struct {
	retriever Retriever
	sources   types.SourceLister
	config    Config
	logger    *slog.Logger
}

// New creates the search tool. sources may be nil.
func New(retriever Retriever, sources types.SourceLister, config Config) (*KnowledgeBaseSearch, error) {
	if retriever == nil {
		return nil, errors.New("retriever required")
	}
	if config.DefaultMaxResults <= 0 {
		config.DefaultMaxResults = DefaultMaxResults
	}
	if config.MaxResultsLimit <= 0 {
		config.MaxResultsLimit = MaxResultsLimit
	}
	if config.DefaultMaxResults > config.MaxResultsLimit {
		return nil, fmt.Errorf("default max results %d exceeds limit %d", config.DefaultMaxResults, config.MaxResultsLimit)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &KnowledgeBaseSearch{
		retriever: retriever,
		sources:   sources,
		config:    config,
		logger:    config.Logger,
	}, nil
}

// Search runs a retrieval with the tool's defaults. An omitted max_results
// uses the default and larger values are capped at the limit; negative
// values are rejected.
func (k *KnowledgeBaseSearch) Search(ctx context.Context, params Params) (*Response, error) {
	maxResults := params.MaxResults
	switch {
	case maxResults == 0:
		maxResults = k.config.DefaultMaxResults
	case maxResults > k.config.MaxResultsLimit:
		maxResults = k.config.MaxResultsLimit
	}

	resp, err := k.retriever.Retrieve(ctx, retrieval.Query{
		Text:         params.Query,
		MaxResults:   maxResults,
		SourceFilter: params.SourceFilter,
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(resp.Results))
	for i, r := range resp.Results {
		results[i] = toResult(r)
		k.logger.Debug("search hit",
			"score", r.SimilarityOrZero(),
			"file", r.Filename(),
			"page", r.Page())
	}

	return &Response{Results: results, Matches: resp.Results}, nil
}

// AvailableSources lists the documents in the knowledge base.
func (k *KnowledgeBaseSearch) AvailableSources(ctx context.Context) ([]string, error) {
	if k.sources == nil {
		return nil, ErrSourcesUnavailable
	}
	return k.sources.Sources(ctx)
}

func toResult(r models.RankedResult) Result {
	source := r.Source()
	if source == "" {
		source = unknown
	}
	sourceType := r.SourceType()
	if sourceType == "" {
		sourceType = unknown
	}
	meta := r.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	return Result{
		Content:     r.Content,
		Source:      source,
		SourceType:  sourceType,
		Similarity:  r.SimilarityOrZero(),
		RerankScore: r.RerankScore,
		Metadata:    meta,
	}
}
