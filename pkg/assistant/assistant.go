// Package assistant answers support questions from the knowledge base.
//
// Each question runs one search, selects the citable sources and hands
// both to the chat engine. Without citable sources the answer is the fixed
// no-information sentence; failures become a fixed error sentence, so the
// user never sees internal errors.
package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/xhad/wissen/internal/models"
	"github.com/xhad/wissen/pkg/citation"
	"github.com/xhad/wissen/pkg/llm"
	"github.com/xhad/wissen/pkg/retrieval"
	"github.com/xhad/wissen/pkg/tool"
)

// DefaultMinCitationScore is the similarity a result needs to be cited.
const DefaultMinCitationScore = 0.7

var (
	// ErrSearchRequired is returned when no search tool is provided.
	ErrSearchRequired = errors.New("search tool required")

	// ErrResponderRequired is returned when no chat engine is provided.
	ErrResponderRequired = errors.New("chat engine required")
)

// Searcher is the knowledge base search tool.
type Searcher interface {
	Search(ctx context.Context, params tool.Params) (*tool.Response, error)
}

// Responder writes the answer from the retrieved passages.
type Responder interface {
	AnswerStream(ctx context.Context, question string, results []models.RankedResult, citations citation.Citations, onChunk func(string)) (string, error)
}

// Answer is the outcome of one question. Matches are the raw ranked
// results, kept for rendering sources next to the answer.
type Answer struct {
	Text      string                `json:"text"`
	Citations citation.Citations    `json:"citations"`
	Matches   []models.RankedResult `json:"-"`
}

type Assistant struct {
	search    Searcher
	responder Responder
	selector  citation.Selector
	logger    *slog.Logger
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assistant) {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
	}
}

// WithMinCitationScore sets the citation floor.
// Default is 0.7.
func WithMinCitationScore(score float64) Option {
	return func(a *Assistant) {
		a.selector.MinScore = score
	}
}

func New(search Searcher, responder Responder, opts ...Option) (*Assistant, error) {
	if search == nil {
		return nil, ErrSearchRequired
	}
	if responder == nil {
		return nil, ErrResponderRequired
	}

	a := &Assistant{
		search:    search,
		responder: responder,
		selector:  citation.Selector{MinScore: DefaultMinCitationScore},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Ask answers question. On failure the returned Answer still carries the
// user-facing text and the error is returned alongside it.
func (a *Assistant) Ask(ctx context.Context, question string) (*Answer, error) {
	return a.AskStream(ctx, question, nil)
}

// AskStream is like Ask but passes answer chunks to onChunk as they are
// generated. onChunk may be nil.
func (a *Assistant) AskStream(ctx context.Context, question string, onChunk func(string)) (*Answer, error) {
	question = strings.TrimSpace(question)

	resp, err := a.search.Search(ctx, tool.Params{Query: question})
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyQuery) {
			return &Answer{Text: llm.NoInformationMessage, Citations: citation.Citations{}}, err
		}
		a.logger.Error("knowledge base search failed", "query", question, "err", err)
		return &Answer{Text: llm.ErrorMessage, Citations: citation.Citations{}}, err
	}

	citations := a.selector.Select(resp.Matches)
	a.logger.Debug("selected citations",
		"query", question,
		"matches", len(resp.Matches),
		"citable", citations.Len())

	text, err := a.responder.AnswerStream(ctx, question, resp.Matches, citations, onChunk)
	if err != nil {
		a.logger.Error("answer generation failed", "query", question, "err", err)
		return &Answer{Text: llm.ErrorMessage, Citations: citation.Citations{}, Matches: resp.Matches}, err
	}

	return &Answer{Text: text, Citations: citations, Matches: resp.Matches}, nil
}
