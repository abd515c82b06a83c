package assistant_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/xhad/wissen/internal/models"
	"github.com/xhad/wissen/pkg/assistant"
	"github.com/xhad/wissen/pkg/citation"
	"github.com/xhad/wissen/pkg/llm"
	"github.com/xhad/wissen/pkg/retrieval"
	"github.com/xhad/wissen/pkg/tool"
)

type fakeSearch struct {
	matches []models.RankedResult
	err     error
	params  []tool.Params
}

func (f *fakeSearch) Search(_ context.Context, params tool.Params) (*tool.Response, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	return &tool.Response{Matches: f.matches}, nil
}

// echoModel answers with a fixed text and counts calls.
type echoModel struct {
	answer string
	err    error
	calls  int
}

func (m *echoModel) GenerateContent(_ context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.answer}}}, nil
}

func (m *echoModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func matches() []models.RankedResult {
	return []models.RankedResult{
		{Candidate: models.Candidate{
			ID:      "boat",
			Content: "Mischungsverhältnis 1:50",
			Metadata: map[string]interface{}{
				models.MetaOriginalFilename: "boat_synth_2-t.pdf",
				models.MetaPage:             float64(1),
			},
			Similarity: models.Float(0.93),
		}},
		{Candidate: models.Candidate{
			ID:      "diesel",
			Content: "Diesel",
			Metadata: map[string]interface{}{
				models.MetaOriginalFilename: "diesel.pdf",
			},
			Similarity: models.Float(0.6),
		}},
		{Candidate: models.Candidate{ID: "kw", Content: "irrelevant"}},
	}
}

func newAssistant(t *testing.T, search *fakeSearch, model *echoModel, opts ...assistant.Option) *assistant.Assistant {
	t.Helper()
	engine, err := llm.NewWithModel(llm.ChatConfig{}, model)
	require.NoError(t, err)
	a, err := assistant.New(search, engine, opts...)
	require.NoError(t, err)
	return a
}

func TestAskCitesOnlySourcesAboveFloor(t *testing.T) {
	search := &fakeSearch{matches: matches()}
	model := &echoModel{answer: "Das Mischungsverhältnis ist 1:50."}
	a := newAssistant(t, search, model)

	answer, err := a.Ask(context.Background(), "  Welches Mischungsverhältnis? ")
	require.NoError(t, err)

	assert.Equal(t, citation.Citations{"boat_synth_2-t.pdf": {1}}, answer.Citations)
	assert.True(t, strings.HasPrefix(answer.Text, "Das Mischungsverhältnis ist 1:50."))
	assert.Contains(t, answer.Text, "boat_synth_2-t.pdf, Seite 1")
	assert.NotContains(t, answer.Text, "diesel.pdf")
	assert.Len(t, answer.Matches, 3)
	assert.Equal(t, "Welches Mischungsverhältnis?", search.params[0].Query)
}

func TestAskCitationFloorIsConfigurable(t *testing.T) {
	search := &fakeSearch{matches: matches()}
	a := newAssistant(t, search, &echoModel{answer: "Antwort"}, assistant.WithMinCitationScore(0.2))

	answer, err := a.Ask(context.Background(), "Öl")
	require.NoError(t, err)
	assert.Equal(t, 2, answer.Citations.Len())
	assert.Contains(t, answer.Text, "diesel.pdf, Seite 1")
}

func TestAskWithoutCitableSources(t *testing.T) {
	search := &fakeSearch{}
	model := &echoModel{answer: "erfunden"}
	a := newAssistant(t, search, model)

	answer, err := a.Ask(context.Background(), "Was ist der Brugger-Test?")
	require.NoError(t, err)
	assert.Equal(t, llm.NoInformationMessage, answer.Text)
	assert.Empty(t, answer.Citations)
	assert.Zero(t, model.calls)
}

func TestAskMapsFailuresToFixedMessage(t *testing.T) {
	t.Run("search", func(t *testing.T) {
		a := newAssistant(t, &fakeSearch{err: retrieval.ErrEmbedding}, &echoModel{})

		answer, err := a.Ask(context.Background(), "Öl")
		assert.ErrorIs(t, err, retrieval.ErrEmbedding)
		assert.Equal(t, llm.ErrorMessage, answer.Text)
	})

	t.Run("model", func(t *testing.T) {
		a := newAssistant(t, &fakeSearch{matches: matches()}, &echoModel{err: errors.New("timeout")})

		answer, err := a.Ask(context.Background(), "Öl")
		assert.Error(t, err)
		assert.Equal(t, llm.ErrorMessage, answer.Text)
		assert.Empty(t, answer.Citations)
	})

	t.Run("empty question", func(t *testing.T) {
		a := newAssistant(t, &fakeSearch{err: retrieval.ErrEmptyQuery}, &echoModel{})

		answer, err := a.Ask(context.Background(), "   ")
		assert.ErrorIs(t, err, retrieval.ErrInvalidQuery)
		assert.Equal(t, llm.NoInformationMessage, answer.Text)
	})
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := assistant.New(nil, nil)
	assert.ErrorIs(t, err, assistant.ErrSearchRequired)

	_, err = assistant.New(&fakeSearch{}, nil)
	assert.ErrorIs(t, err, assistant.ErrResponderRequired)
}
