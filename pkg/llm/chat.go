package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/xhad/wissen/internal/models"
	"github.com/xhad/wissen/pkg/citation"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
	BaseURL      string // Ollama server URL
}

// ChatEngine generates grounded answers from retrieved passages.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new ChatEngine backed by Ollama.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	config, err := withChatDefaults(config)
	if err != nil {
		return nil, err
	}

	llm, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		llm:    llm,
	}, nil
}

// NewWithModel creates a ChatEngine around an existing model.
func NewWithModel(config ChatConfig, model llms.Model) (*ChatEngine, error) {
	config, err := withChatDefaults(config)
	if err != nil {
		return nil, err
	}
	return &ChatEngine{config: config, llm: model}, nil
}

func withChatDefaults(config ChatConfig) (ChatConfig, error) {
	if config.Model == "" {
		config.Model = "mistral" // Default Ollama model
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return config, fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return config, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = SystemPrompt
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}
	return config, nil
}

// Answer generates a response grounded in the citable results. Without
// citable sources the model is not called and NoInformationMessage is returned.
func (ce *ChatEngine) Answer(ctx context.Context, question string, results []models.RankedResult, citations citation.Citations) (string, error) {
	return ce.generate(ctx, question, results, citations, nil)
}

// AnswerStream is like Answer but hands each generated chunk to onChunk
// as it arrives. The returned string is the complete answer.
func (ce *ChatEngine) AnswerStream(ctx context.Context, question string, results []models.RankedResult, citations citation.Citations, onChunk func(string)) (string, error) {
	return ce.generate(ctx, question, results, citations, onChunk)
}

func (ce *ChatEngine) generate(ctx context.Context, question string, results []models.RankedResult, citations citation.Citations, onChunk func(string)) (string, error) {
	passages := citablePassages(results, citations)
	if len(passages) == 0 {
		if onChunk != nil {
			onChunk(NoInformationMessage)
		}
		return NoInformationMessage, nil
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(contextTemplate, formatPassages(passages), question)),
	}

	options := []llms.CallOption{
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	}
	if onChunk != nil {
		options = append(options, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			onChunk(string(chunk))
			return nil
		}))
	}

	response, err := ce.llm.GenerateContent(ctx, content, options...)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if response == nil || len(response.Choices) == 0 {
		return "", errors.New("chat error: no response from LLM")
	}

	answer := strings.TrimSpace(response.Choices[0].Content)
	if answer == NoInformationMessage || answer == UncertainMessage {
		return answer, nil
	}

	sources := citations.Format()
	if onChunk != nil {
		onChunk("\n\n" + sources)
	}
	return answer + "\n\n" + sources, nil
}

// citablePassages keeps only results that point at a citable (file, page).
func citablePassages(results []models.RankedResult, citations citation.Citations) []models.RankedResult {
	var passages []models.RankedResult
	for _, r := range results {
		if citations.Contains(r.Filename(), r.Page()) {
			passages = append(passages, r)
		}
	}
	return passages
}

func formatPassages(passages []models.RankedResult) string {
	var b strings.Builder
	for _, p := range passages {
		fmt.Fprintf(&b, "Quelle: %s, Seite %d\n%s\n\n", p.Filename(), p.Page(), p.Content)
	}
	return b.String()
}
