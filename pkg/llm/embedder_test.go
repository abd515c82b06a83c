package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient stands in for the Ollama client.
type fakeClient struct {
	CreateEmbeddingFunc func(ctx context.Context, texts []string) ([][]float32, error)
	calls               int
}

func (f *fakeClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.CreateEmbeddingFunc != nil {
		return f.CreateEmbeddingFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1, 0}
	}
	return out, nil
}

func TestEmbedQuery(t *testing.T) {
	emb, err := newEmbedderWithClient(EmbedderConfig{Model: "test"}, &fakeClient{})
	require.NoError(t, err)

	vector, err := emb.EmbedQuery(context.Background(), "Motoröl")
	require.NoError(t, err)
	assert.Len(t, vector, 3)
}

func TestEmbedQueryError(t *testing.T) {
	client := &fakeClient{
		CreateEmbeddingFunc: func(context.Context, []string) ([][]float32, error) {
			return nil, errors.New("ollama down")
		},
	}
	emb, err := newEmbedderWithClient(EmbedderConfig{Model: "test"}, client)
	require.NoError(t, err)

	_, err = emb.EmbedQuery(context.Background(), "Motoröl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama down")
}

func TestEmbedDocuments(t *testing.T) {
	emb, err := newEmbedderWithClient(EmbedderConfig{Model: "test", BatchSize: 2}, &fakeClient{})
	require.NoError(t, err)

	texts := []string{"eins", "zwei", "drei"}
	vectors, err := emb.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for _, v := range vectors {
		assert.Len(t, v, 3)
	}
}
