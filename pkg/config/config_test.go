package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OLLAMA_BASE_URL", "DATABASE_URL", "PORT", "RERANK_URL",
		"MIN_SIMILARITY_SCORE", "RETRIEVAL_CANDIDATE_COUNT", "RERANK_ENABLED", "CITATION_MIN_SCORE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)

	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  base_url: "http://localhost:11434"
  model: "llama3"
  max_tokens: 1000
  temperature: 0.5

database:
  url: "postgres://localhost:5432/test"
  table_name: "test_pages"
  vector_dim: 768
  batch_size: 50

retrieval:
  min_similarity: 0.6
  candidate_count: 40
  default_max_results: 8
  max_results_limit: 12
  channel_timeout: 2s

rerank:
  enabled: true
  url: "http://reranker:8080"
  batch_size: 8
  workers: 2

citation:
  min_score: 0.9

processor:
  chunk_size: 500
  chunk_overlap: 100

server:
  streaming: true
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "llama3", config.LLM.Model)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, "postgres://localhost:5432/test", config.Database.URL)
	assert.Equal(t, "test_pages", config.Database.TableName)
	assert.Equal(t, 0.6, config.Retrieval.MinSimilarity)
	assert.Equal(t, 40, config.Retrieval.CandidateCount)
	assert.Equal(t, 8, config.Retrieval.DefaultMaxResults)
	assert.Equal(t, 2*time.Second, config.Retrieval.ChannelTimeout)
	assert.True(t, config.Rerank.Enabled)
	assert.Equal(t, "http://reranker:8080", config.Rerank.URL)
	assert.Equal(t, 0.9, config.Citation.MinScore)
	assert.Equal(t, 500, config.Processor.ChunkSize)
	assert.True(t, config.Server.Streaming)

	// unset values fall back to defaults
	assert.Equal(t, "nomic-embed-text:latest", config.Embedder.Model)
	assert.Equal(t, 10*time.Second, config.Rerank.Timeout)
	assert.Equal(t, "8080", config.Server.Port)
	assert.Equal(t, 10, config.Database.Probes)
	assert.Empty(t, config.Validate())
}

func TestDefaultConfigIsValid(t *testing.T) {
	clearEnv(t)

	config, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, 0.5, config.Retrieval.MinSimilarity)
	assert.Equal(t, 50, config.Retrieval.CandidateCount)
	assert.Equal(t, 5, config.Retrieval.DefaultMaxResults)
	assert.Equal(t, 0.7, config.Citation.MinScore)
	assert.False(t, config.Rerank.Enabled)
	assert.Empty(t, config.Validate())
}

func TestConfigValidation(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name          string
		mutate        func(c *Config)
		expectedErrs  int
		errorMessages []string
	}{
		{
			name:         "valid config",
			mutate:       func(c *Config) {},
			expectedErrs: 0,
		},
		{
			name: "invalid config",
			mutate: func(c *Config) {
				c.LLM.BaseURL = "invalid-url"
				c.LLM.MaxTokens = 5000
				c.LLM.Temperature = 3.0
				c.Database.URL = "invalid-url"
				c.Database.VectorDim = -1
				c.Retrieval.MinSimilarity = 1.5
				c.Citation.MinScore = -0.1
			},
			expectedErrs: 7,
			errorMessages: []string{
				"llm.base_url: invalid Ollama base URL",
				"max_tokens must be between 1 and 4096",
				"temperature must be between 0 and 2",
				"database.url: invalid database URL",
				"vector_dim must be positive",
				"min_similarity must be between 0 and 1",
				"citation.min_score: min_score must be between 0 and 1",
			},
		},
		{
			name: "overlap larger than chunk",
			mutate: func(c *Config) {
				c.Processor.ChunkSize = 100
				c.Processor.ChunkOverlap = 100
			},
			expectedErrs:  1,
			errorMessages: []string{"processor.chunk_overlap"},
		},
		{
			name: "rerank enabled without workers",
			mutate: func(c *Config) {
				c.Rerank.Enabled = true
				c.Rerank.Workers = 0
			},
			expectedErrs:  1,
			errorMessages: []string{"rerank.batch_size"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := getDefaultConfig()
			require.NoError(t, err)
			tt.mutate(config)

			errors := config.Validate()
			assert.Len(t, errors, tt.expectedErrs)

			for i, msg := range tt.errorMessages {
				assert.Contains(t, errors[i].Error(), msg)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("MIN_SIMILARITY_SCORE", "0.35")
	t.Setenv("RETRIEVAL_CANDIDATE_COUNT", "80")
	t.Setenv("RERANK_ENABLED", "true")
	t.Setenv("CITATION_MIN_SCORE", "0.2")

	config := &Config{}
	require.NoError(t, mergeWithEnv(config))

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Database.URL)
	assert.Equal(t, 0.35, config.Retrieval.MinSimilarity)
	assert.Equal(t, 80, config.Retrieval.CandidateCount)
	assert.True(t, config.Rerank.Enabled)
	assert.Equal(t, 0.2, config.Citation.MinScore)
}

func TestZeroFloorsAreKept(t *testing.T) {
	t.Run("environment", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MIN_SIMILARITY_SCORE", "0")
		t.Setenv("CITATION_MIN_SCORE", "0")

		config, err := getDefaultConfig()
		require.NoError(t, err)
		assert.Zero(t, config.Retrieval.MinSimilarity)
		assert.Zero(t, config.Citation.MinScore)
		assert.Empty(t, config.Validate())
	})

	t.Run("file", func(t *testing.T) {
		clearEnv(t)
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("retrieval:\n  min_similarity: 0\ncitation:\n  min_score: 0\n"), 0644))

		config, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Zero(t, config.Retrieval.MinSimilarity)
		assert.Zero(t, config.Citation.MinScore)
	})

	t.Run("file without floors", func(t *testing.T) {
		clearEnv(t)
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("llm:\n  model: llama3\n"), 0644))

		config, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, 0.5, config.Retrieval.MinSimilarity)
		assert.Equal(t, 0.7, config.Citation.MinScore)
	})
}

func TestEnvironmentOverridesRejectGarbage(t *testing.T) {
	clearEnv(t)
	t.Setenv("CITATION_MIN_SCORE", "hoch")

	_, err := getDefaultConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CITATION_MIN_SCORE")
}
