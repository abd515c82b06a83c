package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	if c.LLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "Ollama base URL is required",
		})
	} else if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid Ollama base URL",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.Embedder.CacheSize < 0 {
		errors = append(errors, ValidationError{
			Field:   "embedder.cache_size",
			Message: "cache_size must not be negative",
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if u, err := url.Parse(c.Database.URL); err != nil || u.Scheme == "" {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Database.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate retrieval tuning
	if c.Retrieval.MinSimilarity < 0 || c.Retrieval.MinSimilarity > 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.min_similarity",
			Message: "min_similarity must be between 0 and 1",
		})
	}

	if c.Retrieval.CandidateCount < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.candidate_count",
			Message: "candidate_count must be positive",
		})
	}

	if c.Retrieval.DefaultMaxResults < 1 || c.Retrieval.DefaultMaxResults > c.Retrieval.MaxResultsLimit {
		errors = append(errors, ValidationError{
			Field:   "retrieval.default_max_results",
			Message: "default_max_results must be between 1 and max_results_limit",
		})
	}

	if c.Retrieval.ChannelTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.channel_timeout",
			Message: "channel_timeout must be positive",
		})
	}

	if c.Rerank.Enabled {
		if _, err := url.Parse(c.Rerank.URL); err != nil || c.Rerank.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "rerank.url",
				Message: "invalid reranker URL",
			})
		}
		if c.Rerank.BatchSize < 1 || c.Rerank.Workers < 1 {
			errors = append(errors, ValidationError{
				Field:   "rerank.batch_size",
				Message: "batch_size and workers must be positive",
			})
		}
	}

	if c.Citation.MinScore < 0 || c.Citation.MinScore > 1 {
		errors = append(errors, ValidationError{
			Field:   "citation.min_score",
			Message: "min_score must be between 0 and 1",
		})
	}

	// Validate Processor config
	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	// Validate Scraper config
	if c.Scraper.MaxDepth < 0 {
		errors = append(errors, ValidationError{
			Field:   "scraper.max_depth",
			Message: "max_depth must not be negative",
		})
	}

	if c.Scraper.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scraper.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	for _, ext := range c.Scraper.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") && ext != "" && ext != "/" {
			errors = append(errors, ValidationError{
				Field:   "scraper.allowed_extensions",
				Message: fmt.Sprintf("invalid extension format: %s", ext),
			})
		}
	}

	return errors
}
