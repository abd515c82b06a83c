package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Database  DatabaseConfig  `yaml:"database"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Citation  CitationConfig  `yaml:"citation"`
	Processor ProcessorConfig `yaml:"processor"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Server    ServerConfig    `yaml:"server"`
}

type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type EmbedderConfig struct {
	Model     string `yaml:"model"`
	CacheSize int    `yaml:"cache_size"`
}

type DatabaseConfig struct {
	URL       string `yaml:"url"`
	TableName string `yaml:"table_name"`
	VectorDim int    `yaml:"vector_dim"`
	BatchSize int    `yaml:"batch_size"`
	Probes    int    `yaml:"probes"`
}

// RetrievalConfig tunes the hybrid search.
type RetrievalConfig struct {
	MinSimilarity     float64       `yaml:"min_similarity"`
	CandidateCount    int           `yaml:"candidate_count"`
	DefaultMaxResults int           `yaml:"default_max_results"`
	MaxResultsLimit   int           `yaml:"max_results_limit"`
	ChannelTimeout    time.Duration `yaml:"channel_timeout"`
}

type RerankConfig struct {
	Enabled   bool          `yaml:"enabled"`
	URL       string        `yaml:"url"`
	BatchSize int           `yaml:"batch_size"`
	Workers   int           `yaml:"workers"`
	Timeout   time.Duration `yaml:"timeout"`
}

// CitationConfig holds the similarity floor a result must reach before it
// is cited back to the user.
type CitationConfig struct {
	MinScore float64 `yaml:"min_score"`
}

type ProcessorConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

type ScraperConfig struct {
	MaxDepth          int      `yaml:"max_depth"`
	RateLimit         float64  `yaml:"rate_limit"`
	IgnorePatterns    []string `yaml:"ignore_patterns"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

type ServerConfig struct {
	Port      string `yaml:"port"`
	Streaming bool   `yaml:"streaming"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/wissen/config.yaml"),
			"/etc/wissen/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := newConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Merge with environment variables
	if err := mergeWithEnv(config); err != nil {
		return nil, err
	}

	// Apply defaults for unset values
	applyDefaults(config)

	return config, nil
}

// newConfig seeds the settings for which zero is a meaningful value, so a
// file or environment setting of 0 survives applyDefaults.
func newConfig() *Config {
	return &Config{
		Retrieval: RetrievalConfig{MinSimilarity: 0.5},
		Citation:  CitationConfig{MinScore: 0.7},
	}
}

func getDefaultConfig() (*Config, error) {
	config := newConfig()
	if err := mergeWithEnv(config); err != nil {
		return nil, err
	}
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.2
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}

	if config.Embedder.Model == "" {
		config.Embedder.Model = "nomic-embed-text:latest"
	}
	if config.Embedder.CacheSize == 0 {
		config.Embedder.CacheSize = 512
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "rag_pages"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}
	if config.Database.Probes == 0 {
		config.Database.Probes = 10
	}

	if config.Retrieval.CandidateCount == 0 {
		config.Retrieval.CandidateCount = 50
	}
	if config.Retrieval.DefaultMaxResults == 0 {
		config.Retrieval.DefaultMaxResults = 5
	}
	if config.Retrieval.MaxResultsLimit == 0 {
		config.Retrieval.MaxResultsLimit = 15
	}
	if config.Retrieval.ChannelTimeout == 0 {
		config.Retrieval.ChannelTimeout = 5 * time.Second
	}

	if config.Rerank.URL == "" {
		config.Rerank.URL = "http://localhost:8081"
	}
	if config.Rerank.BatchSize == 0 {
		config.Rerank.BatchSize = 16
	}
	if config.Rerank.Workers == 0 {
		config.Rerank.Workers = 4
	}
	if config.Rerank.Timeout == 0 {
		config.Rerank.Timeout = 10 * time.Second
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 200
	}

	if config.Scraper.MaxDepth == 0 {
		config.Scraper.MaxDepth = 2
	}
	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if len(config.Scraper.AllowedExtensions) == 0 {
		config.Scraper.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
}

func mergeWithEnv(config *Config) error {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
	if rerankURL := os.Getenv("RERANK_URL"); rerankURL != "" {
		config.Rerank.URL = rerankURL
	}

	if v := os.Getenv("MIN_SIMILARITY_SCORE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MIN_SIMILARITY_SCORE: %w", err)
		}
		config.Retrieval.MinSimilarity = f
	}
	if v := os.Getenv("RETRIEVAL_CANDIDATE_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RETRIEVAL_CANDIDATE_COUNT: %w", err)
		}
		config.Retrieval.CandidateCount = n
	}
	if v := os.Getenv("RERANK_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RERANK_ENABLED: %w", err)
		}
		config.Rerank.Enabled = b
	}
	if v := os.Getenv("CITATION_MIN_SCORE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CITATION_MIN_SCORE: %w", err)
		}
		config.Citation.MinScore = f
	}

	return nil
}
