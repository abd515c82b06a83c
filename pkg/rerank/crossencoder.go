package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/xhad/wissen/internal/types"
)

var _ types.RelevanceScorer = (*CrossEncoder)(nil)

// CrossEncoderConfig configures the client of a cross-encoder rerank server.
type CrossEncoderConfig struct {
	URL        string // base URL, e.g. http://localhost:8081
	BatchSize  int
	Workers    int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// CrossEncoder scores passages against a query through a rerank server
// speaking the text-embeddings-inference /rerank protocol. Batches are
// scored concurrently on a bounded worker pool.
type CrossEncoder struct {
	config CrossEncoderConfig
	client *http.Client
	pool   *ants.Pool
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
}

type rerankScore struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

func NewCrossEncoder(config CrossEncoderConfig) (*CrossEncoder, error) {
	if config.URL == "" {
		return nil, errors.New("rerank URL cannot be empty")
	}
	config.URL = strings.TrimRight(config.URL, "/")
	if config.BatchSize <= 0 {
		config.BatchSize = 16
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	pool, err := ants.NewPool(config.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank pool: %w", err)
	}

	return &CrossEncoder{config: config, client: client, pool: pool}, nil
}

// Score returns one relevance score in [0,1] per passage, in input order.
func (ce *CrossEncoder) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	scores := make([]float64, len(passages))
	if len(passages) == 0 {
		return scores, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for start := 0; start < len(passages); start += ce.config.BatchSize {
		end := min(start+ce.config.BatchSize, len(passages))
		offset, batch := start, passages[start:end]

		wg.Add(1)
		err := ce.pool.Submit(func() {
			defer wg.Done()
			batchScores, err := ce.scoreBatch(ctx, query, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			copy(scores[offset:], batchScores)
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to submit rerank batch: %w", err)
			}
			mu.Unlock()
			break
		}
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return scores, nil
}

func (ce *CrossEncoder) scoreBatch(ctx context.Context, query string, batch []string) ([]float64, error) {
	body, err := json.Marshal(rerankRequest{Query: query, Texts: batch})
	if err != nil {
		return nil, fmt.Errorf("failed to encode rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ce.config.URL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ce.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank server returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var ranked []rerankScore
	if err := json.NewDecoder(resp.Body).Decode(&ranked); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	// The server sorts by score; put them back in passage order.
	scores := make([]float64, len(batch))
	seen := make([]bool, len(batch))
	for _, r := range ranked {
		if r.Index < 0 || r.Index >= len(batch) {
			return nil, fmt.Errorf("rerank response index %d out of range", r.Index)
		}
		scores[r.Index] = r.Score
		seen[r.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("rerank response missing score for passage %d", i)
		}
	}
	return scores, nil
}

// Close releases the worker pool.
func (ce *CrossEncoder) Close() {
	ce.pool.Release()
}
