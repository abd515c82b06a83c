package models

import (
	"fmt"
	"strconv"
)

// Metadata keys stored alongside every chunk.
const (
	MetaOriginalFilename = "original_filename"
	MetaPage             = "page"
	MetaSource           = "source"
	MetaSourceType       = "source_type"
	MetaSourceCategory   = "source_category"
	MetaUploadedAt       = "uploaded_at"
	MetaContentHash      = "content_hash"
)

// Source categories.
const (
	CategoryUpload     = "upload"
	CategoryManualNote = "manual_note"
	CategoryWeb        = "web"
)

// Document is a source document before chunking.
type Document struct {
	ID       string
	URL      string
	Title    string
	Content  string
	Metadata map[string]interface{}
}

type ProcessedDocument struct {
	Document
	Chunks []string
}

// Chunk is the stored unit of retrievable text.
type Chunk struct {
	ID          string
	URL         string
	ChunkNumber int
	Content     string
	Embedding   []float32
	Metadata    map[string]interface{}
}

// Candidate is a search hit produced by one of the retrieval channels.
// Similarity is nil for keyword hits.
type Candidate struct {
	ID          string                 `json:"id"`
	URL         string                 `json:"url"`
	ChunkNumber int                    `json:"chunk_number"`
	Content     string                 `json:"content"`
	Metadata    map[string]interface{} `json:"metadata"`
	Similarity  *float64               `json:"similarity,omitempty"`
}

// SimilarityOrZero returns the similarity, or 0 when the candidate has none.
func (c Candidate) SimilarityOrZero() float64 {
	if c.Similarity == nil {
		return 0
	}
	return *c.Similarity
}

func (c Candidate) Filename() string {
	if name := c.metaString(MetaOriginalFilename); name != "" {
		return name
	}
	return c.URL
}

// Page returns the page number from metadata, defaulting to 1.
func (c Candidate) Page() int {
	switch v := c.Metadata[MetaPage].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 1
}

func (c Candidate) Source() string {
	return c.metaString(MetaSource)
}

func (c Candidate) SourceType() string {
	return c.metaString(MetaSourceType)
}

func (c Candidate) metaString(key string) string {
	v, ok := c.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// RankedResult is a candidate after the optional rerank stage.
type RankedResult struct {
	Candidate
	RerankScore *float64 `json:"rerank_score,omitempty"`
}

// Float returns a pointer to f.
func Float(f float64) *float64 {
	return &f
}
