// Package ingest turns files, manual notes and scraped pages into embedded
// chunks in the knowledge base.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/xhad/wissen/internal/models"
	"github.com/xhad/wissen/internal/types"
	"github.com/xhad/wissen/pkg/processor"
)

const (
	DefaultMaxFileSize = 10 << 20 // 10 MB
	DefaultBatchSize   = 5
)

var (
	// ErrStoreRequired is returned when no store is provided.
	ErrStoreRequired = errors.New("store required")

	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrUnsupportedFile is returned for file types that cannot be ingested.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrFileTooLarge is returned when a file exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoContent is returned when a document yields no text.
	ErrNoContent = errors.New("no content")
)

// Store is the write side of the chunk store. Replace must be atomic: on
// error the previous chunks of filename are left untouched.
type Store interface {
	Replace(ctx context.Context, filename string, chunks []models.Chunk) (int64, error)
}

// Result summarizes one ingested document.
type Result struct {
	Filename string
	Chunks   int
	Replaced int64
}

// Pipeline chunks documents, embeds the chunks in batches on a worker pool
// and writes them to the store. Re-ingesting a document replaces its chunks.
type Pipeline struct {
	store       Store
	embedder    types.Embedder
	processor   processor.Processor
	pool        *ants.Pool
	batchSize   int
	maxFileSize int64
	onProgress  func(done, total int)
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithProcessor sets the chunker.
func WithProcessor(proc processor.Processor) Option {
	return func(p *Pipeline) error {
		p.processor = proc
		return nil
	}
}

// WithPoolSize sets the number of concurrent embedding batches.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many chunks are embedded per request.
// Default is 5.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) error {
		if n <= 0 {
			return fmt.Errorf("batch size must be positive, got %d", n)
		}
		p.batchSize = n
		return nil
	}
}

// WithMaxFileSize sets the file size limit in bytes.
// Default is 10 MB.
func WithMaxFileSize(n int64) Option {
	return func(p *Pipeline) error {
		if n <= 0 {
			return fmt.Errorf("max file size must be positive, got %d", n)
		}
		p.maxFileSize = n
		return nil
	}
}

// WithProgress registers a callback invoked after each embedded batch.
func WithProgress(fn func(done, total int)) Option {
	return func(p *Pipeline) error {
		p.onProgress = fn
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(store Store, embedder types.Embedder, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:       store,
		embedder:    embedder,
		processor:   processor.NewWithConfig(processor.ProcessorConfig{}),
		pool:        pool,
		batchSize:   DefaultBatchSize,
		maxFileSize: DefaultMaxFileSize,
		now:         time.Now,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.Release()
			return nil, err
		}
	}

	return p, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// SupportedExtensions lists the file types IngestFile accepts.
func SupportedExtensions() []string {
	return []string{".txt", ".md"}
}

func supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions() {
		if ext == e {
			return true
		}
	}
	return false
}

// IngestFile ingests a plain text or Markdown file. Form feeds separate
// pages; text without them is page 1. source is stored as the chunk's
// source and may be empty.
func (p *Pipeline) IngestFile(ctx context.Context, path string, source string) (*Result, error) {
	if !supported(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(path))
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() > p.maxFileSize {
		return nil, fmt.Errorf("%w: %s is %.2f MB, limit is %.2f MB", ErrFileTooLarge,
			filepath.Base(path), float64(info.Size())/(1<<20), float64(p.maxFileSize)/(1<<20))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", ErrUnsupportedFile, filepath.Base(path))
	}

	filename := filepath.Base(path)
	meta := map[string]interface{}{
		models.MetaSourceType:     strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		models.MetaSourceCategory: models.CategoryUpload,
		"file_size_bytes":         info.Size(),
	}
	if source != "" {
		meta[models.MetaSource] = source
	}

	return p.ingest(ctx, filename, strings.Split(string(raw), "\f"), meta)
}

// IngestNote stores a manual note written by support staff.
func (p *Pipeline) IngestNote(ctx context.Context, title, text string) (*Result, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "notiz-" + p.now().UTC().Format("20060102-150405")
	}
	meta := map[string]interface{}{
		models.MetaSource:         "Notiz",
		models.MetaSourceType:     "note",
		models.MetaSourceCategory: models.CategoryManualNote,
	}
	return p.ingest(ctx, title, []string{text}, meta)
}

// IngestDocuments stores scraped documents. Each document is replaced as a
// whole; a failing document does not stop the others.
func (p *Pipeline) IngestDocuments(ctx context.Context, docs []models.Document) ([]*Result, error) {
	var (
		results []*Result
		errs    []error
	)
	for _, doc := range docs {
		name := doc.URL
		if n, ok := doc.Metadata[models.MetaOriginalFilename].(string); ok && n != "" {
			name = n
		}
		res, err := p.ingest(ctx, name, []string{doc.Content}, doc.Metadata)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

func (p *Pipeline) ingest(ctx context.Context, filename string, pages []string, base map[string]interface{}) (*Result, error) {
	uploadedAt := p.now().UTC().Format(time.RFC3339)

	var chunks []models.Chunk
	for i, page := range pages {
		for _, text := range p.processor.Chunk(page) {
			meta := make(map[string]interface{}, len(base)+4)
			for k, v := range base {
				meta[k] = v
			}
			meta[models.MetaOriginalFilename] = filename
			meta[models.MetaPage] = i + 1
			meta[models.MetaUploadedAt] = uploadedAt
			meta[models.MetaContentHash] = contentHash(text)

			chunks = append(chunks, models.Chunk{
				ID:          uuid.NewString(),
				URL:         filename,
				ChunkNumber: len(chunks),
				Content:     text,
				Metadata:    meta,
			})
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, filename)
	}

	if err := p.embed(ctx, chunks); err != nil {
		return nil, err
	}

	replaced, err := p.store.Replace(ctx, filename, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", filename, err)
	}

	p.logger.Info("ingested document", "filename", filename, "chunks", len(chunks), "replaced", replaced)
	return &Result{Filename: filename, Chunks: len(chunks), Replaced: replaced}, nil
}

// embed fills in the chunk embeddings, one pool task per batch.
func (p *Pipeline) embed(ctx context.Context, chunks []models.Chunk) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		done     int
	)

	for start := 0; start < len(chunks); start += p.batchSize {
		batch := chunks[start:min(start+p.batchSize, len(chunks))]

		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()

			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Content
			}
			vectors, err := p.embedder.EmbedDocuments(ctx, texts)
			if err == nil && len(vectors) != len(batch) {
				err = fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(batch))
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to embed chunks: %w", err)
				}
				return
			}
			for i := range batch {
				batch[i].Embedding = vectors[i]
			}
			done += len(batch)
			if p.onProgress != nil {
				p.onProgress(done, len(chunks))
			}
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to submit embedding batch: %w", err)
			}
			mu.Unlock()
			break
		}
	}

	wg.Wait()
	return firstErr
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
