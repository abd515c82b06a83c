package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/wissen/internal/models"
	"github.com/xhad/wissen/internal/types"
)

var _ types.ChunkStore = (*VectorStore)(nil)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int // statements per round trip on Insert
	Probes     int // ivfflat lists scanned per vector query
	Logger     *slog.Logger
}

// VectorStore keeps document chunks in PostgreSQL with pgvector.
// One instance is created at startup and shared by all retrieval calls.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "rag_pages"
	}
	if !validTableName(config.TableName) {
		return nil, fmt.Errorf("invalid table name %q", config.TableName)
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768 // nomic-embed-text
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Probes <= 0 {
		config.Probes = 10
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, probesStatement(config.Probes))
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
		logger: config.Logger,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

// initialize creates the schema. The ivfflat index computes its list
// centroids from the rows present when it is built, so an index created on
// an empty table needs Reindex after the first bulk ingest.
func (vs *VectorStore) initialize(ctx context.Context) error {
	table := vs.config.TableName

	statements := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			chunk_number INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d),
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (url, chunk_number)
		)`, table, vs.config.VectorDim),
		fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`, table, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_metadata_idx ON %s USING gin (metadata)`, table, table),
	}

	for _, stmt := range statements {
		if _, err := vs.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return nil
}

// SearchVector returns chunks whose cosine similarity to embedding is at
// least minSimilarity, most similar first.
func (vs *VectorStore) SearchVector(ctx context.Context, embedding []float32, minSimilarity float64, limit int, filter map[string]interface{}) ([]models.Candidate, error) {
	args := []interface{}{pgvector.NewVector(embedding), minSimilarity, limit}
	if len(filter) > 0 {
		args = append(args, filter)
	}

	rows, err := vs.pool.Query(ctx, buildVectorQuery(vs.config.TableName, len(filter) > 0), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var candidates []models.Candidate
	for rows.Next() {
		var c models.Candidate
		var similarity float64
		if err := rows.Scan(&c.ID, &c.URL, &c.ChunkNumber, &c.Content, &c.Metadata, &similarity); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		c.Similarity = models.Float(similarity)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	vs.logger.Debug("vector search", "hits", len(candidates), "min_similarity", minSimilarity)
	return candidates, nil
}

// SearchKeyword returns chunks whose content contains query, ignoring case.
func (vs *VectorStore) SearchKeyword(ctx context.Context, query string, limit int, filter map[string]interface{}) ([]models.Candidate, error) {
	args := []interface{}{likePattern(query), limit}
	if len(filter) > 0 {
		args = append(args, filter)
	}

	rows, err := vs.pool.Query(ctx, buildKeywordQuery(vs.config.TableName, len(filter) > 0), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var candidates []models.Candidate
	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.ID, &c.URL, &c.ChunkNumber, &c.Content, &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	vs.logger.Debug("keyword search", "hits", len(candidates))
	return candidates, nil
}

// Insert upserts chunks keyed by (url, chunk_number) in one transaction,
// sending BatchSize statements per round trip.
func (vs *VectorStore) Insert(ctx context.Context, chunks []models.Chunk) error {
	if err := vs.checkDimensions(chunks); err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, vs.pool, func(tx pgx.Tx) error {
		return vs.insert(ctx, tx, chunks)
	})
}

// Replace swaps every chunk of filename for chunks in one transaction and
// returns how many old chunks were removed. On error the previous version
// stays in place.
func (vs *VectorStore) Replace(ctx context.Context, filename string, chunks []models.Chunk) (int64, error) {
	if err := vs.checkDimensions(chunks); err != nil {
		return 0, err
	}

	var removed int64
	err := pgx.BeginFunc(ctx, vs.pool, func(tx pgx.Tx) error {
		n, err := vs.deleteByFilename(ctx, tx, filename)
		if err != nil {
			return err
		}
		removed = n
		return vs.insert(ctx, tx, chunks)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (vs *VectorStore) checkDimensions(chunks []models.Chunk) error {
	for _, chunk := range chunks {
		if len(chunk.Embedding) != vs.config.VectorDim {
			return fmt.Errorf("chunk %s/%d: embedding has %d dimensions, want %d",
				chunk.URL, chunk.ChunkNumber, len(chunk.Embedding), vs.config.VectorDim)
		}
	}
	return nil
}

func (vs *VectorStore) insert(ctx context.Context, tx pgx.Tx, chunks []models.Chunk) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, url, chunk_number, content, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (url, chunk_number) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		vs.config.TableName)

	for start := 0; start < len(chunks); start += vs.config.BatchSize {
		end := min(start+vs.config.BatchSize, len(chunks))

		batch := &pgx.Batch{}
		for _, chunk := range chunks[start:end] {
			metadata := chunk.Metadata
			if metadata == nil {
				metadata = map[string]interface{}{}
			}
			batch.Queue(stmt,
				chunk.ID,
				chunk.URL,
				chunk.ChunkNumber,
				sanitizeText(chunk.Content),
				pgvector.NewVector(chunk.Embedding),
				metadata,
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
		vs.logger.Debug("inserted chunk batch", "count", end-start)
	}
	return nil
}

// Reindex rebuilds the embedding index so its lists match the current rows.
func (vs *VectorStore) Reindex(ctx context.Context) error {
	table := vs.config.TableName
	if _, err := vs.pool.Exec(ctx, fmt.Sprintf("REINDEX INDEX %s_embedding_idx", table)); err != nil {
		return fmt.Errorf("failed to rebuild index on %s: %w", table, err)
	}
	vs.logger.Info("rebuilt embedding index", "table", table)
	return nil
}

// Sources lists the distinct document URLs in the store.
func (vs *VectorStore) Sources(ctx context.Context) ([]string, error) {
	rows, err := vs.pool.Query(ctx, fmt.Sprintf("SELECT DISTINCT url FROM %s ORDER BY url", vs.config.TableName))
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	sources, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read sources: %w", err)
	}
	return sources, nil
}

// DeleteByFilename removes every chunk of one document.
func (vs *VectorStore) DeleteByFilename(ctx context.Context, filename string) (int64, error) {
	return vs.deleteByFilename(ctx, vs.pool, filename)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Older rows carry the filename in url, newer ones only in metadata.
func (vs *VectorStore) deleteByFilename(ctx context.Context, db execer, filename string) (int64, error) {
	tag, err := db.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE url = $1", vs.config.TableName), filename)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s: %w", filename, err)
	}
	if tag.RowsAffected() > 0 {
		return tag.RowsAffected(), nil
	}

	filter := map[string]interface{}{models.MetaOriginalFilename: filename}
	tag, err = db.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE metadata @> $1::jsonb", vs.config.TableName), filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s: %w", filename, err)
	}
	return tag.RowsAffected(), nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}
