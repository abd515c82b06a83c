package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xhad/wissen/internal/models"
	"github.com/xhad/wissen/internal/types"
	"github.com/xhad/wissen/pkg/assistant"
	"github.com/xhad/wissen/pkg/config"
	"github.com/xhad/wissen/pkg/ingest"
	"github.com/xhad/wissen/pkg/llm"
	"github.com/xhad/wissen/pkg/processor"
	"github.com/xhad/wissen/pkg/rerank"
	"github.com/xhad/wissen/pkg/retrieval"
	"github.com/xhad/wissen/pkg/store"
	"github.com/xhad/wissen/pkg/tool"
	"github.com/xhad/wissen/server"
)

var (
	configPath string
	verbose    bool

	// app is built on first use; tests install their own.
	app *application
)

// ingester is the write side used by the ingest command.
type ingester interface {
	IngestFile(ctx context.Context, path, source string) (*ingest.Result, error)
	IngestNote(ctx context.Context, title, text string) (*ingest.Result, error)
	IngestDocuments(ctx context.Context, docs []models.Document) ([]*ingest.Result, error)
}

type deleter interface {
	DeleteByFilename(ctx context.Context, filename string) (int64, error)
}

type reindexer interface {
	Reindex(ctx context.Context) error
}

type application struct {
	config    *config.Config
	search    server.Searcher
	assistant server.Asker
	ingest    ingester
	store     deleter
	index     reindexer
	closers   []func()
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

var rootCmd = &cobra.Command{
	Use:   "wissen",
	Short: "Wissensdatenbank für den Produkt-Support",
	Long: `wissen answers support questions about lubricants and technical products
from a knowledge base of product datasheets and internal notes.

Every answer is grounded in retrieved passages and cites file and page.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if app != nil {
			app.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func setup(cmd *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if app != nil {
		return nil
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
	}
	if cfg.Database.URL == "" {
		return errors.New("database URL is required (database.url or DATABASE_URL)")
	}

	a, err := bootstrap(cmd.Context(), cfg, slog.Default())
	if err != nil {
		return err
	}
	app = a
	return nil
}

// bootstrap wires store, embedder, retrieval, chat and ingestion from cfg.
func bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	a := &application{config: cfg}

	vectorStore, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
		ConnString: cfg.Database.URL,
		TableName:  cfg.Database.TableName,
		VectorDim:  cfg.Database.VectorDim,
		BatchSize:  cfg.Database.BatchSize,
		Probes:     cfg.Database.Probes,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	a.closers = append(a.closers, vectorStore.Close)

	fail := func(err error) (*application, error) {
		a.Close()
		return nil, err
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:   cfg.Embedder.Model,
		BaseURL: cfg.LLM.BaseURL,
	})
	if err != nil {
		return fail(err)
	}

	var queryEmbedder types.Embedder = embedder
	if cfg.Embedder.CacheSize > 0 {
		cached, err := llm.NewCachedEmbedder(embedder, cfg.Embedder.CacheSize)
		if err != nil {
			return fail(err)
		}
		queryEmbedder = cached
	}

	opts := []retrieval.Option{
		retrieval.WithLogger(logger),
		retrieval.WithCandidateCount(cfg.Retrieval.CandidateCount),
		retrieval.WithMinSimilarity(cfg.Retrieval.MinSimilarity),
		retrieval.WithChannelTimeout(cfg.Retrieval.ChannelTimeout),
		retrieval.WithDimension(cfg.Database.VectorDim),
	}
	if cfg.Rerank.Enabled {
		encoder, err := rerank.NewCrossEncoder(rerank.CrossEncoderConfig{
			URL:       cfg.Rerank.URL,
			BatchSize: cfg.Rerank.BatchSize,
			Workers:   cfg.Rerank.Workers,
			Timeout:   cfg.Rerank.Timeout,
		})
		if err != nil {
			return fail(err)
		}
		a.closers = append(a.closers, encoder.Close)
		opts = append(opts, retrieval.WithReranker(rerank.New(encoder, rerank.WithLogger(logger))))
	}

	retriever, err := retrieval.New(vectorStore, queryEmbedder, opts...)
	if err != nil {
		return fail(err)
	}

	search, err := tool.New(retriever, vectorStore, tool.Config{
		DefaultMaxResults: cfg.Retrieval.DefaultMaxResults,
		MaxResultsLimit:   cfg.Retrieval.MaxResultsLimit,
		Logger:            logger,
	})
	if err != nil {
		return fail(err)
	}
	a.search = search

	chat, err := llm.NewWithConfig(llm.ChatConfig{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		BaseURL:     cfg.LLM.BaseURL,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to initialize chat engine: %w", err))
	}

	a.assistant, err = assistant.New(search, chat,
		assistant.WithLogger(logger),
		assistant.WithMinCitationScore(cfg.Citation.MinScore))
	if err != nil {
		return fail(err)
	}

	pipeline, err := ingest.NewPipeline(vectorStore, embedder,
		ingest.WithLogger(logger),
		ingest.WithProcessor(processor.NewWithConfig(processor.ProcessorConfig{
			ChunkSize:    cfg.Processor.ChunkSize,
			ChunkOverlap: cfg.Processor.ChunkOverlap,
		})),
		ingest.WithProgress(progress.report))
	if err != nil {
		return fail(err)
	}
	a.closers = append(a.closers, pipeline.Release)
	a.ingest = pipeline
	a.store = vectorStore
	a.index = vectorStore

	return a, nil
}
