package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/wissen/internal/models"
	"github.com/xhad/wissen/pkg/ingest"
	"github.com/xhad/wissen/pkg/scraper"
)

var (
	ingestSource string
	ingestNote   bool
	ingestTitle  string
	ingestURL    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths...]",
	Short: "Add documents to the knowledge base",
	Long: `Chunks, embeds and stores documents. Re-ingesting a file replaces it.

  wissen ingest datenblaetter/             # all .txt and .md files below
  wissen ingest --source Datenblatt a.md   # tag the chunks with a source
  wissen ingest --note --title kunde-42 "Kunde nutzt 1:50 für Außenborder"
  wissen ingest --url https://example.com/produkte/`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "source label stored with every chunk")
	ingestCmd.Flags().BoolVar(&ingestNote, "note", false, "store the arguments (or stdin) as a manual note")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "note title (default notiz-<timestamp>)")
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "crawl pages starting at this URL")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if app == nil || app.ingest == nil {
		return errors.New("ingest pipeline not configured")
	}

	switch {
	case ingestURL != "":
		return ingestWebsite(cmd, ingestURL)
	case ingestNote:
		return ingestManualNote(cmd, args)
	case len(args) == 0:
		return errors.New("no files given")
	default:
		return ingestPaths(cmd, args)
	}
}

func ingestPaths(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no supported files found (%s)", strings.Join(ingest.SupportedExtensions(), ", "))
	}

	var (
		errs     []error
		ingested int
	)
	for _, path := range files {
		progress.start(getProgressBar(cmd.ErrOrStderr(), -1, "💾 "+filepath.Base(path)))
		res, err := app.ingest.IngestFile(cmd.Context(), path, ingestSource)
		progress.stop()

		if err != nil {
			color.New(color.FgRed).Fprintf(cmd.OutOrStdout(), "✗ %s: %v\n", path, err)
			errs = append(errs, err)
			if cmd.Context().Err() != nil {
				break
			}
			continue
		}
		printResult(cmd.OutOrStdout(), res)
		ingested++
	}
	if ingested > 0 {
		errs = append(errs, reindex(cmd))
	}
	return errors.Join(errs...)
}

// reindex rebuilds the vector index after a bulk ingest.
func reindex(cmd *cobra.Command) error {
	if app.index == nil {
		return nil
	}
	return app.index.Reindex(cmd.Context())
}

// collectFiles expands directories into the supported files below them.
// Files named explicitly are passed through so unsupported types are
// reported instead of silently skipped.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		err := filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if path == arg || isSupported(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func isSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range ingest.SupportedExtensions() {
		if ext == e {
			return true
		}
	}
	return false
}

func ingestManualNote(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if text == "" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read note: %w", err)
		}
		text = string(raw)
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("note is empty")
	}

	res, err := app.ingest.IngestNote(cmd.Context(), ingestTitle, text)
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

func ingestWebsite(cmd *cobra.Command, startURL string) error {
	var pages int32
	spinner := getSpinner(cmd.ErrOrStderr(), "📄 Lade Seiten...")

	cfg := app.config.Scraper
	s, err := scraper.NewWithConfig(scraper.ScraperConfig{
		BaseURL:           startURL,
		MaxDepth:          cfg.MaxDepth,
		RateLimit:         cfg.RateLimit,
		IgnorePatterns:    cfg.IgnorePatterns,
		AllowedExtensions: cfg.AllowedExtensions,
		OnProgress: func(string) {
			n := atomic.AddInt32(&pages, 1)
			spinner.Describe(color.CyanString("📄 Lade Seiten... (%d)", n))
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize scraper: %w", err)
	}

	docs, err := s.Scrape(cmd.Context(), startURL)
	_ = spinner.Finish()
	if err != nil {
		return fmt.Errorf("failed to crawl %s: %w", startURL, err)
	}
	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Crawled %d pages\n", len(docs))

	if err := ingestDocuments(cmd.Context(), cmd.OutOrStdout(), docs); err != nil {
		return err
	}
	return reindex(cmd)
}

func ingestDocuments(ctx context.Context, out io.Writer, docs []models.Document) error {
	results, err := app.ingest.IngestDocuments(ctx, docs)
	for _, res := range results {
		printResult(out, res)
	}
	return err
}

func printResult(out io.Writer, res *ingest.Result) {
	if res.Replaced > 0 {
		color.New(color.FgGreen).Fprintf(out, "✓ %s: %d chunks (replaced %d)\n", res.Filename, res.Chunks, res.Replaced)
		return
	}
	color.New(color.FgGreen).Fprintf(out, "✓ %s: %d chunks\n", res.Filename, res.Chunks)
}
