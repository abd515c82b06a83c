package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xhad/wissen/pkg/tool"
)

var (
	searchLimit  int
	searchSource string
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the knowledge base",
	Long: `Runs a hybrid search over all ingested documents.
Combines semantic (vector) and keyword search and prints the ranked passages.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", tool.DefaultMaxResults, "maximum number of results")
	searchCmd.Flags().StringVar(&searchSource, "source", "", "only return results from this source")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if app == nil || app.search == nil {
		return errors.New("search service not configured")
	}

	resp, err := app.search.Search(cmd.Context(), tool.Params{
		Query:        args[0],
		MaxResults:   searchLimit,
		SourceFilter: searchSource,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(resp.Results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(resp.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, r := range resp.Results {
		title := r.Source
		if i < len(resp.Matches) {
			m := resp.Matches[i]
			title = fmt.Sprintf("%s, Seite %d", m.Filename(), m.Page())
		}
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, r.Similarity)
		cmd.Printf("      Source: %s (%s)\n", r.Source, r.SourceType)
		if r.RerankScore != nil {
			cmd.Printf("      Rerank: %.3f\n", *r.RerankScore)
		}
		cmd.Printf("      %s\n", snippet(r.Content, 200))
		cmd.Println()
	}
	return nil
}

func snippet(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
