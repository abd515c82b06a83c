package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the documents in the knowledge base",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if app == nil || app.search == nil {
			return errors.New("search service not configured")
		}

		sources, err := app.search.AvailableSources(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing sources failed: %w", err)
		}
		if len(sources) == 0 {
			cmd.Println("No documents found.")
			return nil
		}
		for _, s := range sources {
			cmd.Println(s)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
