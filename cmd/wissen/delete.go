package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [filename]",
	Short: "Remove a document from the knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if app == nil || app.store == nil {
			return errors.New("store not configured")
		}

		n, err := app.store.DeleteByFilename(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("no chunks found for %s", args[0])
		}
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Deleted %d chunks of %s\n", n, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
