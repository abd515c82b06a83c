package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var askStream bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the knowledge base",
	Long: `Answers a support question from the knowledge base.

Without arguments an interactive chat starts; type 'exit' to quit.`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askStream, "stream", true, "print the answer while it is generated")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if app == nil || app.assistant == nil {
		return errors.New("assistant not configured")
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) > 0 {
		askOnce(ctx, out, cmd.ErrOrStderr(), strings.Join(args, " "))
		return nil
	}

	color.New(color.FgCyan).Fprintln(out, "\nFragen Sie die Wissensdatenbank (mit 'exit' beenden)")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	userPrompt := color.New(color.FgGreen)

	for {
		userPrompt.Fprint(out, "\nSie: ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.EqualFold(question, "exit") {
			break
		}

		askOnce(ctx, out, cmd.ErrOrStderr(), question)
	}

	return scanner.Err()
}

// askOnce prints the answer to one question. Failures are shown as the
// assistant's fixed message; details go to the debug log.
func askOnce(ctx context.Context, out, status io.Writer, question string) {
	assistantPrompt := color.New(color.FgCyan)
	spinner := getSpinner(status, "🔍 Durchsuche Wissensdatenbank...")

	streamed := false
	var onChunk func(string)
	if askStream {
		onChunk = func(chunk string) {
			if !streamed {
				_ = spinner.Finish()
				assistantPrompt.Fprint(out, "\nAssistent: ")
				streamed = true
			}
			fmt.Fprint(out, chunk)
		}
	}

	answer, err := app.assistant.AskStream(ctx, question, onChunk)
	_ = spinner.Finish()

	if err != nil {
		slog.Debug("question failed", "query", question, "err", err)
		color.New(color.FgRed).Fprintf(out, "\n%s\n", answer.Text)
		return
	}

	if streamed {
		fmt.Fprintln(out)
		return
	}
	assistantPrompt.Fprint(out, "\nAssistent: ")
	fmt.Fprintln(out, answer.Text)
}
