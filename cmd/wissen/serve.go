package main

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xhad/wissen/server"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat and search server",
	Long: `Serves the chat websocket (/ws) and the JSON API
(/api/ask, /api/search, /api/sources) until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if app == nil || app.assistant == nil || app.search == nil {
			return errors.New("assistant not configured")
		}

		port := app.config.Server.Port
		if servePort != "" {
			port = servePort
		}

		srv, err := server.New(app.assistant, app.search, server.Config{
			Port:      port,
			Streaming: app.config.Server.Streaming,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "HTTP port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
