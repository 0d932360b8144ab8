package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mcphub/internal/app"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveHost and servePort override the listen address from the environment.
var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the hub and connect to the configured upstreams",
	Long: `Starts the hub: connects to every configured upstream MCP server,
spawns and supervises Service-kind upstreams, and serves the merged tool
namespace over SSE. The administrative API and Prometheus metrics share
the same listener.

Configuration comes from the environment (optionally via a .env file) and
the upstreams file named by MCPHUB_UPSTREAMS.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	application, err := app.NewApplication(app.Options{
		Debug: serveDebug,
		Host:  serveHost,
		Port:  servePort,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides HOST)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides PORT)")
}
