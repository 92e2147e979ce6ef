package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set via ldflags: go build -ldflags="-X main.version=1.0.0"
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "moviehub",
	Short: "Movie catalog proxy and search API",
	Long: `moviehub serves a rate-limited proxy in front of the TMDB API and an
aggregated search API that re-pages upstream results for the UI.

Running without a subcommand starts the server.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func main() {
	rootCmd.AddCommand(serveCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
