package main

import (
	"moviehub-backend/internal/config"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate and print the effective configuration",
	Long:  "Loads configuration the same way the server does and prints it with secrets masked. Exits non-zero when it is invalid.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg.Redacted())
	},
}
