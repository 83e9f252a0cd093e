// Package main is the tierd command: the HTTP server and one-shot admin
// commands over the configured progression store.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/okian/tierd/internal/config"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "tierd",
		Short:         "Driver tier classification and progression engine",
		Long:          "tierd tracks each driver's tier, decides promotions and runs recompute passes over the whole fleet.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if configPath != "" {
				return os.Setenv(config.EnvConfigPath, configPath)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides "+config.EnvConfigPath+")")

	root.AddCommand(
		newServeCmd(),
		newRecomputeCmd(),
		newPromoteCmd(),
		newProgressionCmd(),
		newLevelsCmd(),
	)
	return root
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
