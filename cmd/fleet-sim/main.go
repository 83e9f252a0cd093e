// Command fleet-sim enrolls a synthetic fleet on a running tierd server,
// feeds scores, runs recompute passes and verifies the resulting levels.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/okian/tierd/internal/fleetsim"
	"github.com/okian/tierd/pkg/logger"
)

// Default configuration constants.
const (
	defaultDrivers     = 1000
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func newRootCmd() *cobra.Command {
	cfg := fleetsim.Config{}
	var logFormat string

	cmd := &cobra.Command{
		Use:           "fleet-sim",
		Short:         "End-to-end load and verification run against tierd",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.InitWithFormat(logFormat); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTestTimeout)
			defer cancel()
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			_, err := fleetsim.NewRunner(cfg).Run(ctx)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", envOr("TIER_SIM_URL", "http://localhost:9080"), "base URL of the service")
	f.IntVar(&cfg.Drivers, "drivers", defaultDrivers, "number of synthetic drivers")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultWorkers, "concurrent requests")
	f.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	f.Uint64Var(&cfg.Seed, "seed", uint64(time.Now().UnixNano()), "profile generator seed")
	f.IntVar(&cfg.Passes, "passes", 2, "recompute passes to run and verify")
	f.StringVar(&cfg.OutputFile, "output", "", "write the generated fleet to this JSON file")
	f.StringVar(&logFormat, "log-format", logger.FormatText, "log output format: text or json")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
