package main

import (
	"context"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	service "github.com/okian/tierd/internal/app"
)

// withService runs fn against a service built from configuration and stops
// it afterwards. Results are printed as indented JSON.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *service.Service) (any, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	_, svc, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer svc.Stop()

	out, err := fn(ctx, svc)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

func newRecomputeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute",
		Short: "Run one recompute pass over all active drivers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) (any, error) {
				return svc.RecomputeAll(ctx)
			})
		},
	}
}

func newPromoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <driver-id>",
		Short: "Promote one driver a single level if eligible",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) (any, error) {
				return svc.Promote(ctx, args[0])
			})
		},
	}
}

func newProgressionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progression <driver-id>",
		Short: "Show a driver's level, next level and unmet requirements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) (any, error) {
				return svc.GetProgression(ctx, args[0])
			})
		},
	}
}

func newLevelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "levels",
		Short: "Print the configured ladder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(_ context.Context, svc *service.Service) (any, error) {
				return svc.Levels(), nil
			})
		},
	}
}
