package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/fatflowers/paygate/internal/app"
	"github.com/fatflowers/paygate/internal/app/service/billing"
	"github.com/fatflowers/paygate/internal/app/service/token"
	"github.com/fatflowers/paygate/internal/platform/gateway"
	"github.com/fatflowers/paygate/pkg/config"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "paygate-billing",
		Short:        "Recurring billing and gateway maintenance for paygate",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(tickCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(gatewayCmd())
	rootCmd.AddCommand(tokensCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withBilling forces the background runner on or off regardless of config.
func withBilling(enabled bool) fx.Option {
	return fx.Decorate(func(c *config.Config) *config.Config {
		c.Billing.Enabled = enabled
		return c
	})
}

// start builds the core graph, populates targets and starts it. The returned
// stop func must be called.
func start(ctx context.Context, opts ...fx.Option) (func(), error) {
	a := fx.New(append([]fx.Option{app.CoreModule, fx.NopLogger}, opts...)...)
	if err := a.Err(); err != nil {
		return nil, err
	}
	startCtx, cancel := context.WithTimeout(ctx, app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
		defer cancel()
		_ = a.Stop(stopCtx)
	}, nil
}

func tickCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Charge every subscription that is due and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			var s *billing.Scheduler
			stop, err := start(cmd.Context(), withBilling(false), fx.Populate(&s))
			if err != nil {
				return err
			}
			defer stop()

			res, err := s.Tick(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "due=%d charged=%d failed=%d cancelled=%d skipped=%d errors=%d\n",
				res.Due, res.Charged, res.Failed, res.Cancelled, res.Skipped, res.Errors)
			if res.Errors > 0 {
				return fmt.Errorf("%d subscriptions could not be processed", res.Errors)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Print the batch result as JSON")
	return cmd
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the billing scheduler until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			stop, err := start(ctx, withBilling(true))
			if err != nil {
				return err
			}
			defer stop()
			<-ctx.Done()
			return nil
		},
	}
}

func gatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Gateway maintenance commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the configured gateway credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			var api *gateway.API
			stop, err := start(cmd.Context(), withBilling(false), fx.Populate(&api))
			if err != nil {
				return err
			}
			defer stop()

			if err := api.ValidateCredentials(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "gateway credentials OK")
			return nil
		},
	})
	return cmd
}

func tokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Card token maintenance commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired card tokens and reassign defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			var tokens *token.Service
			stop, err := start(cmd.Context(), withBilling(false), fx.Populate(&tokens))
			if err != nil {
				return err
			}
			defer stop()

			n, err := tokens.CleanupExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed=%d\n", n)
			return nil
		},
	})
	return cmd
}
