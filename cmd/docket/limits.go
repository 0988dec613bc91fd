package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/docket/internal/ratelimit"
)

var limitsReset bool

var limitsCmd = &cobra.Command{
	Use:   "limits <provider>",
	Short: "Show rate limit usage for a provider",
	Long: `Limits prints the current request and token usage against the configured
per-minute and per-hour limits. Counters are shared through the store, so
the numbers include every docket process using the same database.

Examples:
  docket limits anthropic
  docket limits anthropic --reset   # clear the current windows`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		st, err := a.openStore()
		if err != nil {
			return err
		}
		limiter := ratelimit.ForProvider(args[0], a.config.Get().RateLimits, st)
		limiter.SetLogger(a.logger)

		if limitsReset {
			if err := limiter.Reset(cmd.Context()); err != nil {
				return err
			}
			a.logger.Info("rate limit windows reset", "provider", args[0])
		}

		stats, err := limiter.UsageStats(cmd.Context())
		if err != nil {
			return err
		}
		return a.printer.Print(stats)
	},
}

func init() {
	limitsCmd.Flags().BoolVar(&limitsReset, "reset", false, "reset the current windows before printing")
}
