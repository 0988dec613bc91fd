package main

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	usageDays    int
	usageCurrent bool
	usageHour    bool
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show recorded provider usage and cost",
	Long: `Usage prints aggregated request, token and cost metrics from the shared
store.

Examples:
  docket usage               # last 7 days
  docket usage --days 30
  docket usage --current     # current hour and day
  docket usage --hour        # raw entries recorded this hour`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		rec, err := a.recorder()
		if err != nil {
			return err
		}

		if usageHour {
			entries, err := rec.HourMetrics(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			return a.printer.Print(entries)
		}

		if usageCurrent {
			usage, err := rec.CurrentUsage(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.Print(usage)
		}

		stats, err := rec.Stats(cmd.Context(), usageDays)
		if err != nil {
			return err
		}
		return a.printer.Print(stats)
	},
}

func init() {
	usageCmd.Flags().IntVar(&usageDays, "days", 7, "number of days to include")
	usageCmd.Flags().BoolVar(&usageCurrent, "current", false, "show the current hour and day only")
	usageCmd.Flags().BoolVar(&usageHour, "hour", false, "list the individual calls recorded this hour")
}
