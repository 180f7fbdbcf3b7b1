package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"rental-digest/models"
)

func newReportCmd() *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Send a digest of listings stored within the trailing window",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if window <= 0 {
				window = a.cfg.ReportWindow
			}
			reporter, err := a.newReporter(ctx, window)
			if err != nil {
				return err
			}

			summary, err := reporter.Run(ctx)
			if errors.Is(err, models.ErrNothingToReport) {
				fmt.Fprintf(cmd.OutOrStdout(), "run %s: nothing new in the last %s\n", summary.RunID, window)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: listings=%d delivered=%t\n", summary.RunID, summary.Listings, summary.Delivered)
			return nil
		},
	}

	cmd.Flags().DurationVar(&window, "window", 0, "trailing window, e.g. 2h (default REPORT_WINDOW)")
	return cmd
}
