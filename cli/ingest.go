package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch every provider once and store new listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			pipeline, cleanup, err := a.newPipeline()
			if err != nil {
				return err
			}
			defer cleanup()

			summary, err := pipeline.Run(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: inserted=%d duplicates=%d errors=%d (fetched=%d dropped=%d provider_failures=%d)\n",
				summary.RunID, summary.Inserted, summary.Duplicates, summary.Errors,
				summary.Fetched, summary.Dropped, summary.ProviderFailures)
			return err
		},
	}
}
