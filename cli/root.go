// Package cli implements the rental-digest command line: one-shot ingest
// and report runs, and a scheduling daemon.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var criteriaFile string

var rootCmd = &cobra.Command{
	Use:   "rental-digest",
	Short: "Collects rental listings and mails a digest of what is new",
	Long: `rental-digest scrapes rental listings from several real-estate sites,
normalizes them, stores each listing once, and periodically delivers a
digest of the listings that appeared within a trailing window.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&criteriaFile, "criteria", "",
		"YAML search criteria file (overrides CRITERIA_FILE)")

	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newServeCmd())
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
