// Package main provides the PaperScanner CLI entry point.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "paperscanner",
		Short: "PaperScanner - arXiv conference paper cache",
		Long: `PaperScanner pulls recent arXiv listings, recognises papers accepted at
top-tier AI and security venues, and keeps them in a local SQLite cache
for random sampling and statistics.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "YAML config file (overrides PAPER_SCANNER_CONFIG)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled smart refresh",
		RunE:  runServe,
	})

	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch configured categories and store conference papers",
		RunE:  runRefresh,
	}
	refreshCmd.Flags().Bool("smart", false, "Purge legacy and expired papers before fetching")
	rootCmd.AddCommand(refreshCmd)

	sampleCmd := &cobra.Command{
		Use:   "sample",
		Short: "Print random cached papers",
		RunE:  runSample,
	}
	sampleCmd.Flags().Int("count", 5, "Number of papers")
	sampleCmd.Flags().Float64("min-confidence", -1, "Confidence floor (default from config)")
	rootCmd.AddCommand(sampleCmd)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-conference statistics",
		RunE:  runStats,
	}
	statsCmd.Flags().Bool("detailed", false, "Include confidence distribution")
	rootCmd.AddCommand(statsCmd)

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Retention operations",
	}
	expiredCmd := &cobra.Command{
		Use:   "expired",
		Short: "Delete papers published before the retention window",
		RunE:  runPurgeExpired,
	}
	expiredCmd.Flags().Int("days", -1, "Retention window in days (default from config)")
	purgeCmd.AddCommand(expiredCmd)
	purgeCmd.AddCommand(&cobra.Command{
		Use:   "conference [name]",
		Short: "Delete every paper assigned to a conference",
		Args:  cobra.ExactArgs(1),
		RunE:  runPurgeConference,
	})
	rootCmd.AddCommand(purgeCmd)

	wipeCmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete all cached papers and statistics",
		RunE:  runWipe,
	}
	wipeCmd.Flags().Bool("yes", false, "Confirm the wipe")
	rootCmd.AddCommand(wipeCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "match [text]",
		Short: "Classify a venue string without touching the cache",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runMatch,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "search [conference]",
		Short: "Search arXiv for one conference by all its names",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	})

	return rootCmd
}
