package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"PaperScanner/internal/app"
	"PaperScanner/internal/conference"
	"PaperScanner/internal/config"
	"PaperScanner/internal/domain"
	"PaperScanner/internal/logging"
)

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := os.Setenv("PAPER_SCANNER_CONFIG", path); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openApp(cmd *cobra.Command) (*app.Application, config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	application, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	return application, cfg, logger, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	application, _, logger, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Serve(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		return err
	}
	return nil
}

func runRefresh(cmd *cobra.Command, args []string) error {
	application, _, _, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	smart, _ := cmd.Flags().GetBool("smart")
	run := application.Pipeline().Refresh
	if smart {
		run = application.Pipeline().SmartRefresh
	}
	stats, err := run(ctx)
	printRunStats(cmd.OutOrStdout(), stats)
	return err
}

func runSample(cmd *cobra.Command, args []string) error {
	application, cfg, _, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	count, _ := cmd.Flags().GetInt("count")
	minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")
	if minConfidence < 0 {
		minConfidence = cfg.Matching.MinConfidence
	}

	papers, err := application.Catalog().Sample(cmd.Context(), count, minConfidence)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(papers) == 0 {
		fmt.Fprintln(out, "no cached papers match; run `paperscanner refresh` first")
		return nil
	}
	for i, p := range papers {
		fmt.Fprintf(out, "%d. %s\n", i+1, p.Title)
		fmt.Fprintf(out, "   %s %s (confidence %.2f)\n", p.Conference, p.Year, p.Confidence)
		fmt.Fprintf(out, "   %s\n", p.Authors)
		fmt.Fprintf(out, "   %s\n", p.PDFURL)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	application, _, _, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx := cmd.Context()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	if detailed, _ := cmd.Flags().GetBool("detailed"); detailed {
		rows, err := application.Catalog().Breakdown(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "CONFERENCE\tTOTAL\tAVG\tMIN\tMAX\tHIGH\tMEDIUM\tLOW")
		for _, b := range rows {
			fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t%d\t%d\t%d\n",
				b.Conference, b.Total, b.AvgConfidence, b.MinConfidence, b.MaxConfidence,
				b.HighConfidence, b.MediumConfidence, b.LowConfidence)
		}
		return nil
	}

	stats, err := application.Catalog().Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "CONFERENCE\tPAPERS\tAVG CONFIDENCE\tUPDATED")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%s\n", s.Conference, s.TotalPapers, s.AvgConfidence, s.LastUpdated.Format(domain.DateLayout))
	}
	return nil
}

func runPurgeExpired(cmd *cobra.Command, args []string) error {
	application, cfg, _, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	days, _ := cmd.Flags().GetInt("days")
	if days < 0 {
		days = cfg.Cache.Days
	}
	removed := application.Catalog().PurgeExpired(cmd.Context(), days)
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d papers older than %d days\n", removed, days)
	return nil
}

func runPurgeConference(cmd *cobra.Command, args []string) error {
	application, _, _, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	removed := application.Catalog().PurgeConference(cmd.Context(), args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d %s papers\n", removed, args[0])
	return nil
}

func runWipe(cmd *cobra.Command, args []string) error {
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		return errors.New("refusing to wipe the cache without --yes")
	}
	application, _, _, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	if !application.Catalog().Wipe(cmd.Context(), true) {
		return errors.New("wipe failed, see log")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "cache wiped")
	return nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	text := strings.Join(args, " ")
	classifier := conference.NewClassifier(conference.NewMatcher(conference.DefaultRegistry(), cfg.Matching.Threshold), nil)

	out := cmd.OutOrStdout()
	res, ok := classifier.Classify("", "", text)
	if !ok {
		fmt.Fprintln(out, "no conference recognised")
		return nil
	}
	fmt.Fprintf(out, "%s %s (confidence %.2f, %s)\n", res.Conference, res.Year, res.Confidence, domain.ConfidenceBand(res.Confidence))
	if all := classifier.FindAll(text); len(all) > 1 {
		names := make([]string, 0, len(all))
		for _, m := range all {
			names = append(names, m.Conference)
		}
		fmt.Fprintf(out, "also mentions: %s\n", strings.Join(names, ", "))
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	application, _, _, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name, stats, err := application.Pipeline().SearchConference(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "conference: %s\n", name)
	printRunStats(cmd.OutOrStdout(), stats)
	return nil
}

func printRunStats(out io.Writer, stats domain.RunStats) {
	fmt.Fprintf(out, "run %s: fetched %d, matched %d (high %d, medium %d, low %d), unmatched %d, duplicates %d, skipped %d, stored %d\n",
		stats.RunID, stats.TotalFetched, stats.Matched,
		stats.HighConfidence, stats.MediumConfidence, stats.LowConfidence,
		stats.Unmatched, stats.Duplicates, stats.Skipped, stats.Stored)
	if len(stats.FailedCategories) > 0 {
		fmt.Fprintf(out, "failed: %s\n", strings.Join(stats.FailedCategories, ", "))
	}
}
