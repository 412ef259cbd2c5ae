// Package main contains the brandmatch CLI commands.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/ledgerline/brandmatch/internal/cli"
	"github.com/ledgerline/brandmatch/internal/engine"
	"github.com/ledgerline/brandmatch/internal/feedback"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Classify catalog transactions into brands",
		Long: `Drive every brand through the bounded refinement loop: acquire a rule
from the producer, match and confirm transactions, resolve cross-brand ties,
and consume queued feedback until each brand completes or escalates.

Examples:
  brandmatch run                      # All catalog brands
  brandmatch run --brands 3,17        # Only brands 3 and 17
  brandmatch run --max-iterations 8   # Allow more refinement rounds`,
		RunE: runRun,
	}

	// Flags
	cmd.Flags().String("run-id", "", "Run identifier (generated when empty)")
	cmd.Flags().IntP("max-iterations", "i", 5, "Refinement iterations allowed per brand")
	cmd.Flags().IntP("workers", "w", 4, "Brands advancing concurrently")
	cmd.Flags().Int("partitions", 1, "Shards for each brand's matching work")
	cmd.Flags().Duration("producer-timeout", 60*time.Second, "Timeout per producer call")
	cmd.Flags().Int64Slice("brands", nil, "Restrict the run to these brand ids (comma-separated)")
	cmd.Flags().Bool("no-progress", false, "Disable the progress bar")

	// Bind to viper (errors are rare and can be ignored in practice)
	_ = viper.BindPFlag("run.max_iterations", cmd.Flags().Lookup("max-iterations"))
	_ = viper.BindPFlag("run.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("run.partitions", cmd.Flags().Lookup("partitions"))
	_ = viper.BindPFlag("run.producer_timeout", cmd.Flags().Lookup("producer-timeout"))

	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	runID, _ := cmd.Flags().GetString("run-id")
	brandIDs, _ := cmd.Flags().GetInt64Slice("brands")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	// Initialize storage
	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	cat, err := initCatalog(ctx)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer func() {
		if closeErr := cat.Close(); closeErr != nil {
			slog.Error("Failed to close catalog", "error", closeErr)
		}
	}()

	// The producer grounds every prompt on the category snapshot
	categories, err := cat.GetCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}

	prod, err := createProducer(categories)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := prod.Close(); closeErr != nil {
			slog.Warn("Failed to close producer", "error", closeErr)
		}
	}()

	logger := slog.Default()
	deps := engine.Deps{
		Catalog:  cat,
		Store:    store,
		Producer: prod,
		Ingestor: feedback.NewIngestor(createInterpreter(prod), store, logger),
		Feedback: feedback.NewStoreSource(store, logger),
		Logger:   logger,
	}

	cfg := engine.Config{
		RunID:           runID,
		MaxIterations:   viper.GetInt("run.max_iterations"),
		Workers:         viper.GetInt("run.workers"),
		MatchPartitions: viper.GetInt("run.partitions"),
		ProducerTimeout: viper.GetDuration("run.producer_timeout"),
		BrandIDs:        brandIDs,
	}

	// Progress reports arrive from the sequential feedback phase, so the
	// lazily created bar needs no locking.
	var bar *progressbar.ProgressBar
	if !noProgress {
		cfg.OnProgress = func(terminal, total int) {
			if bar == nil {
				bar = newRunProgressBar(total)
			}
			if setErr := bar.Set(terminal); setErr != nil {
				slog.Warn("Failed to update progress bar", "error", setErr)
			}
		}
	}

	runner, err := engine.NewRunnerWithConfig(deps, cfg)
	if err != nil {
		return err
	}

	slog.Info("Starting classification run")

	summary, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("classification run failed: %w", err)
	}

	fmt.Println(summaryReport(summary))
	return nil
}

func newRunProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Settling brands..."),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}

// summaryReport renders the final accounting of a run: one table row per
// brand, then every escalation and unresolved tie enumerated below it.
func summaryReport(summary *engine.Summary) string {
	headers := []string{"ID", "BRAND", "STATUS", "ITER", "RULE", "CONFIRMED", "EXCLUDED", "TIES", "UNRESOLVED"}
	rows := make([][]string, 0, len(summary.Brands))
	for _, b := range summary.Brands {
		rows = append(rows, []string{
			strconv.FormatInt(b.BrandID, 10),
			b.BrandName,
			string(b.Status),
			strconv.Itoa(b.Iterations),
			"v" + strconv.Itoa(b.RuleVersion),
			strconv.Itoa(b.Confirmed),
			strconv.Itoa(b.Excluded),
			strconv.Itoa(b.TiesResolved),
			strconv.Itoa(len(b.UnresolvedTies)),
		})
	}

	out := cli.FormatTitle(fmt.Sprintf("Run %s %s after %s", summary.RunID, summary.Status, cli.FormatCount(summary.Rounds, "round"))) + "\n"
	out += cli.RenderTable(headers, rows)

	if escalated := summary.Escalated(); len(escalated) > 0 {
		out += "\n\n" + cli.FormatWarning(fmt.Sprintf("%s exhausted the iteration bound:", cli.FormatCount(len(escalated), "brand")))
		for _, b := range escalated {
			out += fmt.Sprintf("\n  %s %s (id %d) after %s", cli.WarningIcon, b.BrandName, b.BrandID, cli.FormatCount(b.Iterations, "iteration"))
		}
	}

	if total := summary.TotalUnresolvedTies(); total > 0 {
		out += "\n\n" + cli.FormatWarning(fmt.Sprintf("%s awaiting manual resolution:", cli.FormatCount(total, "tie")))
		for _, b := range summary.Brands {
			for _, id := range b.UnresolvedTies {
				out += fmt.Sprintf("\n  %s %s contested by %s", cli.WarningIcon, id, b.BrandName)
			}
		}
	}

	return out
}
