package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ledgerline/brandmatch/internal/cli"
	"github.com/ledgerline/brandmatch/internal/model"
	"github.com/spf13/cobra"
)

func resultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show classification results for a run",
		Long: `Display the per-brand, per-version classification results recorded by
a run. Every refinement iteration leaves its own version; --latest keeps
only the newest version per brand.`,
		RunE: runResults,
	}

	// Flags
	cmd.Flags().String("run", "", "Run id to inspect (required)")
	cmd.Flags().Int64("brand", 0, "Restrict to one brand id")
	cmd.Flags().Bool("latest", false, "Show only the newest version per brand")
	cmd.Flags().String("format", "table", "Output format: table or json")

	_ = cmd.MarkFlagRequired("run")

	return cmd
}

func runResults(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	runID, _ := cmd.Flags().GetString("run")
	brandID, _ := cmd.Flags().GetInt64("brand")
	latest, _ := cmd.Flags().GetBool("latest")
	format, _ := cmd.Flags().GetString("format")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	results, err := store.ListResultsByRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to list results: %w", err)
	}

	results = filterResults(results, brandID, latest)
	if len(results) == 0 {
		fmt.Println(cli.FormatSubtle("No results recorded for this run."))
		return nil
	}

	switch format {
	case "json":
		out, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
		fmt.Println(string(out))
	case "table":
		fmt.Println(resultsTable(results))
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}

	return nil
}

// filterResults applies the brand filter and, when latest is set, keeps only
// the highest version per brand. The input arrives ordered by brand id then
// version.
func filterResults(results []model.ClassificationResult, brandID int64, latest bool) []model.ClassificationResult {
	filtered := make([]model.ClassificationResult, 0, len(results))
	for _, r := range results {
		if brandID != 0 && r.BrandID != brandID {
			continue
		}
		if latest && len(filtered) > 0 && filtered[len(filtered)-1].BrandID == r.BrandID {
			filtered[len(filtered)-1] = r
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func resultsTable(results []model.ClassificationResult) string {
	headers := []string{"BRAND", "VERSION", "RULE", "CONFIRMED", "EXCLUDED", "EXCL RATE", "TIES", "UNRESOLVED", "CREATED"}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			strconv.FormatInt(r.BrandID, 10),
			"v" + strconv.Itoa(r.Version),
			"v" + strconv.Itoa(r.RuleVersion),
			strconv.Itoa(r.Stats.TotalConfirmed),
			strconv.Itoa(r.Stats.TotalExcluded),
			fmt.Sprintf("%.0f%%", r.Stats.ExclusionRate*100),
			strconv.Itoa(len(r.TiesResolved)),
			strconv.Itoa(len(r.UnresolvedTies)),
			r.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	return cli.RenderTable(headers, rows)
}
