package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ledgerline/brandmatch/internal/cli"
	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Show a brand's rule version history",
		Long: `Display every rule version recorded for a brand. Versions are append
only; at most one is active at a time.`,
		RunE: runRules,
	}

	cmd.Flags().Int64("brand", 0, "Brand id to inspect (required)")
	_ = cmd.MarkFlagRequired("brand")

	return cmd
}

func runRules(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	brandID, _ := cmd.Flags().GetInt64("brand")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	rules, err := store.ListRuleVersions(ctx, brandID)
	if err != nil {
		return fmt.Errorf("failed to list rule versions: %w", err)
	}

	if len(rules) == 0 {
		fmt.Println(cli.FormatSubtle("No rules recorded for this brand."))
		return nil
	}

	headers := []string{"VERSION", "ACTIVE", "PATTERN", "CATEGORIES", "CONFIDENCE", "CREATED"}
	rows := make([][]string, 0, len(rules))
	for _, r := range rules {
		active := ""
		if r.Active {
			active = cli.SuccessIcon
		}
		cats := make([]string, 0, len(r.CategorySet))
		for _, id := range r.CategorySet {
			cats = append(cats, strconv.FormatInt(id, 10))
		}
		rows = append(rows, []string{
			"v" + strconv.Itoa(r.Version),
			active,
			r.Pattern,
			strings.Join(cats, ","),
			fmt.Sprintf("%.2f", r.Confidence),
			r.CreatedAt.Format("2006-01-02 15:04"),
		})
	}

	fmt.Println(cli.RenderTable(headers, rows))
	return nil
}
