package main

import (
	"fmt"
	"strconv"

	"github.com/ledgerline/brandmatch/internal/cli"
	"github.com/spf13/cobra"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent classification runs",
		Long:  `Display recent runs, newest first, with their status and bounds.`,
		RunE:  runRuns,
	}

	cmd.Flags().IntP("limit", "n", 10, "Maximum number of runs to show")

	return cmd
}

func runRuns(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println(cli.FormatSubtle("No runs recorded. Start one with 'brandmatch run'."))
		return nil
	}

	headers := []string{"RUN", "STATUS", "MAX ITER", "STARTED", "COMPLETED"}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		completed := "-"
		if r.CompletedAt != nil {
			completed = r.CompletedAt.Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{
			r.ID,
			string(r.Status),
			strconv.Itoa(r.MaxIterations),
			r.StartedAt.Format("2006-01-02 15:04"),
			completed,
		})
	}

	fmt.Println(cli.RenderTable(headers, rows))
	return nil
}
