package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerline/brandmatch/internal/cli"
	"github.com/ledgerline/brandmatch/internal/model"
	"github.com/spf13/cobra"
)

func feedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Queue feedback on a brand's classification result",
		Long: `Submit reviewer feedback for a brand. The submission is queued and
consumed by the next run, which turns it into a refinement directive for
the rule producer.

Types:
  approve            Accept the result; the brand completes
  reject             Ask for another refinement iteration
  general            Free-text commentary, advisory only
  specific_examples  Cite concrete transactions as evidence

Examples:
  brandmatch feedback --brand 3 --result-version 2 --type approve
  brandmatch feedback --brand 3 --result-version 2 --type reject \
    --text "too broad, wrong merchant matched" --cite TX100@bank-a`,
		RunE: runFeedback,
	}

	// Flags
	cmd.Flags().Int64("brand", 0, "Brand id the feedback addresses (required)")
	cmd.Flags().Int("result-version", 0, "Result version the feedback addresses (required)")
	cmd.Flags().String("type", "", "Feedback type: approve, reject, general, specific_examples (required)")
	cmd.Flags().String("text", "", "Free-text feedback body")
	cmd.Flags().StringSlice("cite", nil, "Cited transaction ids in recordID@sourceID form (repeatable)")

	_ = cmd.MarkFlagRequired("brand")
	_ = cmd.MarkFlagRequired("result-version")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func runFeedback(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	brandID, _ := cmd.Flags().GetInt64("brand")
	resultVersion, _ := cmd.Flags().GetInt("result-version")
	feedbackType, _ := cmd.Flags().GetString("type")
	text, _ := cmd.Flags().GetString("text")
	cited, _ := cmd.Flags().GetStringSlice("cite")

	submission, err := buildSubmission(brandID, resultVersion, feedbackType, text, cited)
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	id, err := store.SaveFeedbackSubmission(ctx, submission)
	if err != nil {
		return fmt.Errorf("failed to queue feedback: %w", err)
	}

	slog.Info("Feedback queued", "id", id, "brand_id", brandID, "type", feedbackType)
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Queued %s feedback for brand %d result v%d", feedbackType, brandID, resultVersion)))

	return nil
}

// buildSubmission assembles and validates a feedback submission from flag
// values.
func buildSubmission(brandID int64, resultVersion int, feedbackType, text string, cited []string) (*model.FeedbackSubmission, error) {
	ids := make([]model.TransactionID, 0, len(cited))
	for _, raw := range cited {
		id, err := model.ParseTransactionID(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	submission := &model.FeedbackSubmission{
		BrandID:       brandID,
		ResultVersion: resultVersion,
		Type:          model.FeedbackType(feedbackType),
		Text:          text,
		CitedIDs:      ids,
		SubmittedAt:   time.Now(),
	}

	if err := submission.Validate(); err != nil {
		return nil, err
	}

	return submission, nil
}
