// Package feedback implements the feedback ingestor: normalization of raw
// feedback submissions into refinement directives, with cited-transaction
// validation against the brand's match history.
package feedback

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledgerline/brandmatch/internal/model"
	"github.com/ledgerline/brandmatch/internal/service"
)

var _ service.FeedbackInterpreter = (*KeywordInterpreter)(nil)

// keywordRules maps feedback phrasing to issue categories, first match
// wins. The phrases come from observed reviewer vocabulary.
var keywordRules = []struct {
	issue   model.IssueCategory
	phrases []string
}{
	{model.IssuePatternTooNarrow, []string{"too narrow", "missing", "misses", "not matching", "doesn't match", "should match", "under-match"}},
	{model.IssueProxyContamination, []string{"proxy", "processor", "square", "paypal", "sq *", "tst*", "intermediary"}},
	{model.IssueCategoryMismatch, []string{"category", "sector", "wrong type", "misclassified"}},
	{model.IssuePatternTooBroad, []string{"too broad", "unrelated", "false positive", "shouldn't match", "over-match", "wrong merchant"}},
}

// KeywordInterpreter is the deterministic fallback interpreter: no external
// collaborator, just phrase matching. Useful offline and under test; also
// the safety net when no provider is configured.
type KeywordInterpreter struct{}

// NewKeywordInterpreter returns a keyword-based interpreter.
func NewKeywordInterpreter() *KeywordInterpreter {
	return &KeywordInterpreter{}
}

// Interpret maps feedback phrasing to the best-fitting issue category. The
// cited ids pass through untouched; validation against match history is the
// ingestor's job.
func (k *KeywordInterpreter) Interpret(_ context.Context, rawText string, citedIDs []model.TransactionID) (*service.Interpretation, error) {
	if strings.TrimSpace(rawText) == "" && len(citedIDs) == 0 {
		return nil, fmt.Errorf("feedback carries no text and no cited transactions")
	}

	lower := strings.ToLower(rawText)

	issue := model.IssuePatternTooBroad
	for _, rule := range keywordRules {
		if containsAnyPhrase(lower, rule.phrases) {
			issue = rule.issue
			break
		}
	}

	summary := strings.TrimSpace(rawText)
	if summary == "" {
		summary = fmt.Sprintf("%d transactions cited as misclassified", len(citedIDs))
	}
	if len(summary) > 200 {
		summary = summary[:200]
	}

	return &service.Interpretation{
		IssueCategory:       issue,
		Summary:             summary,
		CitedTransactionIDs: citedIDs,
	}, nil
}

func containsAnyPhrase(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
