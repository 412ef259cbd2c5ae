package producer

import (
	"fmt"
	"strings"

	"github.com/ledgerline/brandmatch/internal/model"
	"github.com/ledgerline/brandmatch/internal/service"
)

// buildRulePrompt creates the prompt for rule production. It carries the
// brand, the category catalog, and whatever refinement context exists: the
// prior rule with its confidence score, the latest directive, and the
// rejection reason when the previous candidate failed validation.
func buildRulePrompt(brand model.Brand, prior *model.Rule, guidance *service.RuleGuidance, categories []model.Category) string {
	var b strings.Builder

	fmt.Fprintf(&b, `Author a transaction matching rule for the brand below. A transaction
belongs to the brand when the pattern matches its narrative text AND its
category id is in the rule's category set.

Brand: %s
Sector: %s

Available categories (id: description, sector):
`, brand.Name, brand.Sector)

	for _, c := range categories {
		fmt.Fprintf(&b, "- %d: %s, %s\n", c.ID, c.Description, c.Sector)
	}

	if prior != nil {
		fmt.Fprintf(&b, "\nPrior rule (version %d):\nPattern: %s\nCategory ids: %s\n",
			prior.Version, prior.Pattern, joinIDs(prior.CategorySet))
	}

	if guidance != nil {
		if guidance.PriorScore > 0 {
			fmt.Fprintf(&b, "Prior rule confidence score: %.2f\n", guidance.PriorScore)
		}
		if d := guidance.Directive; d != nil {
			fmt.Fprintf(&b, "\nRefinement feedback (%s): %s\n", d.IssueCategory, d.Summary)
			if len(d.CitedTransactionIDs) > 0 {
				ids := make([]string, len(d.CitedTransactionIDs))
				for i, id := range d.CitedTransactionIDs {
					ids[i] = id.Key()
				}
				fmt.Fprintf(&b, "Cited transactions: %s\n", strings.Join(ids, ", "))
			}
		}
		if guidance.RejectedReason != "" {
			fmt.Fprintf(&b, "\nYour previous candidate was rejected: %s\nFix that defect in this candidate.\n", guidance.RejectedReason)
		}
	}

	b.WriteString(`
REQUIREMENTS:
- The pattern is an RE2 regular expression applied case-insensitively to the raw narrative.
- Prefer anchored, specific patterns over broad substrings.
- The category set must be non-empty and use only ids from the list above.
- Do not match third-party processor prefixes (SQ *, TST*, PAYPAL *) unless the brand name follows them.

Respond with ONLY a valid JSON object, no markdown fences or commentary:
{"pattern": "<regex>", "category_ids": [<id>, ...], "confidence": <0.0-1.0>, "rationale": "<one sentence>"}`)

	return b.String()
}

// buildFeedbackPrompt creates the prompt for feedback interpretation.
func buildFeedbackPrompt(rawText string, citedIDs []model.TransactionID) string {
	var b strings.Builder

	b.WriteString(`Interpret this feedback about a brand's transaction matching rule and
classify the reported defect.

Feedback text:
`)
	b.WriteString(rawText)
	b.WriteString("\n")

	if len(citedIDs) > 0 {
		ids := make([]string, len(citedIDs))
		for i, id := range citedIDs {
			ids[i] = id.Key()
		}
		fmt.Fprintf(&b, "\nCited transactions: %s\n", strings.Join(ids, ", "))
	}

	b.WriteString(`
Issue categories:
- pattern-too-broad: the pattern matches unrelated merchants
- pattern-too-narrow: the pattern misses legitimate matches
- category-mismatch: the category set is wrong for the brand
- proxy-text-contamination: matches are dominated by third-party processor text

Respond with ONLY a valid JSON object, no markdown fences or commentary:
{"issue_category": "<one of the above>", "summary": "<one sentence>", "cited_transaction_ids": ["recordID@sourceID", ...], "confidence": <0.0-1.0>}`)

	return b.String()
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}
