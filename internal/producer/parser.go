package producer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// cleanMarkdownWrapper strips markdown code fences that providers sometimes
// wrap around JSON payloads despite instructions not to.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		if idx := strings.Index(content, "\n"); idx != -1 {
			content = content[idx+1:]
		} else {
			content = strings.TrimPrefix(content, "```json")
			content = strings.TrimPrefix(content, "```")
		}
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")

	return strings.TrimSpace(content)
}

// parseRuleResponse extracts a proposed rule from the provider's raw text.
func parseRuleResponse(content string) (RuleResponse, error) {
	var jsonResp struct {
		Pattern     string  `json:"pattern"`
		Rationale   string  `json:"rationale"`
		CategoryIDs []int64 `json:"category_ids"`
		Confidence  float64 `json:"confidence"`
	}

	content = cleanMarkdownWrapper(content)

	if err := json.Unmarshal([]byte(content), &jsonResp); err != nil {
		return RuleResponse{}, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	if jsonResp.Pattern == "" {
		return RuleResponse{}, fmt.Errorf("no pattern found in response")
	}

	return RuleResponse{
		Pattern:     jsonResp.Pattern,
		Rationale:   jsonResp.Rationale,
		CategoryIDs: jsonResp.CategoryIDs,
		Confidence:  jsonResp.Confidence,
	}, nil
}

// parseFeedbackResponse extracts a structured interpretation from the
// provider's raw text.
func parseFeedbackResponse(content string) (FeedbackResponse, error) {
	var jsonResp struct {
		IssueCategory       string   `json:"issue_category"`
		Summary             string   `json:"summary"`
		CitedTransactionIDs []string `json:"cited_transaction_ids"`
		Confidence          float64  `json:"confidence"`
	}

	content = cleanMarkdownWrapper(content)

	if err := json.Unmarshal([]byte(content), &jsonResp); err != nil {
		return FeedbackResponse{}, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	if jsonResp.IssueCategory == "" {
		return FeedbackResponse{}, fmt.Errorf("no issue category found in response")
	}

	return FeedbackResponse{
		IssueCategory:       jsonResp.IssueCategory,
		Summary:             jsonResp.Summary,
		CitedTransactionIDs: jsonResp.CitedTransactionIDs,
		Confidence:          jsonResp.Confidence,
	}, nil
}
