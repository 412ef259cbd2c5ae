package producer

import (
	"context"
)

// Client defines the interface for rule-authoring providers.
type Client interface {
	ProposeRule(ctx context.Context, prompt string) (RuleResponse, error)
	InterpretFeedback(ctx context.Context, prompt string) (FeedbackResponse, error)
}

// RuleResponse contains the provider's proposed matching rule. The payload
// is untrusted until it passes rule validation.
type RuleResponse struct {
	Pattern     string
	Rationale   string
	CategoryIDs []int64
	Confidence  float64
}

// FeedbackResponse contains the provider's structured reading of a raw
// feedback submission.
type FeedbackResponse struct {
	IssueCategory       string
	Summary             string
	CitedTransactionIDs []string
	Confidence          float64
}
