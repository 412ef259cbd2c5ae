// Package producer implements the external rule-authoring collaborator:
// LLM-backed clients that propose matching rules and interpret feedback,
// wrapped in rate limiting, retries, and a circuit breaker. Everything the
// provider returns is untrusted input; callers validate before acceptance.
package producer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ledgerline/brandmatch/internal/common"
	"github.com/ledgerline/brandmatch/internal/model"
	"github.com/ledgerline/brandmatch/internal/service"
)

// Config holds configuration for the rule producer.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	MaxRetries  int
	RetryDelay  time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
}

var (
	_ service.RuleProducer        = (*Producer)(nil)
	_ service.FeedbackInterpreter = (*Producer)(nil)
)

// Producer implements service.RuleProducer on top of a provider client. It
// owns the category catalog snapshot used to ground prompts and the
// resilience stack shared across brands.
type Producer struct {
	client      Client
	logger      *slog.Logger
	rateLimiter *rateLimiter
	breaker     *gobreaker.CircuitBreaker
	retryOpts   service.RetryOptions
	categories  []model.Category
}

// NewProducer creates a rule producer for the configured provider. The
// categories slice is the catalog snapshot included in every prompt.
func NewProducer(cfg Config, categories []model.Category, logger *slog.Logger) (*Producer, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer client: %w", err)
	}

	return newProducerWithClient(client, cfg, categories, logger), nil
}

// newProducerWithClient wires the resilience stack around an existing
// client. Split out so tests can inject fakes.
func newProducerWithClient(client Client, cfg Config, categories []model.Category, logger *slog.Logger) *Producer {
	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	return &Producer{
		client:      client,
		logger:      logger,
		retryOpts:   retryOpts,
		rateLimiter: newRateLimiter(cfg.RateLimit),
		breaker:     newBreaker("rule-producer"),
		categories:  categories,
	}
}

// ProduceRule requests a rule candidate for the brand. The prior rule, its
// confidence score, the latest refinement directive, and any rejection
// reason travel in the prompt as refinement context. The returned rule has
// no version; the caller assigns one after validation.
func (p *Producer) ProduceRule(ctx context.Context, brand model.Brand, prior *model.Rule, guidance *service.RuleGuidance) (*model.Rule, error) {
	if err := p.rateLimiter.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	prompt := buildRulePrompt(brand, prior, guidance, p.categories)

	var response RuleResponse

	_, err := p.breaker.Execute(func() (any, error) {
		return nil, common.WithRetry(ctx, func() error {
			resp, err := p.client.ProposeRule(ctx, prompt)
			if err != nil {
				p.logger.Warn("rule production attempt failed",
					"error", err,
					"brand_id", brand.ID,
					"brand", brand.Name)
				return &common.RetryableError{Err: err, Retryable: true}
			}
			response = resp
			return nil
		}, p.retryOpts)
	})
	if err != nil {
		return nil, fmt.Errorf("rule production failed: %w", err)
	}

	rule := &model.Rule{
		BrandID:     brand.ID,
		Pattern:     response.Pattern,
		CategorySet: response.CategoryIDs,
		Confidence:  response.Confidence,
		CreatedAt:   time.Now(),
	}
	rule.NormalizeCategorySet()

	p.logger.Info("rule candidate produced",
		"brand_id", brand.ID,
		"brand", brand.Name,
		"pattern", rule.Pattern,
		"category_count", len(rule.CategorySet),
		"confidence", rule.Confidence)

	return rule, nil
}

// Interpret converts raw feedback text into a structured interpretation.
// The same resilience stack guards the call; unknown issue categories are
// rejected here so downstream code only sees valid values.
func (p *Producer) Interpret(ctx context.Context, rawText string, citedIDs []model.TransactionID) (*service.Interpretation, error) {
	if err := p.rateLimiter.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	prompt := buildFeedbackPrompt(rawText, citedIDs)

	var response FeedbackResponse

	_, err := p.breaker.Execute(func() (any, error) {
		return nil, common.WithRetry(ctx, func() error {
			resp, err := p.client.InterpretFeedback(ctx, prompt)
			if err != nil {
				p.logger.Warn("feedback interpretation attempt failed", "error", err)
				return &common.RetryableError{Err: err, Retryable: true}
			}
			response = resp
			return nil
		}, p.retryOpts)
	})
	if err != nil {
		return nil, fmt.Errorf("feedback interpretation failed: %w", err)
	}

	issue := model.IssueCategory(response.IssueCategory)
	if !model.ValidIssueCategory(issue) {
		return nil, fmt.Errorf("provider returned unknown issue category %q", response.IssueCategory)
	}

	cited := make([]model.TransactionID, 0, len(response.CitedTransactionIDs))
	for _, raw := range response.CitedTransactionIDs {
		id, err := model.ParseTransactionID(raw)
		if err != nil {
			p.logger.Warn("provider cited malformed transaction id", "id", raw)
			continue
		}
		cited = append(cited, id)
	}

	return &service.Interpretation{
		IssueCategory:       issue,
		Summary:             response.Summary,
		CitedTransactionIDs: cited,
	}, nil
}

// Close releases the producer's background resources.
func (p *Producer) Close() error {
	if p.rateLimiter != nil {
		p.rateLimiter.Close()
	}
	return nil
}
