package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ledgerline/brandmatch/internal/feedback"
	"github.com/ledgerline/brandmatch/internal/model"
	"github.com/ledgerline/brandmatch/internal/producer"
	"github.com/ledgerline/brandmatch/internal/service"
	"github.com/spf13/viper"
)

// createProducer creates a rule producer based on configuration. The
// categories slice is the catalog snapshot the producer grounds its prompts
// on, so callers load the catalog first.
func createProducer(categories []model.Category) (*producer.Producer, error) {
	// Read producer configuration from viper
	provider := viper.GetString("producer.provider")
	if provider == "" {
		provider = "stub" // offline default, no network or key required
	}

	cfg := producer.Config{
		Provider:    provider,
		Model:       viper.GetString("producer.model"),
		Temperature: viper.GetFloat64("producer.temperature"),
		MaxTokens:   viper.GetInt("producer.max_tokens"),
		MaxRetries:  viper.GetInt("producer.max_retries"),
		RetryDelay:  viper.GetDuration("producer.retry_delay"),
		RateLimit:   viper.GetInt("producer.rate_limit"),
	}

	// Set defaults if not specified
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 60 // requests per minute
	}

	// Get API key based on provider
	switch provider {
	case "openai":
		apiKey := viper.GetString("producer.openai_api_key")
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI API key not found in config or OPENAI_API_KEY environment variable")
		}
		cfg.APIKey = apiKey

	case "anthropic":
		apiKey := viper.GetString("producer.anthropic_api_key")
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic API key not found in config or ANTHROPIC_API_KEY environment variable")
		}
		cfg.APIKey = apiKey

	case "stub":
		// In-process provider, no key needed

	default:
		return nil, fmt.Errorf("unsupported producer provider: %s", provider)
	}

	p, err := producer.NewProducer(cfg, categories, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create rule producer: %w", err)
	}

	return p, nil
}

// createInterpreter selects the feedback interpreter. The keyword
// interpreter runs in process and is the default; "producer" routes feedback
// text through the same provider that authors rules.
func createInterpreter(p *producer.Producer) service.FeedbackInterpreter {
	if viper.GetString("feedback.interpreter") == "producer" {
		return p
	}
	return feedback.NewKeywordInterpreter()
}
