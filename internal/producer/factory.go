package producer

import (
	"fmt"
	"strings"
)

// NewClient creates a raw provider client based on the provided
// configuration. Most callers want NewProducer, which adds rate limiting,
// retries, and the circuit breaker; the raw client is for collaborators that
// bring their own resilience stack.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newOpenAIClient(cfg)
	case "anthropic":
		return newAnthropicClient(cfg)
	case "stub":
		return NewStub(), nil
	default:
		return nil, fmt.Errorf("unsupported producer provider: %s", cfg.Provider)
	}
}
