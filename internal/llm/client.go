package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"wikiquiz/internal/config"
)

// Prompt is one request to a generative-text model.
type Prompt struct {
	System string
	User   string
	Model  string // empty = the client's default model
	JSON   bool   // ask the provider for a JSON-only response where supported
}

// Client sends a prompt and returns the raw model text.
type Client interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, p Prompt) (string, error)

func (f ClientFunc) Generate(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}

// Options shared by the provider constructors.
type Options struct {
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// New builds the configured provider wrapped in a circuit breaker and, when a
// fallback model is configured, a fallback client.
func New(ctx context.Context, cfg *config.Config) (Client, error) {
	opts := Options{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLMTimeout(),
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %s", cfg.LLM.Provider)
	}

	var base Client
	switch cfg.LLM.Provider {
	case "gemini":
		g, err := NewGeminiClient(ctx, opts)
		if err != nil {
			return nil, err
		}
		base = g
	case "openai":
		base = NewOpenAIClient(opts)
	case "anthropic":
		base = NewAnthropicClient(opts)
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.LLM.Provider)
	}

	breaker := NewCircuitBreaker(cfg.LLM.BreakerThreshold, time.Duration(cfg.LLM.BreakerCooldownSeconds)*time.Second)
	var c Client = NewBreakerClient(base, breaker)
	if cfg.LLM.FallbackModel != "" && cfg.LLM.FallbackModel != cfg.LLM.Model {
		c = NewFallbackClient(c, cfg.LLM.FallbackModel)
	}
	log.Printf("[LLM] Provider %s ready (model=%s, fallback=%s)", cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.FallbackModel)
	return c, nil
}

func modelOr(p Prompt, def string) string {
	if p.Model != "" {
		return p.Model
	}
	return def
}
