package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"
)

// ClientConfig represents the configuration for a generation client.
type ClientConfig struct {
	Provider    string // "ollama" (default) or "anthropic"
	Model       string
	Temperature float64
	MaxTokens   int
	BaseURL     string // Ollama server URL
	APIKey      string // Anthropic API key
	RateLimit   float64
}

// Client drives chat completions against the configured provider. One
// client is shared by every concurrent section generator, so outbound
// calls go through a single rate limiter.
type Client struct {
	config  ClientConfig
	llm     llms.Model
	limiter *rate.Limiter
}

// NewWithConfig creates a new Client with the given configuration.
func NewWithConfig(config ClientConfig) (*Client, error) {
	if config.Provider == "" {
		config.Provider = "ollama"
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 8192
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 2.0
	}

	var model llms.Model
	var err error

	switch config.Provider {
	case "anthropic":
		if config.Model == "" {
			config.Model = "claude-sonnet-4-20250514"
		}
		model, err = anthropic.New(
			anthropic.WithModel(config.Model),
			anthropic.WithToken(config.APIKey),
		)
	case "ollama":
		if config.Model == "" {
			config.Model = "mistral"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		model, err = ollama.New(
			ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL),
		)
	default:
		return nil, fmt.Errorf("unknown provider: %s", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &Client{
		config:  config,
		llm:     model,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

// Stream runs one chat completion, invoking onDelta for every incremental
// text fragment as it arrives. onDelta returning an error aborts the call.
func (c *Client) Stream(ctx context.Context, system, user string, onDelta func(delta string) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	c.logPromptSize(system, user)

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	_, err := c.llm.GenerateContent(ctx, content,
		llms.WithMaxTokens(c.config.MaxTokens),
		llms.WithTemperature(c.config.Temperature),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return onDelta(string(chunk))
		}),
	)
	if err != nil {
		return fmt.Errorf("streaming completion: %w", err)
	}
	return nil
}

// Invoke runs one chat completion without streaming and returns the full
// response text. Used as the single-retry fallback when streaming fails.
func (c *Client) Invoke(ctx context.Context, system, user string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	resp, err := c.llm.GenerateContent(ctx, content,
		llms.WithMaxTokens(c.config.MaxTokens),
		llms.WithTemperature(c.config.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model")
	}

	var out strings.Builder
	for _, choice := range resp.Choices {
		if choice != nil {
			out.WriteString(choice.Content)
		}
	}
	return out.String(), nil
}

func (c *Client) logPromptSize(system, user string) {
	count, err := CountTokens(system + "\n" + user)
	if err != nil {
		return
	}
	log.Debug().Int("prompt_tokens", count).Str("model", c.config.Model).Msg("dispatching model call")
}
