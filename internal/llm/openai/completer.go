// Package openai implements synth.Completer with the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"newslens/internal/domain"
	"newslens/internal/logging"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = openai.GPT4oMini

var ErrNoAPIKey = errors.New("OPENAI_API_KEY not set")

// Config configures the chat completions client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Completer sends a single user message per call. There are no retries.
type Completer struct {
	api    *openai.Client
	model  string
	logger *zap.Logger
}

// NewCompleter creates a completer. It fails with domain.ErrConfig when no API key is set.
func NewCompleter(cfg Config, logger *zap.Logger) (*Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfig, ErrNoAPIKey)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	apiCfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Completer{
		api:    openai.NewClientWithConfig(apiCfg),
		model:  model,
		logger: logging.OrNop(logger).Named("llm"),
	}, nil
}

// Complete returns the text of the first choice, or "" when there is none.
func (c *Completer) Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	// A zero temperature is dropped by omitempty on the wire.
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}
	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	c.logger.Debug("chat completion",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("took", time.Since(start)),
	)
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
