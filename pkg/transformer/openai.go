// Package transformer adapts chat-completion APIs to the pipeline's
// Transformer contract: texts in, aligned translated texts out.
package transformer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/formatkeep/formatkeep/pkg/pipeline"
)

// Config describes one OpenAI-compatible endpoint.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	Retry       RetryConfig
}

// Client calls an OpenAI-compatible chat endpoint and implements
// pipeline.Transformer.
type Client struct {
	api    *openai.Client
	cfg    Config
	logger *zap.Logger
}

// NewClient builds a Client. The underlying HTTP client retries transport
// failures; the caller owns semantic retries.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	apiConfig.HTTPClient = WrapHTTPClient(&http.Client{Timeout: cfg.Timeout}, cfg.Retry, logger)

	return &Client{
		api:    openai.NewClientWithConfig(apiConfig),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Transform sends the framed texts in one chat completion and realigns the
// response. A missing segment comes back as an empty slot; the raw response
// rides along for content-based repair downstream.
func (c *Client) Transform(ctx context.Context, texts []string, targetLanguage string) (*pipeline.TransformResult, error) {
	if len(texts) == 0 {
		return &pipeline.TransformResult{}, nil
	}

	system, user := BuildPrompt(texts, targetLanguage)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	results := ParseSegments(raw, len(texts))

	recovered := 0
	for _, s := range results {
		if strings.TrimSpace(s) != "" {
			recovered++
		}
	}
	c.logger.Debug("transform completed",
		zap.String("model", c.cfg.Model),
		zap.Int("segmentsSent", len(texts)),
		zap.Int("segmentsRecovered", recovered),
		zap.Int("promptTokens", resp.Usage.PromptTokens),
		zap.Int("completionTokens", resp.Usage.CompletionTokens))

	return &pipeline.TransformResult{
		Results:      results,
		Raw:          raw,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// MaskToken shortens a credential for log output.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
