// Package anthropic provides an llmclient.Provider backed by the Anthropic
// Messages API, via the official anthropic-sdk-go client.
package anthropic

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/oceanbase/durablemem-go/pkg/llmclient"
)

// Client is an Anthropic LLM client. It implements llmclient.Provider.
type Client struct {
	client *anthropic.Client
	model  anthropic.Model
}

// Config is the configuration for the Anthropic LLM client.
type Config struct {
	// APIKey is the Anthropic API key. Required.
	APIKey string

	// Model is the Claude model name. Defaults to Claude 3.5 Sonnet.
	Model string

	// BaseURL overrides the Anthropic API base URL, for gateways and proxies.
	BaseURL string
}

// NewClient creates a new Anthropic LLM client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic llm: API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaude3_5SonnetLatest
	}

	return &Client{client: &client, model: model}, nil
}

// Complete generates a single completion for the given prompts.
//
// The system prompt is passed via the Messages API's dedicated system
// field rather than as a message, per Anthropic's API contract.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, opts ...llmclient.Option) (string, error) {
	options := llmclient.ApplyOptions(opts)

	params := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   int64(options.MaxTokens),
		Temperature: anthropic.Float(options.Temperature),
		TopP:        anthropic.Float(options.TopP),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errors.New("anthropic llm: no text content in response")
}

// Close is a no-op; the SDK client owns no resources to release.
func (c *Client) Close() error {
	return nil
}
