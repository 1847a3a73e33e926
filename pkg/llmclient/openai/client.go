// Package openai provides an llmclient.Provider backed by the OpenAI chat
// completions API.
package openai

import (
	"context"
	"errors"

	"github.com/oceanbase/durablemem-go/pkg/llmclient"
	openai "github.com/sashabaranov/go-openai"
)

// Client is an OpenAI LLM client. It implements llmclient.Provider.
type Client struct {
	client *openai.Client
	model  string
}

// Config is the configuration for the OpenAI LLM client.
type Config struct {
	// APIKey is the OpenAI API key. Required.
	APIKey string

	// Model is the chat model name, e.g. "gpt-4o-mini". Required.
	Model string

	// BaseURL overrides the OpenAI API base URL, for gateways and proxies.
	BaseURL string
}

// NewClient creates a new OpenAI LLM client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai llm: API key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	return &Client{client: client, model: cfg.Model}, nil
}

// Complete generates a single completion for the given prompts.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, opts ...llmclient.Option) (string, error) {
	options := llmclient.ApplyOptions(opts)

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
		TopP:        float32(options.TopP),
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("openai llm: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Close is a no-op; the OpenAI SDK client owns no resources to release.
func (c *Client) Close() error {
	return nil
}
