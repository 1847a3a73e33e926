// Package llmclient provides interfaces and shared types for Large Language
// Model providers used by the extraction and reconciliation stages of the
// write pipeline.
package llmclient

import "context"

// Provider defines the interface for LLM providers.
//
// All LLM implementations (OpenAI, Anthropic, etc.) must implement this
// interface. Callers pass a system prompt and a user prompt separately so
// implementations can route them to the provider's native system-message
// mechanism.
type Provider interface {
	// Complete generates a single text completion for the given system and
	// user prompts.
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts ...Option) (string, error)

	// Close releases resources held by the provider.
	Close() error
}

// Options contains options for a single completion request.
type Options struct {
	// Temperature controls randomness (0.0-2.0). Higher = more random.
	Temperature float64

	// MaxTokens limits the maximum number of tokens in the response.
	MaxTokens int

	// TopP controls nucleus sampling (0.0-1.0).
	TopP float64
}

// Option configures an Options value.
type Option func(*Options)

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float64) Option {
	return func(o *Options) { o.Temperature = temp }
}

// WithMaxTokens sets the maximum number of response tokens.
func WithMaxTokens(max int) Option {
	return func(o *Options) { o.MaxTokens = max }
}

// WithTopP sets the nucleus sampling parameter.
func WithTopP(topP float64) Option {
	return func(o *Options) { o.TopP = topP }
}

// ApplyOptions builds an Options value from a slice of Option functions.
// Defaults: Temperature=0.0 (deterministic, suited to extraction and
// reconciliation JSON output), MaxTokens=1024, TopP=1.0.
func ApplyOptions(opts []Option) *Options {
	options := &Options{
		Temperature: 0.0,
		MaxTokens:   1024,
		TopP:        1.0,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
