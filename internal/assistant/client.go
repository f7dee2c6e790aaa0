// Package assistant provides clients for the external completion endpoint
// and interpretation of assistant replies.
package assistant

import (
	"context"
)

// Turn is a single entry in the conversation history sent to the assistant.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion request. Prompt carries the concatenated
// context + history + question for providers that only accept one string.
type Request struct {
	Question    string
	Context     string
	History     []Turn
	UserRole    string
	UserModules []string
	Prompt      string
}

// Client is the interface for assistant providers.
type Client interface {
	// Complete sends a completion request and returns the raw reply text.
	Complete(ctx context.Context, req *Request) (string, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of assistant provider.
type Provider string

const (
	ProviderEndpoint  Provider = "endpoint"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Config selects and configures an assistant provider.
type Config struct {
	Provider        Provider
	EndpointURL     string
	OpenAIAPIKey    string
	AnthropicAPIKey string
}

// NewClient creates an assistant client for the configured provider.
func NewClient(cfg Config) (Client, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.OpenAIAPIKey)
	case ProviderAnthropic:
		return NewAnthropicClient(cfg.AnthropicAPIKey)
	default:
		return NewEndpointClient(cfg.EndpointURL)
	}
}
