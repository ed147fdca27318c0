// Client - Simple wrapper around providers.

package llm

import (
	"context"
)

// Client wraps a Provider with a simple interface.
type Client struct {
	provider Provider
}

// NewClient creates a new LLM client from a provider.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider}
}

// Chat sends a chat completion request without tools.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (Response, error) {
	return c.provider.Chat(ctx, messages)
}

// ChatWithTools sends a chat completion request with tool definitions.
func (c *Client) ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (Response, error) {
	return c.provider.ChatWithTools(ctx, messages, tools)
}
