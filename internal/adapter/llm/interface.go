// Package llm provides an abstraction for LLM API clients.
package llm

import "context"

// ChatMessage is one message in the model conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the OpenAI-compatible completion request.
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// StreamCallback is called for each text delta in a streaming response.
// Returning an error aborts the stream.
type StreamCallback func(delta string) error

// LLMClient defines the interface for LLM API operations.
type LLMClient interface {
	// Complete sends a non-streaming completion request and returns the full
	// assistant text.
	Complete(ctx context.Context, req *ChatCompletionRequest) (string, error)

	// StreamComplete sends a streaming completion request. The callback is
	// invoked once per text delta, in generation order.
	StreamComplete(ctx context.Context, req *ChatCompletionRequest, callback StreamCallback) error
}

// Ensure implementations satisfy LLMClient.
var (
	_ LLMClient = (*Client)(nil)
	_ LLMClient = (*MockClient)(nil)
)
