package llm

import (
	"context"
	"fmt"
)

// MockClient is a scriptable LLMClient for testing. When Response is empty it
// echoes the last user message.
type MockClient struct {
	// Response is streamed in ChunkSize pieces when set.
	Response string
	// ChunkSize controls delta size; defaults to 10 bytes.
	ChunkSize int
	// Err aborts Complete/StreamComplete when set.
	Err error
	// FailAfterChunks aborts the stream with Err after that many deltas were
	// already delivered, simulating a mid-stream upstream failure.
	FailAfterChunks int
}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Complete returns the scripted response.
func (m *MockClient) Complete(ctx context.Context, req *ChatCompletionRequest) (string, error) {
	if m.Err != nil && m.FailAfterChunks == 0 {
		return "", m.Err
	}
	return m.response(req), nil
}

// StreamComplete streams the scripted response in chunks.
func (m *MockClient) StreamComplete(ctx context.Context, req *ChatCompletionRequest, callback StreamCallback) error {
	if m.Err != nil && m.FailAfterChunks == 0 {
		return m.Err
	}

	response := m.response(req)
	size := m.ChunkSize
	if size <= 0 {
		size = 10
	}

	sent := 0
	for i := 0; i < len(response); i += size {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if m.Err != nil && sent >= m.FailAfterChunks {
			return m.Err
		}

		end := i + size
		if end > len(response) {
			end = len(response)
		}
		if err := callback(response[i:end]); err != nil {
			return err
		}
		sent++
	}

	if m.Err != nil {
		return m.Err
	}
	return nil
}

func (m *MockClient) response(req *ChatCompletionRequest) string {
	if m.Response != "" {
		return m.Response
	}

	var lastUserMessage string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			lastUserMessage = req.Messages[i].Content
			break
		}
	}
	if lastUserMessage == "" {
		return "[MOCK] This is a mock response from the LLM client."
	}
	return fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", truncate(lastUserMessage, 100))
}

// truncate truncates a string to the given number of runes.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
