// Package llm abstracts the chat-completion backends the agents talk to.
package llm

import "context"

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest describes one chat-completion call.
type CompletionRequest struct {
	Model        string    `json:"model"`
	SystemPrompt string    `json:"system_prompt"`
	Messages     []Message `json:"messages"`
	Temperature  float32   `json:"temperature"`
	MaxTokens    int       `json:"max_tokens"`
}

// CompletionResponse is the normalized result of a completion call.
type CompletionResponse struct {
	Content      string  `json:"content"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	DurationMS   float64 `json:"duration_ms"`
}

// Provider is a chat-completion backend.
type Provider interface {
	// Complete performs one completion call. The context bounds the
	// whole call including retries and rate-limit waits.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	// Name identifies the backend for logging.
	Name() string
	// DefaultModel is used when a request leaves Model empty.
	DefaultModel() string
}
