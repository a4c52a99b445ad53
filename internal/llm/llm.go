// Package llm abstracts the chat-completion and embedding providers behind
// small interfaces so the rest of the service never imports an SDK directly.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrModelUnavailable wraps transport or provider failures on chat calls.
	ErrModelUnavailable = errors.New("language model unavailable")
	// ErrEmbeddingUnavailable wraps failures of the embedding endpoint.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
)

type Message struct {
	Role       string
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDefinition describes one callable function in the provider's schema
// format. Parameters is a JSON Schema object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type TokenUsage struct {
	Prompt     int
	Completion int
	Total      int
}

// Completion is one model turn: either text, tool calls, or both.
type Completion struct {
	Text      string
	ToolCalls []ToolCall
	Usage     TokenUsage
}

type Provider interface {
	Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (*Completion, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
