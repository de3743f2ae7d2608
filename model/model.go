package model

import (
	"context"
	"fmt"
)

// Message is one turn of conversational input to a model.
type Message struct {
	Role string `json:"role"` // "user" or "assistant"
	Text string `json:"text"`
}

// Request captures the normalized model input.
type Request struct {
	System   string    `json:"system,omitempty"`
	Messages []Message `json:"messages"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the completed output of one generation call.
type Response struct {
	Text  string      `json:"text"`
	Usage *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the minimal interface required to drive text generation.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// Mock is a lightweight in-memory Model useful for tests and examples. It
// returns canned completions keyed by the last user message, or a generic
// echo when no canned response matches.
type Mock struct {
	info      Info
	responses map[string]string
	errs      map[string]error
	calls     []Request
}

// NewMock constructs a Mock model.
func NewMock(name string) *Mock {
	return &Mock{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
		errs:      make(map[string]error),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *Mock) AddResponse(prompt, response string) { m.responses[prompt] = response }

// AddError registers an error returned when the prompt matches.
func (m *Mock) AddError(prompt string, err error) { m.errs[prompt] = err }

// Calls returns every request seen so far, in order.
func (m *Mock) Calls() []Request { return m.calls }

// Generate implements Model.
func (m *Mock) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.calls = append(m.calls, req)
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("mock model: no messages provided")
	}
	last := req.Messages[len(req.Messages)-1].Text
	if err, ok := m.errs[last]; ok {
		return nil, err
	}
	if text, ok := m.responses[last]; ok {
		return &Response{Text: text}, nil
	}
	return &Response{Text: fmt.Sprintf("Mock response to: %s", last)}, nil
}

// Info implements Model.
func (m *Mock) Info() Info { return m.info }
