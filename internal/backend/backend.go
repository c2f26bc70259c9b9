package backend

import (
	"context"
	"fmt"
)

// ReviewRequest contains the data sent to a backend for review.
type ReviewRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// ReviewResponse contains the raw response from a backend.
type ReviewResponse struct {
	Content        string
	TokensSent     int
	TokensReceived int
}

// Reviewer is the backend abstraction. Implementations are opaque to the
// rest of the pipeline: text in, text out, with token accounting.
type Reviewer interface {
	Review(ctx context.Context, req ReviewRequest) (ReviewResponse, error)
	Name() string
}

// New creates a backend by provider name.
func New(provider, model string) (Reviewer, error) {
	switch provider {
	case "anthropic", "claude":
		return NewAnthropic(model)
	case "openai":
		return NewOpenAI(model)
	case "ollama", "lmstudio", "local":
		return NewOllama(model)
	default:
		return nil, fmt.Errorf("unknown backend: %s", provider)
	}
}
