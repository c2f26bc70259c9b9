package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI implements the Reviewer interface using the chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a new OpenAI backend.
func NewOpenAI(model string) (*OpenAI, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}
	return &OpenAI{
		client: openai.NewClient(key),
		model:  model,
	}, nil
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Review(ctx context.Context, req ReviewRequest) (ReviewResponse, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		chatReq.Temperature = float32(req.Temperature)
	}

	var resp ReviewResponse
	err := retryWithBackoff(ctx, 3, func() error {
		chatResp, err := o.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return classifyOpenAIError(err)
		}
		if len(chatResp.Choices) == 0 {
			return fmt.Errorf("empty completion response")
		}
		resp = ReviewResponse{
			Content:        chatResp.Choices[0].Message.Content,
			TokensSent:     chatResp.Usage.PromptTokens,
			TokensReceived: chatResp.Usage.CompletionTokens,
		}
		return nil
	})
	if err != nil {
		slog.Debug("openai completion failed", "model", o.model, "error", err)
		return ReviewResponse{}, err
	}
	return resp, nil
}

// classifyOpenAIError maps the client's status-bearing errors onto the
// package's retry types.
func classifyOpenAIError(err error) error {
	if apiErr, ok := err.(*openai.APIError); ok {
		switch apiErr.HTTPStatusCode {
		case 429:
			return &rateLimitError{retryable: true}
		case 401, 403:
			return &authError{message: apiErr.Message}
		}
	}
	if strings.Contains(err.Error(), "429") {
		return &rateLimitError{retryable: true}
	}
	return fmt.Errorf("chat completion: %w", err)
}
