package backend

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOllamaURL = "http://localhost:11434"

// Ollama implements the Reviewer interface for Ollama and LM Studio through
// their OpenAI-compatible endpoints.
type Ollama struct {
	client *openai.Client
	model  string
}

// NewOllama creates a new Ollama backend. No API key is required by default;
// GAVEL_OLLAMA_API_KEY covers servers that want one.
func NewOllama(model string) (*Ollama, error) {
	baseURL := os.Getenv("OLLAMA_HOST")
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1/chat/completions")
	baseURL = strings.TrimSuffix(baseURL, "/v1")

	cfg := openai.DefaultConfig(os.Getenv("GAVEL_OLLAMA_API_KEY"))
	cfg.BaseURL = baseURL + "/v1"

	return &Ollama{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Review(ctx context.Context, req ReviewRequest) (ReviewResponse, error) {
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
	return resp, err
}
