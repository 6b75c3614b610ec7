package llmprovider

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAIBackend calls an OpenAI-compatible chat completions endpoint via
// the go-openai SDK, so OpenAI-compatible proxies (Ollama's OpenAI shim,
// local gateways) work by overriding BaseURL alone.
type OpenAIBackend struct {
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
	client    *openai.Client
}

// NewOpenAIBackend constructs a backend targeting the standard OpenAI
// API unless baseURL overrides it (useful for OpenAI-compatible proxies).
func NewOpenAIBackend(model, apiKey, baseURL string, maxTokens int) *OpenAIBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIBackend{
		Model:     model,
		APIKey:    apiKey,
		BaseURL:   cfg.BaseURL,
		MaxTokens: maxTokens,
		client:    openai.NewClientWithConfig(cfg),
	}
}

// Complete implements Provider.
func (b *OpenAIBackend) Complete(ctx context.Context, messages []Message, options map[string]interface{}) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:     b.Model,
		MaxTokens: b.MaxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai response had no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
