package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mcpErrors "github.com/khirotaka/bmi-mcp/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAI talks to OpenAI or any API compatible with its chat completions
// endpoint.
type OpenAI struct {
	api *openai.Client
}

// NewOpenAI creates a client; baseURL may be empty for the public API.
func NewOpenAI(apiKey, baseURL string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{api: openai.NewClientWithConfig(cfg)}
}

func (c *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	startTime := time.Now()

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		slog.Error("LLM API request failed",
			"provider", "openai",
			"model", req.Model,
			"error", err,
			"duration_ms", time.Since(startTime).Milliseconds())
		return "", wrapError("openai", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai: no choices in response", mcpErrors.ErrLLM)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("LLM response received",
		"provider", "openai",
		"model", req.Model,
		"finish_reason", resp.Choices[0].FinishReason,
		"content_length", len(content),
		"duration_ms", time.Since(startTime).Milliseconds())
	return content, nil
}
