package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	mcpErrors "github.com/khirotaka/bmi-mcp/pkg/errors"
)

// Anthropic talks to the Anthropic Messages API or a compatible proxy.
type Anthropic struct {
	client *anthropic.Client
}

// NewAnthropic creates a client; baseURL may be empty for the public API.
// SDK-level retries are disabled.
func NewAnthropic(apiKey, baseURL string) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Anthropic{client: anthropic.NewClient(opts...)}
}

func (c *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	startTime := time.Now()

	var (
		system   []anthropic.TextBlockParam
		messages []anthropic.MessageParam
	)
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, anthropic.NewTextBlock(m.Content))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.F(anthropic.Model(req.Model)),
		MaxTokens:   anthropic.F(int64(req.MaxTokens)),
		Messages:    anthropic.F(messages),
		Temperature: anthropic.F(req.Temperature),
	}
	if len(system) > 0 {
		params.System = anthropic.F(system)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		slog.Error("LLM API request failed",
			"provider", "anthropic",
			"model", req.Model,
			"error", err,
			"duration_ms", time.Since(startTime).Milliseconds())
		return "", wrapError("anthropic", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if b, ok := block.AsUnion().(anthropic.TextBlock); ok {
			text.WriteString(b.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("%w: anthropic: no text in response", mcpErrors.ErrLLM)
	}

	content := strings.TrimSpace(text.String())
	slog.Debug("LLM response received",
		"provider", "anthropic",
		"model", req.Model,
		"stop_reason", resp.StopReason,
		"content_length", len(content),
		"duration_ms", time.Since(startTime).Milliseconds())
	return content, nil
}
