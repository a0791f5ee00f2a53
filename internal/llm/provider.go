// Package llm adapts language-model APIs to the single completion call the
// resolver needs.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/khirotaka/bmi-mcp/internal/config"
	mcpErrors "github.com/khirotaka/bmi-mcp/pkg/errors"
)

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

type Message struct {
	Role    Role
	Content string
}

// Request is one completion round trip.
type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Provider returns the text of a single completion.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// New builds the provider named in cfg.
func New(cfg config.LLMConfig) (Provider, error) {
	slog.Debug("Creating LLM provider", "provider", cfg.Provider, "model", cfg.Model)
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		return NewOpenAI(cfg.APIKey, cfg.BaseURL), nil
	case config.ProviderAnthropic:
		return NewAnthropic(cfg.APIKey, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// wrapError classifies a provider failure. Deadline errors become
// ErrTimeout, everything else ErrLLM.
func wrapError(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s request: %w", mcpErrors.ErrTimeout, provider, err)
	}
	return fmt.Errorf("%w: %s: %w", mcpErrors.ErrLLM, provider, err)
}
