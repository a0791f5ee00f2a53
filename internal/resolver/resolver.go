// Package resolver turns a natural-language query into exactly one tool call:
// it fetches the registry's catalog, asks a language model to pick a tool,
// checks the answer and dispatches it.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/khirotaka/bmi-mcp/internal/llm"
	"github.com/khirotaka/bmi-mcp/internal/mcp"
	"github.com/khirotaka/bmi-mcp/internal/validator"
	mcpErrors "github.com/khirotaka/bmi-mcp/pkg/errors"
)

// Stage is the last step of a resolution that completed.
type Stage int

const (
	StageIdle Stage = iota
	StageCatalogFetched
	StagePromptBuilt
	StageModelResponded
	StageDispatched
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageCatalogFetched:
		return "catalog_fetched"
	case StagePromptBuilt:
		return "prompt_built"
	case StageModelResponded:
		return "model_responded"
	case StageDispatched:
		return "dispatched"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// StageError wraps the error that ended a resolution. Its message is the
// wrapped error's message unchanged.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// ToolSession is a connection to the registry, scoped to one resolution.
type ToolSession interface {
	ListTools(ctx context.Context) ([]mcp.ToolInfo, error)
	CallTool(ctx context.Context, toolName string, arguments map[string]any) (*mcp.ToolResult, error)
	Close() error
}

// DialFunc opens a new registry session.
type DialFunc func(ctx context.Context) (ToolSession, error)

// DialLauncher spawns a fresh registry process per session.
func DialLauncher(l *mcp.Launcher) DialFunc {
	return func(ctx context.Context) (ToolSession, error) {
		session, err := l.Dial(ctx)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

// Options tunes the model request.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	// Timeout bounds the model round trip. Zero means no bound beyond ctx.
	Timeout time.Duration
}

// Resolution records what happened to one query.
type Resolution struct {
	ID          string          `json:"id"`
	Query       string          `json:"query"`
	Prompt      string          `json:"-"`
	RawResponse string          `json:"rawResponse,omitempty"`
	Call        *ToolCall       `json:"call,omitempty"`
	Result      *mcp.ToolResult `json:"result,omitempty"`
	Stage       Stage           `json:"-"`
}

type Resolver struct {
	dial     DialFunc
	provider llm.Provider
	opts     Options
}

func New(dial DialFunc, provider llm.Provider, opts Options) *Resolver {
	return &Resolver{
		dial:     dial,
		provider: provider,
		opts:     opts,
	}
}

// Resolve runs one query end to end. The registry session is closed before
// Resolve returns, on every path. The returned Resolution is non-nil even on
// error and reflects how far the query got.
func (r *Resolver) Resolve(ctx context.Context, query string) (*Resolution, error) {
	res := &Resolution{
		ID:    uuid.NewString(),
		Query: query,
		Stage: StageIdle,
	}
	logger := slog.With("request_id", res.ID)
	fail := func(err error) (*Resolution, error) {
		logger.Error("Query failed", "stage", res.Stage.String(), "error", err)
		return res, &StageError{Stage: res.Stage, Err: err}
	}

	if strings.TrimSpace(query) == "" {
		return fail(fmt.Errorf("%w: query is empty", mcpErrors.ErrInvalidArgument))
	}
	logger.Info("Processing query", "query", query)

	session, err := r.dial(ctx)
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("Error closing registry session", "error", err)
		}
	}()

	tools, err := session.ListTools(ctx)
	if err != nil {
		return fail(fmt.Errorf("failed to list tools: %w", err))
	}
	res.Stage = StageCatalogFetched
	logger.Debug("Available tools", "count", len(tools))

	res.Prompt = BuildPrompt(query, tools)
	res.Stage = StagePromptBuilt
	logger.Debug("Prompt for LLM", "prompt", res.Prompt)

	raw, err := r.complete(ctx, res.Prompt)
	if err != nil {
		return fail(err)
	}
	res.RawResponse = raw
	res.Stage = StageModelResponded
	logger.Debug("LLM response", "response", raw)

	call, err := ParseToolCall(raw)
	if err != nil {
		return fail(err)
	}
	res.Call = &call

	tool, ok := findTool(tools, call.Tool)
	if !ok {
		return fail(fmt.Errorf("%w: %q is not in the catalog", mcpErrors.ErrUnknownTool, call.Tool))
	}
	if err := validator.ValidateToolCall(call.Tool, call.Arguments); err != nil {
		return fail(err)
	}
	arguments, err := validator.ValidateAgainstSchema(tool.InputSchema, call.Arguments)
	if err != nil {
		return fail(fmt.Errorf("%s: %w", call.Tool, err))
	}
	res.Call.Arguments = arguments

	logger.Info("Dispatching tool call", "tool", call.Tool, "arguments", arguments)
	result, err := session.CallTool(ctx, call.Tool, arguments)
	if err != nil {
		return fail(err)
	}
	res.Result = result
	res.Stage = StageDispatched
	logger.Info("Query resolved", "tool", result.Tool, "result", result.Value)

	return res, nil
}

// Catalog opens a session only to list the registry's tools.
func (r *Resolver) Catalog(ctx context.Context) ([]mcp.ToolInfo, error) {
	session, err := r.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("Error closing registry session", "error", err)
		}
	}()
	return session.ListTools(ctx)
}

func (r *Resolver) complete(ctx context.Context, prompt string) (string, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	return r.provider.Complete(ctx, llm.Request{
		Model: r.opts.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:   r.opts.MaxTokens,
		Temperature: r.opts.Temperature,
	})
}

func findTool(tools []mcp.ToolInfo, name string) (mcp.ToolInfo, bool) {
	for _, tool := range tools {
		if tool.Name == name {
			return tool, true
		}
	}
	return mcp.ToolInfo{}, false
}
