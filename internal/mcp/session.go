package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mcpErrors "github.com/khirotaka/bmi-mcp/pkg/errors"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	clientName    = "bmi-client"
	clientVersion = "1.0.0"
)

// ToolInfo describes one tool advertised by the registry
type ToolInfo struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	InputSchema  any    `json:"inputSchema"`
	OutputSchema any    `json:"outputSchema,omitempty"`
}

// ToolResult is the single scalar a tool produced
type ToolResult struct {
	Tool  string `json:"tool"`
	Value any    `json:"value"`
	Text  string `json:"text"`
}

// ToolError carries the message of a tool result flagged isError. The
// message is reported exactly as the tool wrote it. Code is the error code the
// tool attached, if any.
type ToolError struct {
	Tool    string
	Message string
	Code    mcpErrors.ErrorCode
}

func (e *ToolError) Error() string { return e.Message }

// Unwrap matches ErrToolExecution, and ErrInvalidArgument when the tool
// rejected its input.
func (e *ToolError) Unwrap() []error {
	if e.Code == mcpErrors.ErrCodeInvalidArgument {
		return []error{mcpErrors.ErrInvalidArgument, mcpErrors.ErrToolExecution}
	}
	return []error{mcpErrors.ErrToolExecution}
}

// SessionOptions configures a Session
type SessionOptions struct {
	// Name identifies the registry in status tracking and logs.
	Name string
	// Timeout bounds each request after the handshake. Zero means no bound
	// beyond ctx.
	Timeout time.Duration
	// ProcessManager records crashes. Optional.
	ProcessManager *ProcessManager
}

// Session is one connected MCP client session. Close must be called on every
// path once the session is no longer needed.
type Session struct {
	name    string
	session *mcp.ClientSession
	pm      *ProcessManager
	timeout time.Duration

	// kill force-terminates the backing process, if there is one.
	kill func()

	closing   atomic.Bool
	crashed   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Connect performs the MCP handshake over transport and confirms the peer
// answers a ping before returning. ctx bounds both; an expired deadline is
// reported as ErrTimeout.
func Connect(ctx context.Context, transport mcp.Transport, opts SessionOptions) (*Session, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, connectError(ctx, "failed to connect", err)
	}

	if err := session.Ping(ctx, &mcp.PingParams{}); err != nil {
		if cerr := session.Close(); cerr != nil {
			slog.Warn("Failed to close session during cleanup", "server", opts.Name, "error", cerr)
		}
		return nil, connectError(ctx, "server did not answer ping", err)
	}

	s := &Session{
		name:    opts.Name,
		session: session,
		pm:      opts.ProcessManager,
		timeout: opts.Timeout,
		done:    make(chan struct{}),
	}

	// Monitor connection
	go func() {
		defer close(s.done)
		// Wait blocks until the session is closed
		err := session.Wait()
		if s.closing.Load() {
			return
		}
		s.crashed.Store(true)
		crashes := 0
		if s.pm != nil {
			crashes = s.pm.RecordCrash(s.name)
		}
		slog.Error("MCP server disconnected unexpectedly", "server", s.name, "crashes", crashes, "error", err)
	}()

	return s, nil
}

func connectError(ctx context.Context, msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", mcpErrors.ErrTimeout, msg, err)
	}
	return fmt.Errorf("%w: %s: %w", mcpErrors.ErrTransport, msg, err)
}

// usable reports why the session can no longer serve requests, if it can't.
func (s *Session) usable() error {
	switch {
	case s.crashed.Load():
		return fmt.Errorf("%w: %s", mcpErrors.ErrServerCrashed, s.name)
	case s.closing.Load():
		return fmt.Errorf("%w: %s: session closed", mcpErrors.ErrServerNotRunning, s.name)
	}
	return nil
}

func (s *Session) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return ctx, func() {}
}

// ListTools returns every tool the registry advertises, following pagination.
func (s *Session) ListTools(ctx context.Context) ([]ToolInfo, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tools := make([]ToolInfo, 0)
	params := &mcp.ListToolsParams{}
	for {
		result, err := s.session.ListTools(ctx, params)
		if err != nil {
			return nil, s.classify(ctx, "", err)
		}
		for _, tool := range result.Tools {
			tools = append(tools, ToolInfo{
				Name:         tool.Name,
				Description:  tool.Description,
				InputSchema:  tool.InputSchema,
				OutputSchema: tool.OutputSchema,
			})
		}
		if result.NextCursor == "" {
			return tools, nil
		}
		params = &mcp.ListToolsParams{Cursor: result.NextCursor}
	}
}

// CallTool invokes a tool and reduces its response to a single scalar.
func (s *Session) CallTool(ctx context.Context, toolName string, arguments map[string]any) (*ToolResult, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolName,
		Arguments: arguments,
	})
	if err != nil {
		return nil, s.classify(ctx, toolName, err)
	}

	if result.IsError {
		return nil, &ToolError{Tool: toolName, Message: errorMessage(result), Code: errorCode(result)}
	}

	value, text := extractValue(result)
	return &ToolResult{Tool: toolName, Value: value, Text: text}, nil
}

func (s *Session) classify(ctx context.Context, toolName string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", mcpErrors.ErrTimeout, err)
	case s.crashed.Load():
		return fmt.Errorf("%w: %s: %w", mcpErrors.ErrServerCrashed, s.name, err)
	case toolName != "" && isUnknownToolError(err):
		return fmt.Errorf("%w: %s", mcpErrors.ErrUnknownTool, toolName)
	default:
		return fmt.Errorf("%w: %w", mcpErrors.ErrTransport, err)
	}
}

// Close ends the session and tears down the backing process. It is safe to
// call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		if err := s.session.Close(); err != nil {
			slog.Debug("Session closed with error", "server", s.name, "error", err)
			s.closeErr = err
		}
		if s.kill != nil {
			s.kill()
		}
		<-s.done
	})
	return s.closeErr
}

// isUnknownToolError checks if the error is from an unknown tool call
// The MCP SDK returns an error with the message pattern:
// "calling "tools/call": unknown tool "toolName""
func isUnknownToolError(err error) bool {
	return strings.Contains(err.Error(), "unknown tool")
}

// errorMessage extracts the text of a tool error result.
func errorMessage(result *mcp.CallToolResult) string {
	for _, content := range result.Content {
		if text, ok := content.(*mcp.TextContent); ok && text.Text != "" {
			return text.Text
		}
	}
	if len(result.Content) == 0 {
		return "tool execution failed: no error details provided"
	}
	return fmt.Sprintf("tool execution failed: unexpected content type: %T", result.Content[0])
}

// errorCode reads the error code a tool attached to an isError result.
func errorCode(result *mcp.CallToolResult) mcpErrors.ErrorCode {
	code, _ := result.Meta[mcpErrors.MetaErrorCode].(string)
	return mcpErrors.ErrorCode(code)
}

// extractValue prefers structured content and falls back to the first text
// block. Single-field objects are unwrapped to their only value.
func extractValue(result *mcp.CallToolResult) (any, string) {
	var text string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			text = tc.Text
			break
		}
	}

	if result.StructuredContent != nil {
		return unwrapScalar(result.StructuredContent), text
	}

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err == nil {
		return unwrapScalar(decoded), text
	}
	return text, text
}

func unwrapScalar(v any) any {
	if raw, ok := v.(json.RawMessage); ok {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return string(raw)
		}
		v = decoded
	}
	if m, ok := v.(map[string]any); ok && len(m) == 1 {
		for _, only := range m {
			return only
		}
	}
	return v
}
