package resolver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	mcpErrors "github.com/khirotaka/bmi-mcp/pkg/errors"
)

// ToolCall is a tool invocation chosen by the model.
type ToolCall struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// ParseError reports model output that is not a tool call. Raw holds the
// output verbatim, which may be a plain-text answer.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", mcpErrors.ErrMalformedOutput, e.Reason)
}

func (e *ParseError) Unwrap() error { return mcpErrors.ErrMalformedOutput }

// ParseToolCall decodes model output as exactly one JSON object with a
// non-empty string "tool" and an object "arguments". A single surrounding
// Markdown code fence is stripped; nothing else is repaired.
func ParseToolCall(raw string) (ToolCall, error) {
	body := stripCodeFence(strings.TrimSpace(raw))
	if body == "" {
		return ToolCall{}, &ParseError{Raw: raw, Reason: "empty response"}
	}

	var envelope struct {
		Tool      *string         `json:"tool"`
		Arguments json.RawMessage `json:"arguments"`
	}
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&envelope); err != nil {
		return ToolCall{}, &ParseError{Raw: raw, Reason: fmt.Sprintf("not a JSON object: %v", err)}
	}
	if dec.More() {
		return ToolCall{}, &ParseError{Raw: raw, Reason: "trailing data after JSON object"}
	}

	if envelope.Tool == nil {
		return ToolCall{}, &ParseError{Raw: raw, Reason: `missing "tool"`}
	}
	if strings.TrimSpace(*envelope.Tool) == "" {
		return ToolCall{}, &ParseError{Raw: raw, Reason: `"tool" is empty`}
	}

	args := bytes.TrimSpace(envelope.Arguments)
	if len(args) == 0 {
		return ToolCall{}, &ParseError{Raw: raw, Reason: `missing "arguments"`}
	}
	if args[0] != '{' {
		return ToolCall{}, &ParseError{Raw: raw, Reason: `"arguments" must be a JSON object`}
	}
	var arguments map[string]any
	if err := json.Unmarshal(args, &arguments); err != nil {
		return ToolCall{}, &ParseError{Raw: raw, Reason: fmt.Sprintf(`invalid "arguments": %v`, err)}
	}

	return ToolCall{Tool: *envelope.Tool, Arguments: arguments}, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	// drop an info string such as "json"
	if i := strings.IndexByte(inner, '\n'); i >= 0 {
		inner = inner[i+1:]
	} else {
		return s
	}
	return strings.TrimSpace(inner)
}
