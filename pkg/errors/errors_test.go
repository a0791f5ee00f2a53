package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "nil", err: nil, want: ""},
		{name: "timeout", err: fmt.Errorf("call: %w", ErrTimeout), want: ErrCodeTimeout},
		{name: "malformed output", err: fmt.Errorf("parse: %w", ErrMalformedOutput), want: ErrCodeMalformedOutput},
		{name: "unknown tool", err: fmt.Errorf("%w: foo", ErrUnknownTool), want: ErrCodeToolNotFound},
		{name: "invalid argument", err: ErrInvalidArgument, want: ErrCodeInvalidArgument},
		{name: "tool execution", err: ErrToolExecution, want: ErrCodeToolExecution},
		{name: "llm", err: ErrLLM, want: ErrCodeLLM},
		{name: "crashed", err: ErrServerCrashed, want: ErrCodeServerCrashed},
		{name: "not running", err: ErrServerNotRunning, want: ErrCodeServerNotRunning},
		{name: "transport", err: ErrTransport, want: ErrCodeTransport},
		{name: "unclassified", err: errors.New("boom"), want: ErrCodeInternal},
		{name: "invalid argument wins over tool execution", err: fmt.Errorf("%w: %w", ErrToolExecution, ErrInvalidArgument), want: ErrCodeInvalidArgument},
		{name: "timeout wins over llm", err: fmt.Errorf("%w: %w", ErrLLM, ErrTimeout), want: ErrCodeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}
}
