package errors

import "errors"

type ErrorCode string

const (
	ErrCodeValidation       ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidArgument  ErrorCode = "INVALID_ARGUMENT"
	ErrCodeMalformedOutput  ErrorCode = "MALFORMED_MODEL_OUTPUT"
	ErrCodeToolNotFound     ErrorCode = "UNKNOWN_TOOL"
	ErrCodeToolExecution    ErrorCode = "TOOL_EXECUTION_ERROR"
	ErrCodeTimeout          ErrorCode = "TIMEOUT_ERROR"
	ErrCodeLLM              ErrorCode = "LLM_ERROR"
	ErrCodeServerCrashed    ErrorCode = "SERVER_CRASHED"
	ErrCodeServerNotRunning ErrorCode = "SERVER_NOT_RUNNING"
	ErrCodeTransport        ErrorCode = "TRANSPORT_ERROR"
	ErrCodeRateLimited      ErrorCode = "RATE_LIMITED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// MetaErrorCode is the _meta key under which a tool attaches an ErrorCode to
// an isError result.
const MetaErrorCode = "errorCode"

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrMalformedOutput  = errors.New("malformed model output")
	ErrUnknownTool      = errors.New("unknown tool")
	ErrToolExecution    = errors.New("tool execution failed")
	ErrTimeout          = errors.New("timed out")
	ErrLLM              = errors.New("language model request failed")
	ErrServerCrashed    = errors.New("server crashed")
	ErrServerNotRunning = errors.New("server not running")
	ErrTransport        = errors.New("transport failure")
)

// Code maps an error chain to the first matching error code.
func Code(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return ErrCodeTimeout
	case errors.Is(err, ErrMalformedOutput):
		return ErrCodeMalformedOutput
	case errors.Is(err, ErrUnknownTool):
		return ErrCodeToolNotFound
	case errors.Is(err, ErrInvalidArgument):
		return ErrCodeInvalidArgument
	case errors.Is(err, ErrToolExecution):
		return ErrCodeToolExecution
	case errors.Is(err, ErrLLM):
		return ErrCodeLLM
	case errors.Is(err, ErrServerCrashed):
		return ErrCodeServerCrashed
	case errors.Is(err, ErrServerNotRunning):
		return ErrCodeServerNotRunning
	case errors.Is(err, ErrTransport):
		return ErrCodeTransport
	default:
		return ErrCodeInternal
	}
}
