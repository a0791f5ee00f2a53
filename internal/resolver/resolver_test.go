package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/khirotaka/bmi-mcp/internal/llm"
	"github.com/khirotaka/bmi-mcp/internal/mcp"
	"github.com/khirotaka/bmi-mcp/internal/server"
	mcpErrors "github.com/khirotaka/bmi-mcp/pkg/errors"
	mcpSDK "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider returns a canned completion and records the request.
type fakeProvider struct {
	response string
	err      error
	requests []llm.Request
	block    bool
}

func (p *fakeProvider) Complete(ctx context.Context, req llm.Request) (string, error) {
	p.requests = append(p.requests, req)
	if p.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return p.response, p.err
}

// fakeSession counts registry traffic.
type fakeSession struct {
	tools   []mcp.ToolInfo
	listErr error
	result  *mcp.ToolResult
	callErr error
	calls   []ToolCall
	closed  int
}

func (s *fakeSession) ListTools(ctx context.Context) ([]mcp.ToolInfo, error) {
	return s.tools, s.listErr
}

func (s *fakeSession) CallTool(ctx context.Context, toolName string, arguments map[string]any) (*mcp.ToolResult, error) {
	s.calls = append(s.calls, ToolCall{Tool: toolName, Arguments: arguments})
	return s.result, s.callErr
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

func dialFake(s *fakeSession) DialFunc {
	return func(ctx context.Context) (ToolSession, error) { return s, nil }
}

// dialInMemory serves the real registry over an in-memory transport for each
// session.
func dialInMemory(t *testing.T) DialFunc {
	t.Helper()
	return func(ctx context.Context) (ToolSession, error) {
		srv := server.NewMCPServer()
		srv.Setup()
		clientTransport, serverTransport := mcpSDK.NewInMemoryTransports()
		serverSession, err := srv.Connect(ctx, serverTransport)
		if err != nil {
			return nil, err
		}
		t.Cleanup(func() { _ = serverSession.Close() })

		session, err := mcp.Connect(ctx, clientTransport, mcp.SessionOptions{Name: "bmi-calculator", Timeout: 5 * time.Second})
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

var testOptions = Options{Model: "gpt-4o-mini", MaxTokens: 250, Temperature: 0.2, Timeout: 5 * time.Second}

func TestResolve_CalculateBMI(t *testing.T) {
	provider := &fakeProvider{response: `{"tool": "calculate_bmi", "arguments": {"weight": 80, "height": 1.78}}`}
	r := New(dialInMemory(t), provider, testOptions)

	res, err := r.Resolve(context.Background(), "Calculate BMI for height 1.78m and weight 80kg")
	require.NoError(t, err)

	assert.Equal(t, StageDispatched, res.Stage)
	assert.NotEmpty(t, res.ID)
	require.NotNil(t, res.Result)
	assert.Equal(t, "calculate_bmi", res.Result.Tool)
	assert.InDelta(t, 25.25, res.Result.Value, 0.01)

	require.Len(t, provider.requests, 1)
	req := provider.requests[0]
	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Equal(t, 250, req.MaxTokens)
	assert.Equal(t, 0.2, req.Temperature)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, llm.RoleUser, req.Messages[1].Role)
	assert.Equal(t, res.Prompt, req.Messages[1].Content)
	assert.Contains(t, res.Prompt, "calculate_bmi")
	assert.Contains(t, res.Prompt, "get_bmi_category")
}

func TestResolve_CategoryOfReferenceAdult(t *testing.T) {
	provider := &fakeProvider{response: `{"tool": "get_bmi_category", "arguments": {"bmi": "25.25"}}`}
	r := New(dialInMemory(t), provider, testOptions)

	res, err := r.Resolve(context.Background(), "what category is a bmi of 25.25")
	require.NoError(t, err)
	assert.Equal(t, "Overweight", res.Result.Value)
	// string argument was coerced before dispatch
	assert.Equal(t, 25.25, res.Call.Arguments["bmi"])
}

func TestResolve_ToolErrorSurfacedUnmodified(t *testing.T) {
	provider := &fakeProvider{response: `{"tool": "calculate_bmi", "arguments": {"weight": 80, "height": 0}}`}
	r := New(dialInMemory(t), provider, testOptions)

	res, err := r.Resolve(context.Background(), "bmi for 80kg and 0m")
	require.Error(t, err)
	assert.Equal(t, "invalid argument: height must be greater than 0", err.Error())
	assert.ErrorIs(t, err, mcpErrors.ErrInvalidArgument)
	assert.ErrorIs(t, err, mcpErrors.ErrToolExecution)
	assert.Equal(t, mcpErrors.ErrCodeInvalidArgument, mcpErrors.Code(err))

	var toolErr *mcp.ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "calculate_bmi", toolErr.Tool)
	assert.Equal(t, StageModelResponded, res.Stage)
}

func TestResolve_MalformedOutputNeverDispatches(t *testing.T) {
	session := &fakeSession{tools: testCatalog}
	r := New(dialFake(session), &fakeProvider{response: "not json"}, testOptions)

	res, err := r.Resolve(context.Background(), "Calculate BMI for 80kg and 1.78m")
	require.Error(t, err)
	assert.ErrorIs(t, err, mcpErrors.ErrMalformedOutput)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageModelResponded, stageErr.Stage)
	assert.Equal(t, "not json", res.RawResponse)
	assert.Nil(t, res.Call)
	assert.Empty(t, session.calls)
	assert.Equal(t, 1, session.closed)
}

func TestResolve_UnknownToolRejectedBeforeDispatch(t *testing.T) {
	session := &fakeSession{tools: testCatalog}
	provider := &fakeProvider{response: `{"tool": "calculate_bmr", "arguments": {"weight": 80}}`}
	r := New(dialFake(session), provider, testOptions)

	_, err := r.Resolve(context.Background(), "Calculate BMR")
	require.Error(t, err)
	assert.ErrorIs(t, err, mcpErrors.ErrUnknownTool)
	assert.Contains(t, err.Error(), `"calculate_bmr"`)
	assert.Empty(t, session.calls)
	assert.Equal(t, 1, session.closed)
}

func TestResolve_SchemaViolationRejectedBeforeDispatch(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{name: "missing height", response: `{"tool": "calculate_bmi", "arguments": {"weight": 80}}`},
		{name: "non-numeric weight", response: `{"tool": "calculate_bmi", "arguments": {"weight": "eighty", "height": 1.78}}`},
		{name: "forbidden key", response: `{"tool": "get_bmi_category", "arguments": {"bmi": 20, "__proto__": {}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &fakeSession{tools: testCatalog}
			r := New(dialFake(session), &fakeProvider{response: tt.response}, testOptions)

			_, err := r.Resolve(context.Background(), "query")
			require.Error(t, err)
			assert.ErrorIs(t, err, mcpErrors.ErrInvalidArgument)
			assert.Empty(t, session.calls)
		})
	}
}

func TestResolve_EmptyQuery(t *testing.T) {
	dialed := false
	r := New(func(ctx context.Context) (ToolSession, error) {
		dialed = true
		return &fakeSession{}, nil
	}, &fakeProvider{}, testOptions)

	res, err := r.Resolve(context.Background(), "  \n")
	require.Error(t, err)
	assert.ErrorIs(t, err, mcpErrors.ErrInvalidArgument)
	assert.Equal(t, StageIdle, res.Stage)
	assert.False(t, dialed)
}

func TestResolve_DialFailure(t *testing.T) {
	r := New(func(ctx context.Context) (ToolSession, error) {
		return nil, mcpErrors.ErrTransport
	}, &fakeProvider{}, testOptions)

	res, err := r.Resolve(context.Background(), "bmi")
	require.Error(t, err)
	assert.ErrorIs(t, err, mcpErrors.ErrTransport)
	assert.Equal(t, StageIdle, res.Stage)
}

func TestResolve_ListToolsFailureClosesSession(t *testing.T) {
	session := &fakeSession{listErr: mcpErrors.ErrServerCrashed}
	r := New(dialFake(session), &fakeProvider{}, testOptions)

	_, err := r.Resolve(context.Background(), "bmi")
	require.Error(t, err)
	assert.ErrorIs(t, err, mcpErrors.ErrServerCrashed)
	assert.Equal(t, 1, session.closed)
}

func TestResolve_LLMFailure(t *testing.T) {
	session := &fakeSession{tools: testCatalog}
	provider := &fakeProvider{err: mcpErrors.ErrLLM}
	r := New(dialFake(session), provider, testOptions)

	res, err := r.Resolve(context.Background(), "bmi")
	require.Error(t, err)
	assert.ErrorIs(t, err, mcpErrors.ErrLLM)
	assert.Equal(t, StagePromptBuilt, res.Stage)
	assert.Empty(t, session.calls)
	assert.Equal(t, 1, session.closed)
	assert.Len(t, provider.requests, 1, "no retries")
}

func TestResolve_LLMTimeout(t *testing.T) {
	session := &fakeSession{tools: testCatalog}
	opts := testOptions
	opts.Timeout = 20 * time.Millisecond
	r := New(dialFake(session), &fakeProvider{block: true}, opts)

	_, err := r.Resolve(context.Background(), "bmi")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, session.closed)
}

func TestResolve_DispatchFailure(t *testing.T) {
	session := &fakeSession{tools: testCatalog, callErr: mcpErrors.ErrTimeout}
	provider := &fakeProvider{response: `{"tool": "get_bmi_category", "arguments": {"bmi": 20}}`}
	r := New(dialFake(session), provider, testOptions)

	_, err := r.Resolve(context.Background(), "bmi category of 20")
	require.Error(t, err)
	assert.ErrorIs(t, err, mcpErrors.ErrTimeout)
	assert.Len(t, session.calls, 1)
	assert.Equal(t, 1, session.closed)
}

func TestCatalog(t *testing.T) {
	r := New(dialInMemory(t), &fakeProvider{}, testOptions)

	tools, err := r.Catalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, tools, 2)
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "idle", StageIdle.String())
	assert.Equal(t, "catalog_fetched", StageCatalogFetched.String())
	assert.Equal(t, "prompt_built", StagePromptBuilt.String())
	assert.Equal(t, "model_responded", StageModelResponded.String())
	assert.Equal(t, "dispatched", StageDispatched.String())
	assert.Equal(t, "stage(9)", Stage(9).String())
}
