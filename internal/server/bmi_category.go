package server

import (
	"context"
	"fmt"
	"math"

	"github.com/khirotaka/bmi-mcp/internal/bmi"
	mcpErrors "github.com/khirotaka/bmi-mcp/pkg/errors"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type BMICategoryInput struct {
	BMI float64 `json:"bmi" jsonschema:"body mass index value"`
}

type BMICategoryOutput struct {
	Category string `json:"category"`
}

func (s *MCPServer) bmiCategoryHandler(ctx context.Context, _ *mcp.CallToolRequest, input BMICategoryInput) (*mcp.CallToolResult, BMICategoryOutput, error) {
	if math.IsNaN(input.BMI) {
		return toolError(fmt.Errorf("%w: bmi must be a number", mcpErrors.ErrInvalidArgument)), BMICategoryOutput{}, nil
	}
	return nil, BMICategoryOutput{Category: bmi.Category(input.BMI)}, nil
}
