package server

import (
	"context"
	"log/slog"

	"github.com/khirotaka/bmi-mcp/internal/bmi"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type CalculateBMIInput struct {
	Weight float64 `json:"weight" jsonschema:"weight in kilograms"`
	Height float64 `json:"height" jsonschema:"height in meters"`
}

type CalculateBMIOutput struct {
	BMI float64 `json:"bmi"`
}

func (s *MCPServer) calculateBMIHandler(ctx context.Context, _ *mcp.CallToolRequest, input CalculateBMIInput) (*mcp.CallToolResult, CalculateBMIOutput, error) {
	value, err := bmi.CalculateBMI(input.Weight, input.Height)
	if err != nil {
		slog.Debug("Rejected calculate_bmi input", "weight", input.Weight, "height", input.Height, "error", err)
		return toolError(err), CalculateBMIOutput{}, nil
	}

	return nil, CalculateBMIOutput{BMI: value}, nil
}
