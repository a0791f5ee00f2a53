// Package server exposes the BMI tools over the Model Context Protocol.
package server

import (
	"context"

	mcpErrors "github.com/khirotaka/bmi-mcp/pkg/errors"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	Name    = "bmi-calculator"
	Version = "1.0.0"

	ToolCalculateBMI   = "calculate_bmi"
	ToolGetBMICategory = "get_bmi_category"
)

type MCPServer struct {
	server *mcp.Server
}

func NewMCPServer() *MCPServer {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{Name: Name, Version: Version},
		nil,
	)
	return &MCPServer{
		server: mcpServer,
	}
}

// Setup registers every tool. It must run before Run or Connect.
func (s *MCPServer) Setup() {
	mcp.AddTool(
		s.server,
		&mcp.Tool{
			Name:        ToolCalculateBMI,
			Title:       "BMI Calculator",
			Description: "Calculate Body Mass Index (BMI) from weight in kilograms and height in meters.",
		},
		s.calculateBMIHandler,
	)
	mcp.AddTool(
		s.server,
		&mcp.Tool{
			Name:        ToolGetBMICategory,
			Title:       "BMI Category",
			Description: "Determine the BMI category (Underweight, Normal weight, Overweight, Obesity) for a BMI value.",
		},
		s.bmiCategoryHandler,
	)
}

// Run serves on stdin/stdout until the client disconnects or ctx is done.
func (s *MCPServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session over an arbitrary transport.
func (s *MCPServer) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, transport, nil)
}

// toolError reports err as an isError result. Its code travels in _meta so
// clients can tell rejected input from other failures.
func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Meta:    mcp.Meta{mcpErrors.MetaErrorCode: string(mcpErrors.Code(err))},
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: err.Error(),
			},
		},
	}
}
