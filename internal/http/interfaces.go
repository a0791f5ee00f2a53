package http

import (
	"context"

	"github.com/khirotaka/bmi-mcp/internal/mcp"
	"github.com/khirotaka/bmi-mcp/internal/resolver"
)

// ResolverInterface defines the query pipeline the handlers drive.
// This interface is used for dependency injection in tests.
type ResolverInterface interface {
	Resolve(ctx context.Context, query string) (*resolver.Resolution, error)
	Catalog(ctx context.Context) ([]mcp.ToolInfo, error)
}

// ProcessManagerInterface defines the interface for process health reporting.
// This interface is used for dependency injection in tests.
type ProcessManagerInterface interface {
	Snapshot() map[string]mcp.ServerHealth
}
