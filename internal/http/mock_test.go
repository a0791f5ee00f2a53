package http

import (
	"context"
	"maps"

	"github.com/khirotaka/bmi-mcp/internal/mcp"
	"github.com/khirotaka/bmi-mcp/internal/resolver"
)

// mockResolver implements ResolverInterface for testing.
type mockResolver struct {
	resolveFunc func(ctx context.Context, query string) (*resolver.Resolution, error)
	catalogFunc func(ctx context.Context) ([]mcp.ToolInfo, error)
	queries     []string
}

// NewMockResolver creates a new mock Resolver.
func NewMockResolver() *mockResolver {
	return &mockResolver{}
}

// Resolve implements ResolverInterface.
func (m *mockResolver) Resolve(ctx context.Context, query string) (*resolver.Resolution, error) {
	m.queries = append(m.queries, query)
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, query)
	}
	return &resolver.Resolution{Query: query}, nil
}

// Catalog implements ResolverInterface.
func (m *mockResolver) Catalog(ctx context.Context) ([]mcp.ToolInfo, error) {
	if m.catalogFunc != nil {
		return m.catalogFunc(ctx)
	}
	return []mcp.ToolInfo{}, nil
}

// OnResolve sets the behavior for Resolve.
func (m *mockResolver) OnResolve(fn func(ctx context.Context, query string) (*resolver.Resolution, error)) *mockResolver {
	m.resolveFunc = fn
	return m
}

// OnCatalog sets the behavior for Catalog.
func (m *mockResolver) OnCatalog(fn func(ctx context.Context) ([]mcp.ToolInfo, error)) *mockResolver {
	m.catalogFunc = fn
	return m
}

// mockProcessManager implements ProcessManagerInterface for testing.
type mockProcessManager struct {
	servers map[string]mcp.ServerHealth
}

// NewMockProcessManager creates a new mock ProcessManager.
func NewMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		servers: make(map[string]mcp.ServerHealth),
	}
}

// Snapshot implements ProcessManagerInterface.
func (m *mockProcessManager) Snapshot() map[string]mcp.ServerHealth {
	result := make(map[string]mcp.ServerHealth)
	maps.Copy(result, m.servers)
	return result
}

// WithHealth sets a server's health in the mock.
func (m *mockProcessManager) WithHealth(serverName string, health mcp.ServerHealth) *mockProcessManager {
	m.servers[serverName] = health
	return m
}
