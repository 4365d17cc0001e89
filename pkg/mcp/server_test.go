package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	s := newTestServer(t, nil)
	require.NotNil(t, s)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.logger)
	assert.Same(t, s.mcpServer, s.MCPServer())
}

func TestToolRegistration(t *testing.T) {
	s := newTestServer(t, nil)

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 4)

	for _, name := range []string{"stencil.render", "stencil.call", "stencil.library", "stencil.journal"} {
		assert.NotNil(t, s.mcpServer.GetTool(name), "tool %s should be registered", name)
	}
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name        string
		toolName    string
		description string
	}{
		{"render", "stencil.render", "Render a template document with data"},
		{"call", "stencil.call", "Call a library function"},
		{"library", "stencil.library", "List libraries with their actions, contributions and functions"},
		{"journal", "stencil.journal", "Query recorded renders or traced invocations"},
	}

	s := newTestServer(t, nil)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tool := s.mcpServer.GetTool(tc.toolName)
			require.NotNil(t, tool)
			assert.Equal(t, tc.description, tool.Tool.Description)
		})
	}
}
