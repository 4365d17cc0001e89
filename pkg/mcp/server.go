package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/stencil/internal/engine"
	"github.com/rendis/stencil/internal/logging"
	"github.com/rendis/stencil/internal/store"
	"github.com/rendis/stencil/internal/validation"
)

// ServerDeps holds the dependencies for creating a Server.
type ServerDeps struct {
	Driver    *engine.Driver
	Validator *validation.TemplateValidator
	// Journal is optional; without it stencil.journal reports an error.
	Journal store.Journal
	Logger  *slog.Logger
	Version string
}

// Server wraps an MCP server with stencil tool handlers.
type Server struct {
	driver    *engine.Driver
	validator *validation.TemplateValidator
	journal   store.Journal
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a Server with all tools registered.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		driver:    deps.Driver,
		validator: deps.Validator,
		journal:   deps.Journal,
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"stencil",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Stencil renders templates through an action pipeline. Use stencil.render to render a YAML or JSON template with data, stencil.call to call a library function, stencil.library to list available actions, contributions and functions, and stencil.journal to inspect traced renders."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: renderTool(), Handler: s.handleRender},
		{Tool: callTool(), Handler: s.handleCall},
		{Tool: libraryTool(), Handler: s.handleLibrary},
		{Tool: journalTool(), Handler: s.handleJournal},
	}
}

// --- Tool definitions ---

func renderTool() mcp.Tool {
	return mcp.NewTool("stencil.render",
		mcp.WithDescription("Render a template document with data"),
		mcp.WithString("template", mcp.Required(), mcp.Description("Template document, YAML or JSON")),
		mcp.WithString("name", mcp.Description("Template name used in error locations when the document has none")),
		mcp.WithObject("data", mcp.Description("Variables available to the template")),
	)
}

func callTool() mcp.Tool {
	return mcp.NewTool("stencil.call",
		mcp.WithDescription("Call a library function"),
		mcp.WithString("function", mcp.Required(), mcp.Description("Function name, e.g. format_number")),
		mcp.WithObject("params", mcp.Description("Named parameters of the function")),
		mcp.WithObject("data", mcp.Description("Variables in scope during the call")),
	)
}

func libraryTool() mcp.Tool {
	return mcp.NewTool("stencil.library",
		mcp.WithDescription("List libraries with their actions, contributions and functions"),
		mcp.WithString("library", mcp.Description("Abbreviation or name of a single library")),
	)
}

func journalTool() mcp.Tool {
	return mcp.NewTool("stencil.journal",
		mcp.WithDescription("Query recorded renders or traced invocations"),
		mcp.WithString("resource", mcp.Required(),
			mcp.Enum("renders", "invocations"),
			mcp.Description("What to list"),
		),
		mcp.WithString("render_id", mcp.Description("Only invocations of this render")),
		mcp.WithString("action", mcp.Description("Only invocations of this action")),
		mcp.WithString("outcome", mcp.Enum("ok", "error", "vetoed"), mcp.Description("Only invocations with this outcome")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of records (default 50)")),
	)
}
