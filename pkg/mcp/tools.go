package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/internal/logging"
	"github.com/rendis/stencil/internal/scope"
	"github.com/rendis/stencil/internal/store"
	"github.com/rendis/stencil/pkg/schema"
)

const defaultJournalLimit = 50

// RenderResult is the payload of stencil.render.
type RenderResult struct {
	RenderID string                   `json:"render_id"`
	Template string                   `json:"template"`
	Output   string                   `json:"output"`
	Warnings []schema.ValidationIssue `json:"warnings,omitempty"`
}

// handleRender validates, decodes and renders a template document.
func (s *Server) handleRender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := req.RequireString("template")
	if err != nil {
		return mcp.NewToolResultError("template is required"), nil
	}
	name := req.GetString("name", "inline")
	data := mcp.ParseStringMap(req, "data", nil)

	tpl, result, loadErr := s.validator.Load(name, []byte(src))
	if loadErr != nil {
		return validationResult(result, loadErr), nil
	}

	renderID := uuid.NewString()
	ctx = logging.WithRenderID(ctx, renderID)

	var buf bytes.Buffer
	if renderErr := s.driver.Render(ctx, tpl, scope.New(data), action.NewTextWriter(&buf)); renderErr != nil {
		s.logger.WarnContext(ctx, "mcp render failed", "error", renderErr)
		return errorResult("render failed", renderErr), nil
	}

	return marshalResult(RenderResult{
		RenderID: renderID,
		Template: tpl.Name,
		Output:   buf.String(),
		Warnings: result.Warnings,
	})
}

// handleCall calls a library function with named parameters.
func (s *Server) handleCall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("function")
	if err != nil {
		return mcp.NewToolResultError("function is required"), nil
	}
	params := mcp.ParseStringMap(req, "params", nil)
	data := mcp.ParseStringMap(req, "data", nil)

	out, callErr := s.driver.CallNamed(ctx, name, params, scope.New(data))
	if callErr != nil {
		return errorResult(fmt.Sprintf("call %s failed", name), callErr), nil
	}

	return marshalResult(map[string]any{
		"function": name,
		"result":   out,
	})
}

// handleLibrary lists registered libraries.
func (s *Server) handleLibrary(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reg := s.driver.Registry()
	name := req.GetString("library", "")
	if name == "" {
		return marshalResult(map[string]any{
			"default":   reg.Default(),
			"libraries": reg.List(),
		})
	}

	lib, err := reg.Get(name)
	if err != nil {
		return errorResult("library lookup failed", err), nil
	}
	return marshalResult(lib.Info())
}

// handleJournal lists renders or invocations from the journal.
func (s *Server) handleJournal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.journal == nil {
		return mcp.NewToolResultError("journal is not configured"), nil
	}
	resource, err := req.RequireString("resource")
	if err != nil {
		return mcp.NewToolResultError("resource is required"), nil
	}
	limit := req.GetInt("limit", defaultJournalLimit)

	switch resource {
	case "renders":
		renders, listErr := s.journal.ListRenders(ctx, limit)
		if listErr != nil {
			return errorResult("list renders failed", listErr), nil
		}
		return marshalResult(map[string]any{"renders": nonNil(renders)})
	case "invocations":
		invs, listErr := s.journal.ListInvocations(ctx, store.InvocationFilter{
			RenderID: req.GetString("render_id", ""),
			Action:   req.GetString("action", ""),
			Outcome:  req.GetString("outcome", ""),
			Limit:    limit,
		})
		if listErr != nil {
			return errorResult("list invocations failed", listErr), nil
		}
		return marshalResult(map[string]any{"invocations": nonNil(invs)})
	default:
		return mcp.NewToolResultError("resource must be renders or invocations"), nil
	}
}

// --- helpers ---

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}

// errorResult reports err as a tool error. Structured errors keep their
// code and location so clients can point at the failing node.
func errorResult(prefix string, err error) *mcp.CallToolResult {
	payload := map[string]any{"error": fmt.Sprintf("%s: %v", prefix, err)}
	if se, ok := asStencilError(err); ok {
		payload["code"] = se.Code
		if se.Location != nil {
			payload["location"] = se.Location
		}
		if len(se.Details) > 0 {
			payload["details"] = se.Details
		}
	}
	data, mErr := json.Marshal(payload)
	if mErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err))
	}
	return mcp.NewToolResultError(string(data))
}

func asStencilError(err error) (*schema.StencilError, bool) {
	var se *schema.StencilError
	ok := errors.As(err, &se)
	return se, ok
}

// validationResult reports every issue found while loading a template.
func validationResult(result *schema.ValidationResult, err error) *mcp.CallToolResult {
	payload := map[string]any{
		"error":    fmt.Sprintf("invalid template: %v", err),
		"code":     schema.ErrCodeValidation,
		"errors":   nonNil(result.Errors),
		"warnings": nonNil(result.Warnings),
	}
	data, mErr := json.Marshal(payload)
	if mErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid template: %v", err))
	}
	return mcp.NewToolResultError(string(data))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
