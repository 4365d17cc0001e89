// Package store persists the render journal: one record per template render
// and one per traced action invocation.
package store

import (
	"context"
	"time"
)

// Outcomes shared by renders and invocations.
const (
	OutcomeOK     = "ok"
	OutcomeError  = "error"
	OutcomeVetoed = "vetoed"
)

// Render is the journal record of one template render.
type Render struct {
	ID        string        `json:"id"`
	Template  string        `json:"template"`
	Outcome   string        `json:"outcome"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"started_at"`
}

// Invocation is the journal record of one traced action invocation.
// Sequence is assigned on append and increases monotonically per render.
type Invocation struct {
	ID        string         `json:"id"`
	RenderID  string         `json:"render_id,omitempty"`
	Sequence  int64          `json:"sequence"`
	Template  string         `json:"template,omitempty"`
	Line      int            `json:"line,omitempty"`
	Action    string         `json:"action"`
	Outcome   string         `json:"outcome"`
	Error     string         `json:"error,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	Creation  time.Duration  `json:"creation"`
	Execution time.Duration  `json:"execution"`
	CreatedAt time.Time      `json:"created_at"`
}

// InvocationFilter selects invocations. Zero fields match everything.
type InvocationFilter struct {
	RenderID string
	Action   string
	Outcome  string
	Since    time.Time
	Limit    int
}

// Journal defines the persistence contract for the render journal.
// All implementations must be safe for concurrent use.
type Journal interface {
	AppendRender(ctx context.Context, r *Render) error
	ListRenders(ctx context.Context, limit int) ([]*Render, error)

	AppendInvocation(ctx context.Context, inv *Invocation) error
	ListInvocations(ctx context.Context, filter InvocationFilter) ([]*Invocation, error)

	Close() error
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func (f InvocationFilter) match(inv *Invocation) bool {
	if f.RenderID != "" && inv.RenderID != f.RenderID {
		return false
	}
	if f.Action != "" && inv.Action != f.Action {
		return false
	}
	if f.Outcome != "" && inv.Outcome != f.Outcome {
		return false
	}
	if !f.Since.IsZero() && inv.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}
