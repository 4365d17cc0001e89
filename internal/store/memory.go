package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rendis/stencil/pkg/schema"
)

// MemoryJournal keeps the journal in process memory.
type MemoryJournal struct {
	mu          sync.RWMutex
	renders     []*Render
	invocations []*Invocation
	sequences   map[string]int64
}

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{sequences: make(map[string]int64)}
}

func (m *MemoryJournal) AppendRender(_ context.Context, r *Render) error {
	if r == nil {
		return schema.NewError(schema.ErrCodeValidation, "render is nil")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.StartedAt = timeOrNow(r.StartedAt)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.renders {
		if existing.ID == r.ID {
			return schema.NewErrorf(schema.ErrCodeConflict, "render %q already journaled", r.ID)
		}
	}
	cp := *r
	m.renders = append(m.renders, &cp)
	return nil
}

// ListRenders returns the most recent renders first.
func (m *MemoryJournal) ListRenders(_ context.Context, limit int) ([]*Render, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Render
	for i := len(m.renders) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		cp := *m.renders[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryJournal) AppendInvocation(_ context.Context, inv *Invocation) error {
	if inv == nil {
		return schema.NewError(schema.ErrCodeValidation, "invocation is nil")
	}
	if inv.Action == "" {
		return schema.NewError(schema.ErrCodeValidation, "invocation action is empty")
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.CreatedAt = timeOrNow(inv.CreatedAt)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[inv.RenderID]++
	inv.Sequence = m.sequences[inv.RenderID]
	cp := *inv
	m.invocations = append(m.invocations, &cp)
	return nil
}

// ListInvocations returns matching invocations in append order.
func (m *MemoryJournal) ListInvocations(_ context.Context, filter InvocationFilter) ([]*Invocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Invocation
	for _, inv := range m.invocations {
		if !filter.match(inv) {
			continue
		}
		cp := *inv
		out = append(out, &cp)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryJournal) Close() error { return nil }

var _ Journal = (*MemoryJournal)(nil)
