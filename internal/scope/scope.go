// Package scope implements the data-scope context queried by parameters
// and actions while a template renders.
//
// A Scope is a chain of named frames. Variable and implicit-object lookups
// walk from the innermost frame outward; writes land on the frame they are
// made on. A Scope is not safe for concurrent use: concurrent renders each
// need their own chain, although several chains may share a root that nobody
// writes to.
package scope

import (
	"strconv"
	"strings"
)

// Names of well-known frames.
const (
	GlobalName = "global"
	LocalName  = "local"
)

// ImplicitKey is the environment key under which implicit objects are
// exposed to expressions.
const ImplicitKey = "implicit"

// Scope is one frame of the data-scope chain.
type Scope struct {
	parent   *Scope
	name     string
	vars     map[string]any
	implicit map[string]any
}

// New creates a root frame named "global". vars is deep-copied so later
// writes never leak back into the caller's data.
func New(vars map[string]any) *Scope {
	s := &Scope{
		name:     GlobalName,
		vars:     deepCopyMap(vars),
		implicit: make(map[string]any),
	}
	if s.vars == nil {
		s.vars = make(map[string]any)
	}
	return s
}

// Child returns a new frame whose parent is s.
func (s *Scope) Child(name string) *Scope {
	if name == "" {
		name = LocalName
	}
	return &Scope{
		parent:   s,
		name:     name,
		vars:     make(map[string]any),
		implicit: make(map[string]any),
	}
}

// Name returns the frame name.
func (s *Scope) Name() string { return s.name }

// Parent returns the enclosing frame, or nil for a root.
func (s *Scope) Parent() *Scope { return s.parent }

// Root returns the outermost frame.
func (s *Scope) Root() *Scope {
	r := s
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Named returns the innermost frame called name.
func (s *Scope) Named(name string) (*Scope, bool) {
	for f := s; f != nil; f = f.parent {
		if f.name == name {
			return f, true
		}
	}
	return nil, false
}

// FindVariable resolves name against the chain. Dotted names such as
// "user.address.city" or "items.0" descend into maps and slices once the
// first segment has been found.
func (s *Scope) FindVariable(name string) (any, bool) {
	if name == "" {
		return nil, false
	}
	for f := s; f != nil; f = f.parent {
		if v, ok := f.vars[name]; ok {
			return v, true
		}
	}

	head, rest, dotted := strings.Cut(name, ".")
	if !dotted {
		return nil, false
	}
	for f := s; f != nil; f = f.parent {
		if v, ok := f.vars[head]; ok {
			return lookupPath(v, rest)
		}
	}
	return nil, false
}

// Set writes a variable on this frame.
func (s *Scope) Set(name string, v any) {
	s.vars[name] = v
}

// Delete removes a variable from this frame only.
func (s *Scope) Delete(name string) {
	delete(s.vars, name)
}

// Swap sets a variable on this frame and returns a func that restores the
// frame to its previous state.
func (s *Scope) Swap(name string, v any) (restore func()) {
	prev, had := s.vars[name]
	s.vars[name] = v
	return func() {
		if had {
			s.vars[name] = prev
			return
		}
		delete(s.vars, name)
	}
}

// ImplicitObject resolves an implicit object (locale, clock, render info...)
// against the chain.
func (s *Scope) ImplicitObject(name string) (any, bool) {
	for f := s; f != nil; f = f.parent {
		if v, ok := f.implicit[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// SetImplicitObject installs an implicit object on this frame.
func (s *Scope) SetImplicitObject(name string, v any) {
	s.implicit[name] = v
}

// SwapImplicitObject installs an implicit object on this frame and returns a
// func that restores the frame to its previous state.
func (s *Scope) SwapImplicitObject(name string, v any) (restore func()) {
	prev, had := s.implicit[name]
	s.implicit[name] = v
	return func() {
		if had {
			s.implicit[name] = prev
			return
		}
		delete(s.implicit, name)
	}
}

// Env flattens the chain into a single map suitable as an expression
// environment. Inner frames shadow outer ones. Implicit objects are exposed
// under ImplicitKey unless a variable of that name shadows them.
func (s *Scope) Env() map[string]any {
	var frames []*Scope
	for f := s; f != nil; f = f.parent {
		frames = append(frames, f)
	}

	env := make(map[string]any)
	implicit := make(map[string]any)
	for i := len(frames) - 1; i >= 0; i-- {
		for k, v := range frames[i].vars {
			env[k] = v
		}
		for k, v := range frames[i].implicit {
			implicit[k] = v
		}
	}
	if _, shadowed := env[ImplicitKey]; !shadowed {
		env[ImplicitKey] = implicit
	}
	return env
}

// lookupPath walks a dotted path through nested maps and slices.
func lookupPath(v any, path string) (any, bool) {
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}
