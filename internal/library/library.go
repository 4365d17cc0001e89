// Package library holds the explicit registry of action libraries. A library
// groups action factories, contribution factories and function declarations
// under a short abbreviation used by template nodes (e.g. "c:out").
package library

import (
	"sort"

	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/pkg/schema"
)

// FunctionDecl exposes an action as a function callable from expressions.
// Positional call arguments are bound, in order, to the parameters named in
// Args.
type FunctionDecl struct {
	Name        string   `json:"name"`
	Action      string   `json:"action"`
	Args        []string `json:"args,omitempty"`
	Description string   `json:"description,omitempty"`
}

// DynamicResolver resolves names a library does not declare statically.
type DynamicResolver interface {
	ResolveAction(name string) (action.Factory, bool)
	ResolveContribution(name string) (action.ContributionFactory, bool)
}

// Info describes a registered library.
type Info struct {
	Abbreviation  string         `json:"abbreviation"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Actions       []string       `json:"actions"`
	Contributions []string       `json:"contributions"`
	Functions     []FunctionDecl `json:"functions"`
	Dynamic       bool           `json:"dynamic"`
}

// Library is a named set of factories. It is populated before being
// registered and treated as read-only afterwards.
type Library struct {
	Abbreviation string
	Name         string
	Description  string

	actions       map[string]action.Factory
	contributions map[string]action.ContributionFactory
	functions     map[string]FunctionDecl
	dynamic       DynamicResolver
}

// New creates an empty library.
func New(abbreviation, name, description string) *Library {
	return &Library{
		Abbreviation:  abbreviation,
		Name:          name,
		Description:   description,
		actions:       make(map[string]action.Factory),
		contributions: make(map[string]action.ContributionFactory),
		functions:     make(map[string]FunctionDecl),
	}
}

// AddAction declares an action factory under its own name.
func (l *Library) AddAction(f action.Factory) error {
	if f == nil {
		return schema.NewError(schema.ErrCodeValidation, "action factory is nil")
	}
	name := f.Name()
	if name == "" {
		return schema.NewError(schema.ErrCodeValidation, "action name is empty")
	}
	if _, exists := l.actions[name]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "action %q already declared in library %q", name, l.Abbreviation)
	}
	l.actions[name] = f
	return nil
}

// AddContribution declares a contribution factory under its own name.
func (l *Library) AddContribution(f action.ContributionFactory) error {
	if f == nil {
		return schema.NewError(schema.ErrCodeValidation, "contribution factory is nil")
	}
	name := f.Name()
	if name == "" {
		return schema.NewError(schema.ErrCodeValidation, "contribution name is empty")
	}
	if _, exists := l.contributions[name]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "contribution %q already declared in library %q", name, l.Abbreviation)
	}
	l.contributions[name] = f
	return nil
}

// AddFunction declares a function over an action of this library. The
// action must already be resolvable.
func (l *Library) AddFunction(fn FunctionDecl) error {
	if fn.Name == "" {
		return schema.NewError(schema.ErrCodeValidation, "function name is empty")
	}
	if _, exists := l.functions[fn.Name]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "function %q already declared in library %q", fn.Name, l.Abbreviation)
	}
	if _, ok := l.Action(fn.Action); !ok {
		return schema.NewErrorf(schema.ErrCodeLookup,
			"function %q refers to unknown action %q in library %q", fn.Name, fn.Action, l.Abbreviation)
	}
	l.functions[fn.Name] = fn
	return nil
}

// SetDynamic installs the fallback resolver for undeclared names.
func (l *Library) SetDynamic(r DynamicResolver) {
	l.dynamic = r
}

// Action resolves an action factory, statically first, then dynamically.
func (l *Library) Action(name string) (action.Factory, bool) {
	if f, ok := l.actions[name]; ok {
		return f, true
	}
	if l.dynamic != nil {
		return l.dynamic.ResolveAction(name)
	}
	return nil, false
}

// Contribution resolves a contribution factory, statically first, then
// dynamically.
func (l *Library) Contribution(name string) (action.ContributionFactory, bool) {
	if f, ok := l.contributions[name]; ok {
		return f, true
	}
	if l.dynamic != nil {
		return l.dynamic.ResolveContribution(name)
	}
	return nil, false
}

// Function returns a declared function.
func (l *Library) Function(name string) (FunctionDecl, bool) {
	fn, ok := l.functions[name]
	return fn, ok
}

// Functions returns the declared functions sorted by name.
func (l *Library) Functions() []FunctionDecl {
	out := make([]FunctionDecl, 0, len(l.functions))
	for _, fn := range l.functions {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Info summarizes the library's static declarations.
func (l *Library) Info() Info {
	return Info{
		Abbreviation:  l.Abbreviation,
		Name:          l.Name,
		Description:   l.Description,
		Actions:       sortedKeys(l.actions),
		Contributions: sortedKeys(l.contributions),
		Functions:     l.Functions(),
		Dynamic:       l.dynamic != nil,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
