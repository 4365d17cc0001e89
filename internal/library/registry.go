package library

import (
	"sort"
	"sync"

	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/pkg/schema"
)

// Registry is the thread-safe set of libraries known to an engine. Nodes
// that name no library resolve against the default library.
type Registry struct {
	mu         sync.RWMutex
	libs       map[string]*Library
	defaultLib string
}

// NewRegistry creates an empty Registry whose default library is defaultLib.
func NewRegistry(defaultLib string) *Registry {
	return &Registry{
		libs:       make(map[string]*Library),
		defaultLib: defaultLib,
	}
}

// Default returns the abbreviation of the default library.
func (r *Registry) Default() string { return r.defaultLib }

// Register adds a library. Returns error on duplicate abbreviation.
func (r *Registry) Register(lib *Library) error {
	if lib == nil {
		return schema.NewError(schema.ErrCodeValidation, "library is nil")
	}
	if lib.Abbreviation == "" {
		return schema.NewError(schema.ErrCodeValidation, "library abbreviation is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.libs[lib.Abbreviation]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "library %q already registered", lib.Abbreviation)
	}
	r.libs[lib.Abbreviation] = lib
	return nil
}

// Get retrieves a library by abbreviation or full name. An empty name
// selects the default library.
func (r *Registry) Get(name string) (*Library, error) {
	if name == "" {
		name = r.defaultLib
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if lib, ok := r.libs[name]; ok {
		return lib, nil
	}
	for _, lib := range r.libs {
		if lib.Name == name {
			return lib, nil
		}
	}
	return nil, schema.NewErrorf(schema.ErrCodeLookup, "library %q not registered", name).
		WithDetails(map[string]any{"library": name, "available": r.abbreviations()})
}

// Has checks if a library is registered under abbreviation.
func (r *Registry) Has(abbreviation string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.libs[abbreviation]
	return ok
}

// Count returns the number of registered libraries.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.libs)
}

// ResolveAction finds the factory an action node names.
func (r *Registry) ResolveAction(desc action.Descriptor) (action.Factory, error) {
	lib, err := r.Get(desc.Library)
	if err != nil {
		return nil, err
	}
	f, ok := lib.Action(desc.Name)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeLookup,
			"action %q not found in library %q", desc.Name, lib.Abbreviation).
			WithDetails(map[string]any{"action": desc.Name, "library": lib.Abbreviation})
	}
	return f, nil
}

// ResolveContribution finds the factory a contribution descriptor names.
func (r *Registry) ResolveContribution(desc action.ContributionDescriptor) (action.ContributionFactory, error) {
	lib, err := r.Get(desc.Library)
	if err != nil {
		return nil, err
	}
	f, ok := lib.Contribution(desc.Name)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeLookup,
			"contribution %q not found in library %q", desc.Name, lib.Abbreviation).
			WithDetails(map[string]any{"contribution": desc.Name, "library": lib.Abbreviation})
	}
	return f, nil
}

// Function is a declared function together with the library declaring it.
type Function struct {
	Library string
	FunctionDecl
}

// Descriptor returns the descriptor of the action behind the function.
func (f Function) Descriptor() action.Descriptor {
	return action.Descriptor{Name: f.Action, Library: f.Library}
}

// ResolveFunction finds a function by name, looking in the default library
// first and then in the others in abbreviation order.
func (r *Registry) ResolveFunction(name string) (Function, error) {
	for _, fn := range r.Functions() {
		if fn.Name == name {
			return fn, nil
		}
	}
	return Function{}, schema.NewErrorf(schema.ErrCodeLookup, "function %q not declared", name)
}

// Functions returns every callable function. When two libraries declare
// the same name, the one found first (default library, then abbreviation
// order) wins.
func (r *Registry) Functions() []Function {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order := r.abbreviations()
	if _, ok := r.libs[r.defaultLib]; ok {
		sorted := []string{r.defaultLib}
		for _, a := range order {
			if a != r.defaultLib {
				sorted = append(sorted, a)
			}
		}
		order = sorted
	}

	seen := make(map[string]bool)
	var out []Function
	for _, a := range order {
		lib := r.libs[a]
		for _, fn := range lib.Functions() {
			if seen[fn.Name] {
				continue
			}
			seen[fn.Name] = true
			out = append(out, Function{Library: lib.Abbreviation, FunctionDecl: fn})
		}
	}
	return out
}

// List returns info for all registered libraries, sorted by abbreviation.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.libs))
	for _, a := range r.abbreviations() {
		infos = append(infos, r.libs[a].Info())
	}
	return infos
}

// abbreviations must be called with r.mu held.
func (r *Registry) abbreviations() []string {
	out := make([]string, 0, len(r.libs))
	for a := range r.libs {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
