// Package action implements the per-invocation action pipeline.
//
// Every action node in a template is evaluated by a fresh Context that walks
// three ordered phases. During CONTRIBUTION the node's contributions shape
// the pending parameter set and register interceptors. During CREATION the
// interceptor chain runs and its terminal step asks the Factory for the
// Action. During EXECUTION the chain runs again and its terminal step calls
// Action.Execute. Interceptors continue a chain by calling Context.Proceed;
// one that returns without proceeding short-circuits the rest of its phase.
package action

import (
	"context"
	"fmt"

	"github.com/rendis/stencil/internal/scope"
	"github.com/spf13/cast"
)

// Descriptor names the factory an action node was parsed against.
type Descriptor struct {
	Name    string `json:"name"`
	Library string `json:"library,omitempty"`
}

func (d Descriptor) String() string {
	if d.Library == "" {
		return d.Name
	}
	return d.Library + ":" + d.Name
}

// ContributionDescriptor names one contribution attached to an action node,
// together with the parameter it was declared with.
type ContributionDescriptor struct {
	Name      string
	Library   string
	Parameter Parameter
}

func (d ContributionDescriptor) String() string {
	if d.Library == "" {
		return d.Name
	}
	return d.Library + ":" + d.Name
}

// Parameter is a deferred value. Evaluation happens only when a factory or
// contribution asks for it, against the scope that is current at that time.
type Parameter interface {
	// Text returns the source text of the parameter, if it has one.
	Text() (string, bool)
	Value(ctx context.Context, sc *scope.Scope) (any, error)
}

// Action is the behavior bound to a node once its factory has built it.
type Action interface {
	SetBody(body Body)
	Execute(ctx context.Context, sc *scope.Scope, w Writer) error
}

// Body is the nested content of an action node as a re-enterable unit.
// Loops and conditionals invoke it zero or more times.
type Body interface {
	// Copy returns an independent handle that can be invoked without
	// affecting the original.
	Copy() Body
	Invoke(ctx context.Context, sc *scope.Scope, w Writer) error
}

// Factory builds Actions from a parameter set.
type Factory interface {
	Name() string
	Create(ctx context.Context, params Params) (Action, error)
}

// --- helpers ---

type literal struct {
	v any
}

// Literal returns a Parameter that always evaluates to v.
func Literal(v any) Parameter {
	return literal{v: v}
}

func (l literal) Text() (string, bool) {
	s, err := cast.ToStringE(l.v)
	if err != nil {
		return fmt.Sprint(l.v), true
	}
	return s, true
}

func (l literal) Value(context.Context, *scope.Scope) (any, error) {
	return l.v, nil
}

// ParameterFunc adapts a function to the Parameter interface.
type ParameterFunc func(ctx context.Context, sc *scope.Scope) (any, error)

func (f ParameterFunc) Text() (string, bool) { return "", false }

func (f ParameterFunc) Value(ctx context.Context, sc *scope.Scope) (any, error) {
	return f(ctx, sc)
}

type factoryFunc struct {
	name   string
	create func(ctx context.Context, params Params) (Action, error)
}

// NewFactory returns a Factory backed by create.
func NewFactory(name string, create func(ctx context.Context, params Params) (Action, error)) Factory {
	return &factoryFunc{name: name, create: create}
}

func (f *factoryFunc) Name() string { return f.name }

func (f *factoryFunc) Create(ctx context.Context, params Params) (Action, error) {
	return f.create(ctx, params)
}

// Base can be embedded by actions to hold their body.
type Base struct {
	body Body
}

// SetBody stores the node body.
func (b *Base) SetBody(body Body) { b.body = body }

// Body returns the stored body, or an empty one if none was attached.
func (b *Base) Body() Body {
	if b.body == nil {
		return emptyBody{}
	}
	return b.body
}

type emptyBody struct{}

func (emptyBody) Copy() Body { return emptyBody{} }

func (emptyBody) Invoke(context.Context, *scope.Scope, Writer) error { return nil }
