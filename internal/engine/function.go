package engine

import (
	"context"
	"sort"

	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/internal/library"
	"github.com/rendis/stencil/internal/logging"
	"github.com/rendis/stencil/internal/scope"
	"github.com/rendis/stencil/internal/telemetry"
	"github.com/rendis/stencil/pkg/schema"
)

// Call runs the action behind fn as a function. Positional args bind, in
// order, to the parameter names fn declares. The action's output is
// captured: a single written value is the result, several values are
// returned as []any in write order, and writing nothing is a CONTRACT_ERROR.
func (d *Driver) Call(ctx context.Context, fn library.Function, args []any, sc *scope.Scope) (any, error) {
	if len(args) > len(fn.Args) {
		err := schema.NewErrorf(schema.ErrCodeValidation,
			"function %s takes at most %d arguments, got %d", fn.Name, len(fn.Args), len(args))
		d.metrics.RecordFunctionCall(fn.Name, telemetry.OutcomeError)
		return nil, err
	}
	params := make(map[string]any, len(args))
	for i, v := range args {
		params[fn.Args[i]] = v
	}
	return d.invoke(ctx, fn, params, sc)
}

// CallNamed resolves a function by name and calls it with named parameters.
func (d *Driver) CallNamed(ctx context.Context, name string, params map[string]any, sc *scope.Scope) (any, error) {
	fn, err := d.registry.ResolveFunction(name)
	if err != nil {
		return nil, err
	}
	return d.invoke(ctx, fn, params, sc)
}

func (d *Driver) invoke(ctx context.Context, fn library.Function, params map[string]any, sc *scope.Scope) (any, error) {
	out, err := d.callAction(ctx, fn.Descriptor(), params, sc)
	d.metrics.RecordFunctionCall(fn.Name, telemetry.Outcome(err))
	return out, err
}

func (d *Driver) callAction(ctx context.Context, desc action.Descriptor, params map[string]any, sc *scope.Scope) (any, error) {
	if sc == nil {
		sc = scope.New(nil)
	}
	ctx = logging.WithAction(ctx, desc.String())

	factory, err := d.registry.ResolveAction(desc)
	if err != nil {
		return nil, err
	}

	capture := action.NewCaptureWriter()
	ac := action.NewContext(d.cfg, desc, factory, sc, capture)

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := ac.AddParameter(name, action.Literal(params[name])); err != nil {
			return nil, err
		}
	}

	if _, err := d.run(ctx, ac, nil, &nodeBody{driver: d}); err != nil {
		return nil, err
	}

	v, ok := capture.Result()
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeContract, "nothing was written by action %s", desc)
	}
	return v, nil
}

// BindFunctions exposes every registry function in env without shadowing
// existing keys. Calls run against sc.
func (d *Driver) BindFunctions(ctx context.Context, sc *scope.Scope, env map[string]any) {
	for _, fn := range d.registry.Functions() {
		if _, taken := env[fn.Name]; taken {
			continue
		}
		env[fn.Name] = func(args ...any) (any, error) {
			return d.Call(ctx, fn, args, sc)
		}
	}
}
