package builtin

import (
	"context"

	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/internal/library"
	"github.com/rendis/stencil/internal/scope"
)

// Vars builds the dynamic "var" library. Any action name writes the
// variable of that name (or the default parameter when it is unset), and
// any contribution name sets the parameter of that name.
func Vars() *library.Library {
	lib := library.New(VarsAbbreviation, "var", "Variables as actions, parameters as contributions")
	lib.SetDynamic(varResolver{})
	return lib
}

type varResolver struct{}

func (varResolver) ResolveAction(name string) (action.Factory, bool) {
	if name == "" {
		return nil, false
	}
	return &factory{name: name, create: func(ctx context.Context, params action.Params) (action.Action, error) {
		def, err := params.Value(ctx, "default")
		if err != nil {
			return nil, err
		}
		return run(func(_ context.Context, _ action.Body, sc *scope.Scope, w action.Writer) error {
			v, ok := sc.FindVariable(name)
			if !ok || v == nil {
				v = def
			}
			return w.Write(v)
		}), nil
	}}, true
}

func (varResolver) ResolveContribution(name string) (action.ContributionFactory, bool) {
	if name == "" {
		return nil, false
	}
	return newContribution(name, nil, func(_ context.Context, _ *scope.Scope, param action.Parameter, opts action.ContributionOptions) error {
		return opts.SetParameter(name, param)
	}), true
}
