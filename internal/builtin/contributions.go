package builtin

import (
	"context"
	"sort"

	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/internal/scope"
	"github.com/rendis/stencil/pkg/schema"
	"github.com/spf13/cast"
	"golang.org/x/text/language"
)

// formatter is implemented by factories whose actions read a "format"
// parameter.
type formatter interface {
	AcceptsFormat() bool
}

// contribution adapts a pair of functions to action.Contribution.
type contribution struct {
	accepts func(f action.Factory) bool
	apply   func(ctx context.Context, sc *scope.Scope, param action.Parameter, opts action.ContributionOptions) error
}

func (c *contribution) CanBeMadeTo(f action.Factory) bool {
	if c.accepts == nil {
		return true
	}
	return c.accepts(f)
}

func (c *contribution) Make(ctx context.Context, sc *scope.Scope, _ action.Writer, param action.Parameter, opts action.ContributionOptions) error {
	return c.apply(ctx, sc, param, opts)
}

func newContribution(name string, accepts func(action.Factory) bool,
	apply func(ctx context.Context, sc *scope.Scope, param action.Parameter, opts action.ContributionOptions) error,
) action.ContributionFactory {
	return action.NewContributionFactory(name, func() action.Contribution {
		return &contribution{accepts: accepts, apply: apply}
	})
}

// locale installs a locale for the creation and execution of the action and
// restores the previous one afterwards.
func localeContribution() action.ContributionFactory {
	return newContribution("locale", nil, func(ctx context.Context, sc *scope.Scope, param action.Parameter, opts action.ContributionOptions) error {
		v, err := param.Value(ctx, sc)
		if err != nil {
			return err
		}
		tag, err := parseLocale(v)
		if err != nil {
			return err
		}
		return opts.AddInterceptor(&localeInterceptor{tag: tag})
	})
}

// localeInterceptor swaps the locale in at CREATION and restores it once
// EXECUTION has returned, or right away when creation fails or is vetoed.
type localeInterceptor struct {
	tag     language.Tag
	restore func()
}

func (i *localeInterceptor) Phases() []action.Phase {
	return []action.Phase{action.PhaseCreation, action.PhaseExecution}
}

func (i *localeInterceptor) Intercept(ctx context.Context, ac *action.Context) error {
	if ac.Phase() == action.PhaseCreation {
		i.restore = ac.Scope().SwapImplicitObject(LocaleKey, i.tag)
		err := ac.Proceed(ctx)
		if err != nil || ac.Action() == nil {
			i.release()
		}
		return err
	}

	defer i.release()
	return ac.Proceed(ctx)
}

func (i *localeInterceptor) release() {
	if i.restore != nil {
		i.restore()
		i.restore = nil
	}
}

// format sets the "format" parameter of actions that read one.
func formatContribution() action.ContributionFactory {
	accepts := func(f action.Factory) bool {
		ff, ok := f.(formatter)
		return ok && ff.AcceptsFormat()
	}
	return newContribution("format", accepts, func(_ context.Context, _ *scope.Scope, param action.Parameter, opts action.ContributionOptions) error {
		return opts.SetParameter("format", param)
	})
}

// when vetoes the action unless its condition is truthy at creation time.
func whenContribution() action.ContributionFactory {
	return newContribution("when", nil, func(_ context.Context, _ *scope.Scope, param action.Parameter, opts action.ContributionOptions) error {
		return opts.AddInterceptor(action.NewInterceptor(func(ctx context.Context, ac *action.Context) error {
			v, err := param.Value(ctx, ac.Scope())
			if err != nil {
				return err
			}
			if !Truthy(v) {
				return nil
			}
			return ac.Proceed(ctx)
		}, action.PhaseCreation))
	})
}

// into redirects the action's output into a variable. A single written value
// is stored as is, several as a list, nothing as nil.
func intoContribution() action.ContributionFactory {
	return newContribution("into", nil, func(ctx context.Context, sc *scope.Scope, param action.Parameter, opts action.ContributionOptions) error {
		v, err := param.Value(ctx, sc)
		if err != nil {
			return err
		}
		name := cast.ToString(v)
		if name == "" {
			return schema.NewError(schema.ErrCodeValidation, "into: variable name is empty")
		}
		return opts.AddInterceptor(action.NewInterceptor(func(ctx context.Context, ac *action.Context) error {
			prev := ac.Writer()
			cw := action.NewCaptureWriter()
			ac.SetWriter(cw)
			err := ac.Proceed(ctx)
			ac.SetWriter(prev)
			if err != nil {
				return err
			}
			out, _ := cw.Result()
			ac.Scope().Set(name, out)
			return nil
		}, action.PhaseExecution))
	})
}

// args sets one parameter per entry of a map.
func argsContribution() action.ContributionFactory {
	return newContribution("args", nil, func(ctx context.Context, sc *scope.Scope, param action.Parameter, opts action.ContributionOptions) error {
		v, err := param.Value(ctx, sc)
		if err != nil {
			return err
		}
		if v == nil {
			return nil
		}
		m, err := cast.ToStringMapE(v)
		if err != nil {
			return schema.NewErrorf(schema.ErrCodeEvaluation, "args: expected a map, got %T", v).WithCause(err)
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := opts.SetParameter(k, action.Literal(m[k])); err != nil {
				return err
			}
		}
		return nil
	})
}
