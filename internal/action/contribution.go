package action

import (
	"context"

	"github.com/rendis/stencil/internal/scope"
)

// Contribution modifies one pending action invocation. It never touches the
// Action itself: it can only set parameters and register interceptors
// through ContributionOptions.
type Contribution interface {
	// CanBeMadeTo reports whether the contribution understands actions built
	// by f.
	CanBeMadeTo(f Factory) bool
	Make(ctx context.Context, sc *scope.Scope, w Writer, param Parameter, opts ContributionOptions) error
}

// ContributionFactory instantiates a Contribution per invocation.
type ContributionFactory interface {
	Name() string
	Create() Contribution
}

// ContributionOptions are the only effects a contribution may have on the
// pending invocation.
type ContributionOptions interface {
	SetParameter(name string, p Parameter) error
	AddInterceptor(i Interceptor) error
}

type contributionFactoryFunc struct {
	name   string
	create func() Contribution
}

// NewContributionFactory returns a ContributionFactory backed by create.
func NewContributionFactory(name string, create func() Contribution) ContributionFactory {
	return &contributionFactoryFunc{name: name, create: create}
}

func (f *contributionFactoryFunc) Name() string { return f.name }

func (f *contributionFactoryFunc) Create() Contribution { return f.create() }

// contributionOptions narrows a Context down to ContributionOptions.
type contributionOptions struct {
	ac *Context
}

func (o contributionOptions) SetParameter(name string, p Parameter) error {
	return o.ac.AddParameter(name, p)
}

func (o contributionOptions) AddInterceptor(i Interceptor) error {
	return o.ac.AddInterceptor(i)
}
