package action

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rendis/stencil/internal/scope"
	"github.com/rendis/stencil/pkg/schema"
)

// Config is the engine-wide configuration handle every Context carries.
type Config struct {
	Logger *slog.Logger
	// Now is the clock used by time-aware actions. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns a Config that logs nowhere and uses the wall clock.
func DefaultConfig() *Config {
	return &Config{
		Logger: slog.New(slog.DiscardHandler),
		Now:    time.Now,
	}
}

type registration struct {
	desc    ContributionDescriptor
	factory ContributionFactory
}

// Context is the mutable record of one action invocation. It owns the phase
// state machine, the parameter set, the contribution registrations and one
// interceptor chain per chained phase.
//
// Gating rules:
//   - parameters are frozen once an action is bound;
//   - contributions are frozen once the context leaves CONTRIBUTION;
//   - an interceptor cannot join a phase that has already started;
//   - a bound action cannot be replaced.
type Context struct {
	cfg        *Config
	descriptor Descriptor
	factory    Factory
	scope      *scope.Scope
	writer     Writer

	params        map[string]Parameter
	contributions []registration
	applied       int

	chains     [phaseCount][]Interceptor
	cursor     [phaseCount]int
	terminated [phaseCount]bool

	phase  Phase
	action Action
}

// NewContext creates a Context for one invocation of the action built by
// factory. A nil cfg falls back to DefaultConfig.
func NewContext(cfg *Config, desc Descriptor, factory Factory, sc *scope.Scope, w Writer) *Context {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Context{
		cfg:        cfg,
		descriptor: desc,
		factory:    factory,
		scope:      sc,
		writer:     w,
		params:     make(map[string]Parameter),
	}
}

// Config returns the configuration handle.
func (ac *Context) Config() *Config { return ac.cfg }

// Logger returns the configured logger annotated with the action name.
func (ac *Context) Logger() *slog.Logger {
	l := ac.cfg.Logger
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	return l.With(slog.String("action", ac.descriptor.String()))
}

// Descriptor returns the descriptor of the node being evaluated.
func (ac *Context) Descriptor() Descriptor { return ac.descriptor }

// Factory returns the factory resolved for the node.
func (ac *Context) Factory() Factory { return ac.factory }

// Scope returns the active data-scope.
func (ac *Context) Scope() *scope.Scope { return ac.scope }

// Writer returns the active output sink.
func (ac *Context) Writer() Writer { return ac.writer }

// SetWriter replaces the active output sink. Interceptors that swap the
// writer temporarily must restore it themselves before their phase ends.
func (ac *Context) SetWriter(w Writer) { ac.writer = w }

// Phase returns the current phase, PhaseNone before the pipeline starts.
func (ac *Context) Phase() Phase { return ac.phase }

// Action returns the bound action, or nil before CREATION completes.
func (ac *Context) Action() Action { return ac.action }

// Params returns a snapshot of the current parameter set bound to the
// active scope.
func (ac *Context) Params() Params {
	return NewParams(ac.params, ac.scope)
}

// AddParameter inserts or overwrites a parameter.
func (ac *Context) AddParameter(name string, p Parameter) error {
	if ac.action != nil {
		return schema.NewErrorf(schema.ErrCodeMutationAfterCreation,
			"cannot set parameter %q on %s: action already created", name, ac.descriptor)
	}
	if name == "" {
		return schema.NewError(schema.ErrCodeValidation, "parameter name is empty")
	}
	if p == nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "parameter %q is nil", name)
	}
	ac.params[name] = p
	return nil
}

// AddContribution registers a contribution. Registrations made before the
// pipeline starts are applied, in order, when the context enters
// CONTRIBUTION; registrations made during CONTRIBUTION are applied at once.
func (ac *Context) AddContribution(ctx context.Context, desc ContributionDescriptor, factory ContributionFactory) error {
	if ac.phase > PhaseContribution {
		return schema.NewErrorf(schema.ErrCodeContributionAfterPhase,
			"cannot add contribution %s to %s in phase %s", desc, ac.descriptor, ac.phase)
	}
	if factory == nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "contribution %s has no factory", desc)
	}
	ac.contributions = append(ac.contributions, registration{desc: desc, factory: factory})
	if ac.phase == PhaseContribution {
		return ac.applyPending(ctx)
	}
	return nil
}

// AddInterceptor appends i to the chain of every phase it declares. It is
// all-or-nothing: if any declared phase is not chained or has already
// started, no chain is modified.
func (ac *Context) AddInterceptor(i Interceptor) error {
	if i == nil {
		return schema.NewError(schema.ErrCodeValidation, "interceptor is nil")
	}
	phases := i.Phases()
	if len(phases) == 0 {
		return schema.NewError(schema.ErrCodeValidation, "interceptor declares no phases")
	}

	var targets [phaseCount]bool
	for _, p := range phases {
		if !p.chained() {
			return schema.NewErrorf(schema.ErrCodeValidation,
				"interceptors cannot run in phase %s", p)
		}
		if p <= ac.phase {
			return schema.NewErrorf(schema.ErrCodeInterceptorAfterPhase,
				"cannot add interceptor for phase %s to %s: phase already started", p, ac.descriptor)
		}
		targets[p] = true
	}

	for p, ok := range targets {
		if ok {
			ac.chains[p] = append(ac.chains[p], i)
		}
	}
	return nil
}

// SetAction binds the instantiated action. A bound action cannot be replaced.
func (ac *Context) SetAction(a Action) error {
	if ac.action != nil {
		return schema.NewErrorf(schema.ErrCodeActionReplaced,
			"action for %s already bound", ac.descriptor)
	}
	if a == nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "cannot bind nil action for %s", ac.descriptor)
	}
	ac.action = a
	return nil
}

// SetPhase advances to the next phase. Only the immediate successor of the
// current phase is accepted. Entering a chained phase positions its walk at
// the first interceptor; entering CONTRIBUTION applies every pending
// contribution.
func (ac *Context) SetPhase(ctx context.Context, p Phase) error {
	if p != ac.phase+1 || p > PhaseExecution {
		return schema.NewErrorf(schema.ErrCodeInvalidPhase,
			"cannot move %s from phase %s to %s", ac.descriptor, ac.phase, p)
	}
	if p == PhaseExecution && ac.action == nil {
		return schema.NewErrorf(schema.ErrCodeInvalidPhase,
			"cannot execute %s: no action was created", ac.descriptor)
	}

	ac.phase = p
	ac.Logger().DebugContext(ctx, "phase entered", slog.String("phase", p.String()),
		slog.Int("interceptors", len(ac.chains[p])))

	switch p {
	case PhaseContribution:
		return ac.applyPending(ctx)
	case PhaseCreation, PhaseExecution:
		ac.cursor[p] = 0
	}
	return nil
}

// Proceed continues the current phase: it invokes the next interceptor of
// the chain, advancing the cursor before the call so nested Proceed calls
// move forward. Once the chain is exhausted it runs the terminal step of
// the phase exactly once; later calls are no-ops.
func (ac *Context) Proceed(ctx context.Context) error {
	p := ac.phase
	if !p.chained() {
		return schema.NewErrorf(schema.ErrCodeInvalidPhase,
			"proceed called on %s in phase %s", ac.descriptor, p)
	}

	if ac.cursor[p] < len(ac.chains[p]) {
		next := ac.chains[p][ac.cursor[p]]
		ac.cursor[p]++
		return next.Intercept(ctx, ac)
	}

	if ac.terminated[p] {
		return nil
	}
	ac.terminated[p] = true

	if p == PhaseCreation {
		return ac.create(ctx)
	}
	return ac.execute(ctx)
}

func (ac *Context) applyPending(ctx context.Context) error {
	for ac.applied < len(ac.contributions) {
		reg := ac.contributions[ac.applied]
		ac.applied++
		if err := ac.apply(ctx, reg); err != nil {
			return err
		}
	}
	return nil
}

func (ac *Context) apply(ctx context.Context, reg registration) error {
	c := reg.factory.Create()
	if c == nil {
		return schema.NewErrorf(schema.ErrCodeExecution,
			"contribution factory %s returned nil", reg.desc)
	}
	if !c.CanBeMadeTo(ac.factory) {
		return schema.NewErrorf(schema.ErrCodeIncompatible,
			"contribution %s cannot be made to action %s", reg.desc, ac.descriptor).
			WithDetails(map[string]any{"contribution": reg.desc.String(), "action": ac.descriptor.String()})
	}

	param := reg.desc.Parameter
	if param == nil {
		param = Literal(nil)
	}
	if err := c.Make(ctx, ac.scope, ac.writer, param, contributionOptions{ac: ac}); err != nil {
		return wrap(err, schema.ErrCodeExecution, "contribution %s on %s", reg.desc, ac.descriptor)
	}
	return nil
}

func (ac *Context) create(ctx context.Context) error {
	if ac.factory == nil {
		return schema.NewErrorf(schema.ErrCodeLookup, "no factory for %s", ac.descriptor)
	}
	a, err := ac.factory.Create(ctx, ac.Params())
	if err != nil {
		return wrap(err, schema.ErrCodeExecution, "create %s", ac.descriptor)
	}
	return ac.SetAction(a)
}

func (ac *Context) execute(ctx context.Context) error {
	if err := ac.action.Execute(ctx, ac.scope, ac.writer); err != nil {
		return wrap(err, schema.ErrCodeExecution, "execute %s", ac.descriptor)
	}
	return nil
}

// wrap returns structured errors untouched and wraps anything else under code.
func wrap(err error, code, format string, args ...any) error {
	var se *schema.StencilError
	if errors.As(err, &se) {
		return err
	}
	e := schema.NewErrorf(code, format, args...)
	e.Message += ": " + err.Error()
	return e.WithCause(err)
}
