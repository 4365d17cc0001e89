package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/internal/logging"
	"github.com/rendis/stencil/internal/scope"
	"github.com/rendis/stencil/internal/store"
)

// trace records the invocation in the journal: parameter sources, phase
// durations and outcome. It is a no-op without a journal.
func traceContribution(journal store.Journal) action.ContributionFactory {
	return newContribution("trace", nil, func(_ context.Context, _ *scope.Scope, _ action.Parameter, opts action.ContributionOptions) error {
		if journal == nil {
			return nil
		}
		return opts.AddInterceptor(&traceInterceptor{journal: journal})
	})
}

type traceInterceptor struct {
	journal  store.Journal
	creation time.Duration
}

func (t *traceInterceptor) Phases() []action.Phase {
	return []action.Phase{action.PhaseCreation, action.PhaseExecution}
}

func (t *traceInterceptor) Intercept(ctx context.Context, ac *action.Context) error {
	if ac.Phase() == action.PhaseCreation {
		start := time.Now()
		err := ac.Proceed(ctx)
		t.creation = time.Since(start)
		switch {
		case err != nil:
			t.record(ctx, ac, store.OutcomeError, err, 0)
		case ac.Action() == nil:
			t.record(ctx, ac, store.OutcomeVetoed, nil, 0)
		}
		return err
	}

	start := time.Now()
	err := ac.Proceed(ctx)
	outcome := store.OutcomeOK
	if err != nil {
		outcome = store.OutcomeError
	}
	t.record(ctx, ac, outcome, err, time.Since(start))
	return err
}

func (t *traceInterceptor) record(ctx context.Context, ac *action.Context, outcome string, cause error, execution time.Duration) {
	inv := &store.Invocation{
		ID:        uuid.NewString(),
		RenderID:  logging.RenderID(ctx),
		Action:    ac.Descriptor().String(),
		Outcome:   outcome,
		Params:    paramSources(ac.Params()),
		Creation:  t.creation,
		Execution: execution,
	}
	if loc, ok := action.LocationFrom(ctx); ok {
		inv.Template = loc.Template
		inv.Line = loc.Line
	}
	if cause != nil {
		inv.Error = cause.Error()
	}
	if err := t.journal.AppendInvocation(ctx, inv); err != nil {
		ac.Logger().WarnContext(ctx, "trace: append invocation failed", "error", err)
	}
}

// paramSources describes parameters without evaluating them again.
func paramSources(params action.Params) map[string]any {
	out := make(map[string]any, params.Len())
	for _, name := range params.Names() {
		p, _ := params.Parameter(name)
		if s, ok := p.Text(); ok || s != "" {
			out[name] = s
			continue
		}
		if st, ok := p.(fmt.Stringer); ok {
			out[name] = st.String()
			continue
		}
		out[name] = "<deferred>"
	}
	return out
}
