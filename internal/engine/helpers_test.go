package engine

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/internal/builtin"
	"github.com/rendis/stencil/internal/expressions"
	"github.com/rendis/stencil/internal/library"
	"github.com/rendis/stencil/internal/scope"
	"github.com/rendis/stencil/pkg/schema"
	"github.com/spf13/cast"
	"github.com/stretchr/testify/require"
)

// testLib is a small library exercising the pipeline without the builtins.
//
//	emit      writes its "value" parameter at execution
//	fail      fails at execution with a plain error
//	repeat    invokes its body "times" times
//	explode   panics at execution
//	record    (contribution) appends its parameter to the recorder
//	value     (contribution) sets the "value" parameter
//	bracket   (contribution) swaps variable "mode" in at CREATION, restores after EXECUTION
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type testAction struct {
	action.Base
	exec func(ctx context.Context, body action.Body, sc *scope.Scope, w action.Writer) error
}

func (a *testAction) Execute(ctx context.Context, sc *scope.Scope, w action.Writer) error {
	return a.exec(ctx, a.Body(), sc, w)
}

type testContribution struct {
	apply func(ctx context.Context, sc *scope.Scope, p action.Parameter, opts action.ContributionOptions) error
}

func (c *testContribution) CanBeMadeTo(action.Factory) bool { return true }

func (c *testContribution) Make(ctx context.Context, sc *scope.Scope, _ action.Writer, p action.Parameter, opts action.ContributionOptions) error {
	return c.apply(ctx, sc, p, opts)
}

type bracket struct {
	restore func()
}

func (b *bracket) Phases() []action.Phase {
	return []action.Phase{action.PhaseCreation, action.PhaseExecution}
}

func (b *bracket) Intercept(ctx context.Context, ac *action.Context) error {
	if ac.Phase() == action.PhaseCreation {
		b.restore = ac.Scope().Swap("mode", "bracketed")
		return ac.Proceed(ctx)
	}
	defer b.restore()
	return ac.Proceed(ctx)
}

func newTestLibrary(t *testing.T, rec *recorder) *library.Library {
	t.Helper()
	lib := library.New("t", "test", "pipeline test actions")

	factories := []action.Factory{
		action.NewFactory("emit", func(ctx context.Context, params action.Params) (action.Action, error) {
			p, _ := params.Parameter("value")
			return &testAction{exec: func(ctx context.Context, _ action.Body, sc *scope.Scope, w action.Writer) error {
				if p == nil {
					return nil
				}
				v, err := p.Value(ctx, sc)
				if err != nil {
					return err
				}
				return w.Write(v)
			}}, nil
		}),
		action.NewFactory("fail", func(context.Context, action.Params) (action.Action, error) {
			return &testAction{exec: func(context.Context, action.Body, *scope.Scope, action.Writer) error {
				return errors.New("boom")
			}}, nil
		}),
		action.NewFactory("repeat", func(ctx context.Context, params action.Params) (action.Action, error) {
			n, err := params.Int(ctx, "times", 1)
			if err != nil {
				return nil, err
			}
			return &testAction{exec: func(ctx context.Context, body action.Body, sc *scope.Scope, w action.Writer) error {
				for range n {
					if err := body.Invoke(ctx, sc, w); err != nil {
						return err
					}
				}
				return nil
			}}, nil
		}),
		action.NewFactory("explode", func(context.Context, action.Params) (action.Action, error) {
			return &testAction{exec: func(context.Context, action.Body, *scope.Scope, action.Writer) error {
				panic("kaboom")
			}}, nil
		}),
	}
	for _, f := range factories {
		require.NoError(t, lib.AddAction(f))
	}

	contributions := []action.ContributionFactory{
		action.NewContributionFactory("record", func() action.Contribution {
			return &testContribution{apply: func(ctx context.Context, sc *scope.Scope, p action.Parameter, _ action.ContributionOptions) error {
				v, err := p.Value(ctx, sc)
				if err != nil {
					return err
				}
				rec.add(cast.ToString(v))
				return nil
			}}
		}),
		action.NewContributionFactory("value", func() action.Contribution {
			return &testContribution{apply: func(_ context.Context, _ *scope.Scope, p action.Parameter, opts action.ContributionOptions) error {
				return opts.SetParameter("value", p)
			}}
		}),
		action.NewContributionFactory("bracket", func() action.Contribution {
			return &testContribution{apply: func(_ context.Context, _ *scope.Scope, _ action.Parameter, opts action.ContributionOptions) error {
				return opts.AddInterceptor(&bracket{})
			}}
		}),
	}
	for _, c := range contributions {
		require.NoError(t, lib.AddContribution(c))
	}
	require.NoError(t, lib.AddFunction(library.FunctionDecl{Name: "emit", Action: "emit", Args: []string{"value"}}))
	require.NoError(t, lib.AddFunction(library.FunctionDecl{Name: "silent", Action: "repeat", Args: []string{"times"}}))
	return lib
}

func newTestDriver(t *testing.T, opts Options) (*Driver, *recorder) {
	t.Helper()
	rec := &recorder{}
	reg, err := builtin.NewRegistry(builtin.Options{})
	require.NoError(t, err)
	require.NoError(t, reg.Register(newTestLibrary(t, rec)))

	ev, err := expressions.NewDefaultEvaluator("")
	require.NoError(t, err)
	return NewDriver(reg, ev, opts), rec
}

func renderNodes(t *testing.T, d *Driver, vars map[string]any, nodes ...schema.Node) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	tpl := &schema.Template{Name: "test", Nodes: nodes}
	err := d.Render(context.Background(), tpl, scope.New(vars), action.NewTextWriter(&buf))
	return buf.String(), err
}

func lit(v any) schema.Param     { return schema.Param{Value: v} }
func ex(src string) schema.Param { return schema.Param{Expr: src} }

func textNode(s string) schema.Node { return schema.Node{Kind: schema.NodeText, Text: s} }

func exprNode(s string) schema.Node { return schema.Node{Kind: schema.NodeExpr, Expr: s} }

func testNode(name string, line int, params map[string]schema.Param, refs []schema.ContributionRef, children ...schema.Node) schema.Node {
	return schema.Node{
		Kind:          schema.NodeAction,
		Line:          line,
		Library:       "t",
		Action:        name,
		Params:        params,
		Contributions: refs,
		Children:      children,
	}
}

func ref(name string, p schema.Param) schema.ContributionRef {
	return schema.ContributionRef{Name: name, Library: "t", Param: p}
}
