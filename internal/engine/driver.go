// Package engine drives templates through the action pipeline. The Driver
// walks template nodes, runs every action node through its three phases and
// exposes library functions to expressions.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/internal/expressions"
	"github.com/rendis/stencil/internal/library"
	"github.com/rendis/stencil/internal/logging"
	"github.com/rendis/stencil/internal/scope"
	"github.com/rendis/stencil/internal/store"
	"github.com/rendis/stencil/internal/telemetry"
	"github.com/rendis/stencil/pkg/schema"
)

// Options configures a Driver. Zero values select no-op implementations.
type Options struct {
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	// Journal, when set, receives one record per Render call.
	Journal store.Journal
	// Now overrides the clock handed to actions.
	Now func() time.Time
}

// Driver evaluates template nodes. It is safe for concurrent use as long as
// each render uses its own scope and writer.
type Driver struct {
	registry  *library.Registry
	evaluator *expressions.Evaluator
	cfg       *action.Config
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	journal   store.Journal
}

// NewDriver creates a Driver and installs it as the function binder of ev.
func NewDriver(reg *library.Registry, ev *expressions.Evaluator, opts Options) *Driver {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNop()
	}
	cfg := action.DefaultConfig()
	cfg.Logger = logger
	if opts.Now != nil {
		cfg.Now = opts.Now
	}

	d := &Driver{
		registry:  reg,
		evaluator: ev,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		journal:   opts.Journal,
	}
	ev.SetFunctions(d)
	return d
}

// Registry returns the library registry nodes resolve against.
func (d *Driver) Registry() *library.Registry { return d.registry }

// Evaluator returns the expression evaluator.
func (d *Driver) Evaluator() *expressions.Evaluator { return d.evaluator }

// Render processes every top-level node of tpl. The render ID is taken from
// ctx (see logging.WithRenderID) or generated.
func (d *Driver) Render(ctx context.Context, tpl *schema.Template, sc *scope.Scope, w action.Writer) error {
	if tpl == nil {
		return schema.NewError(schema.ErrCodeValidation, "template is nil")
	}
	renderID := logging.RenderID(ctx)
	if renderID == "" {
		renderID = uuid.NewString()
		ctx = logging.WithRenderID(ctx, renderID)
	}
	ctx = logging.WithTemplate(ctx, tpl.Name)

	start := d.cfg.Now()
	d.logger.DebugContext(ctx, "render started", slog.Int("nodes", len(tpl.Nodes)))

	err := d.processNodes(ctx, tpl, tpl.Nodes, sc, w)
	elapsed := d.cfg.Now().Sub(start)

	d.metrics.RecordRender(telemetry.Outcome(err), elapsed)
	if d.journal != nil {
		rec := &store.Render{
			ID:        renderID,
			Template:  tpl.Name,
			Outcome:   telemetry.Outcome(err),
			Duration:  elapsed,
			StartedAt: start,
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if jerr := d.journal.AppendRender(ctx, rec); jerr != nil {
			d.logger.WarnContext(ctx, "journal render failed", slog.Any("error", jerr))
		}
	}
	if err != nil {
		return err
	}
	d.logger.DebugContext(ctx, "render completed", slog.Duration("elapsed", elapsed))
	return nil
}

// ProcessNode evaluates a single node of tpl against sc, writing to w.
// Failures carry the location of the innermost failing node.
func (d *Driver) ProcessNode(ctx context.Context, tpl *schema.Template, n *schema.Node, sc *scope.Scope, w action.Writer) error {
	loc := tpl.Location(n)
	ctx = action.WithLocation(ctx, loc)

	var (
		err     error
		outcome = telemetry.OutcomeOK
	)
	switch n.Kind {
	case schema.NodeText:
		err = w.Write(n.Text)
	case schema.NodeExpr:
		err = d.processExpr(ctx, n, sc, w)
	case schema.NodeAction:
		var vetoed bool
		vetoed, err = d.processAction(ctx, tpl, n, sc, w)
		if vetoed {
			outcome = telemetry.OutcomeVetoed
		}
	default:
		err = schema.NewErrorf(schema.ErrCodeValidation, "unknown node kind %q", n.Kind)
	}
	if err != nil {
		outcome = telemetry.OutcomeError
	}
	d.metrics.RecordNode(n.Kind, outcome)

	if err != nil {
		return d.locate(ctx, err, loc)
	}
	return nil
}

func (d *Driver) processNodes(ctx context.Context, tpl *schema.Template, nodes []schema.Node, sc *scope.Scope, w action.Writer) error {
	for i := range nodes {
		if err := d.ProcessNode(ctx, tpl, &nodes[i], sc, w); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) processExpr(ctx context.Context, n *schema.Node, sc *scope.Scope, w action.Writer) error {
	v, err := d.evaluator.Evaluate(ctx, n.Lang, n.Expr, sc)
	if err != nil {
		return err
	}
	return w.Write(v)
}

// processAction runs an action node through the pipeline. It reports
// vetoed=true when no action was bound during CREATION; the node then
// yields nothing.
func (d *Driver) processAction(ctx context.Context, tpl *schema.Template, n *schema.Node, sc *scope.Scope, w action.Writer) (vetoed bool, err error) {
	desc := action.Descriptor{Name: n.Action, Library: n.Library}
	ctx = logging.WithAction(ctx, desc.String())

	factory, err := d.registry.ResolveAction(desc)
	if err != nil {
		return false, err
	}

	ac := action.NewContext(d.cfg, desc, factory, sc, w)
	names := make([]string, 0, len(n.Params))
	for name := range n.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := ac.AddParameter(name, d.evaluator.Param(n.Params[name])); err != nil {
			return false, err
		}
	}

	body := &nodeBody{driver: d, tpl: tpl, nodes: n.Children}
	return d.run(ctx, ac, n.Contributions, body)
}

// run walks the three phases of ac. Contributions are resolved and applied
// one by one, in order, once the context is in CONTRIBUTION.
func (d *Driver) run(ctx context.Context, ac *action.Context, refs []schema.ContributionRef, body action.Body) (vetoed bool, err error) {
	if err := ac.SetPhase(ctx, action.PhaseContribution); err != nil {
		return false, err
	}
	for _, ref := range refs {
		cdesc := action.ContributionDescriptor{
			Name:      ref.Name,
			Library:   ref.Library,
			Parameter: d.evaluator.Param(ref.Param),
		}
		cf, err := d.registry.ResolveContribution(cdesc)
		if err != nil {
			return false, err
		}
		if err := ac.AddContribution(ctx, cdesc, cf); err != nil {
			return false, err
		}
	}

	start := d.cfg.Now()
	if err := ac.SetPhase(ctx, action.PhaseCreation); err != nil {
		return false, err
	}
	err = ac.Proceed(ctx)
	d.metrics.ObservePhase(action.PhaseCreation.String(), d.cfg.Now().Sub(start))
	if err != nil {
		return false, err
	}

	a := ac.Action()
	if a == nil {
		ac.Logger().DebugContext(ctx, "creation vetoed")
		return true, nil
	}
	a.SetBody(body)

	start = d.cfg.Now()
	if err := ac.SetPhase(ctx, action.PhaseExecution); err != nil {
		return false, err
	}
	err = ac.Proceed(ctx)
	d.metrics.ObservePhase(action.PhaseExecution.String(), d.cfg.Now().Sub(start))
	return false, err
}

// locate attaches loc to err unless an inner node already did. The first
// attachment is logged.
func (d *Driver) locate(ctx context.Context, err error, loc schema.Location) error {
	var se *schema.StencilError
	if !errors.As(err, &se) {
		se = schema.NewErrorf(schema.ErrCodeExecution, "%s", err.Error()).WithCause(err)
		err = se
	}
	if se.Location != nil {
		return err
	}
	se.WithLocation(loc)
	d.logger.WarnContext(ctx, "node failed",
		slog.String("code", se.Code),
		slog.String("location", loc.String()),
		slog.Any("error", err))
	return err
}
