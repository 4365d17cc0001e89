package expressions

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/internal/scope"
	"github.com/rendis/stencil/pkg/schema"
)

// DefaultLanguage is the language used when a parameter does not name one.
const DefaultLanguage = "expr"

// FunctionBinder adds callable library functions to an evaluation
// environment. Implementations must not overwrite existing keys, so scope
// variables always win over functions of the same name.
type FunctionBinder interface {
	BindFunctions(ctx context.Context, sc *scope.Scope, env map[string]any)
}

// functionEngine is implemented by engines that can call Go functions found
// in their environment.
type functionEngine interface {
	AcceptsFunctions() bool
}

// AcceptsFunctions reports that expr programs may call bound functions.
func (e *ExprEngine) AcceptsFunctions() bool { return true }

// Evaluator routes expressions to the engine registered for their language
// and builds the environment from a data-scope.
type Evaluator struct {
	defaultLang string
	engines     map[string]Engine

	mu     sync.RWMutex
	binder FunctionBinder
}

// NewEvaluator creates an Evaluator over the given engines. An empty
// defaultLang falls back to DefaultLanguage.
func NewEvaluator(defaultLang string, engines ...Engine) *Evaluator {
	if defaultLang == "" {
		defaultLang = DefaultLanguage
	}
	ev := &Evaluator{
		defaultLang: defaultLang,
		engines:     make(map[string]Engine, len(engines)),
	}
	for _, e := range engines {
		ev.engines[e.Name()] = e
	}
	return ev
}

// NewDefaultEvaluator creates an Evaluator with the expr, cel and jq engines.
func NewDefaultEvaluator(defaultLang string) (*Evaluator, error) {
	celEngine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	return NewEvaluator(defaultLang, NewExprEngine(), celEngine, NewGoJQEngine()), nil
}

// SetFunctions installs the binder consulted by engines that can call functions.
func (ev *Evaluator) SetFunctions(b FunctionBinder) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	ev.binder = b
}

// DefaultLanguage returns the language used for parameters that name none.
func (ev *Evaluator) DefaultLanguage() string { return ev.defaultLang }

// Languages returns the registered language names, sorted.
func (ev *Evaluator) Languages() []string {
	out := make([]string, 0, len(ev.engines))
	for name := range ev.engines {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Evaluate runs expression in lang against the variables visible from sc.
func (ev *Evaluator) Evaluate(ctx context.Context, lang, expression string, sc *scope.Scope) (any, error) {
	if lang == "" {
		lang = ev.defaultLang
	}
	engine, ok := ev.engines[lang]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeLookup,
			"unknown expression language %q; available: %s", lang, strings.Join(ev.Languages(), ", ")).
			WithDetails(map[string]any{"language": lang, "available": ev.Languages()})
	}

	env := map[string]any{}
	if sc != nil {
		env = sc.Env()
	}

	if fe, ok := engine.(functionEngine); ok && fe.AcceptsFunctions() {
		ev.mu.RLock()
		binder := ev.binder
		ev.mu.RUnlock()
		if binder != nil {
			binder.BindFunctions(ctx, sc, env)
		}
	}

	return engine.Evaluate(ctx, expression, env)
}

// Parameter returns a deferred parameter that evaluates src in lang.
func (ev *Evaluator) Parameter(lang, src string) action.Parameter {
	return &exprParam{ev: ev, lang: lang, src: src}
}

// Param converts a parsed template parameter into an action.Parameter.
// Expression parameters are deferred, string literals containing ${{ }}
// become interpolations and everything else is a literal.
func (ev *Evaluator) Param(p schema.Param) action.Parameter {
	if p.IsExpr() {
		return ev.Parameter(p.Lang, p.Expr)
	}
	if s, ok := p.Value.(string); ok && HasInterpolation(s) {
		return ev.Interpolation(s)
	}
	return action.Literal(p.Value)
}

type exprParam struct {
	ev   *Evaluator
	lang string
	src  string
}

func (p *exprParam) Text() (string, bool) { return "", false }

func (p *exprParam) Value(ctx context.Context, sc *scope.Scope) (any, error) {
	return p.ev.Evaluate(ctx, p.lang, p.src, sc)
}

func (p *exprParam) String() string {
	if p.lang == "" {
		return p.src
	}
	return p.lang + ":" + p.src
}
