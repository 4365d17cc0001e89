package expressions

import "context"

// Engine evaluates expressions against a flat variable environment.
// Three implementations: Expr (default, can call library functions),
// CEL (typed conditions) and GoJQ (data reshaping).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
