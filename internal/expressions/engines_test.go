package expressions

import (
	"context"
	"sync"
	"testing"

	"github.com/rendis/stencil/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Expr ---

func TestNewExprEngine(t *testing.T) {
	e := NewExprEngine()
	assert.NotNil(t, e)
	assert.Equal(t, "expr", e.Name())
	assert.True(t, e.AcceptsFunctions())
}

func TestExpr_Evaluate(t *testing.T) {
	e := NewExprEngine()
	data := map[string]any{
		"a":     10,
		"b":     3,
		"name":  "ada",
		"items": []any{1, 2, 3},
		"user":  map[string]any{"city": "Lima"},
	}

	tests := []struct {
		name string
		expr string
		want any
	}{
		{"integer literal", "42", 42},
		{"addition", "a + b", 13},
		{"comparison", "a > b", true},
		{"string concat", `name + "!"`, "ada!"},
		{"member access", "user.city", "Lima"},
		{"nil coalescing", `missing ?? "fallback"`, "fallback"},
		{"array builtin", "len(items)", 3},
		{"let binding", "let x = a * 2; x + 1", 21},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Evaluate(context.Background(), tt.expr, data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestExpr_CallsEnvironmentFunctions(t *testing.T) {
	e := NewExprEngine()
	data := map[string]any{
		"twice": func(args ...any) (any, error) {
			return args[0].(int) * 2, nil
		},
	}

	out, err := e.Evaluate(context.Background(), "twice(21)", data)
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}

func TestExpr_Errors(t *testing.T) {
	e := NewExprEngine()

	t.Run("empty", func(t *testing.T) {
		_, err := e.Evaluate(context.Background(), "", nil)
		require.Error(t, err)
		assert.Equal(t, schema.ErrCodeEvaluation, schema.CodeOf(err))
	})

	t.Run("compile error", func(t *testing.T) {
		_, err := e.Evaluate(context.Background(), "a +", map[string]any{"a": 1})
		require.Error(t, err)
		assert.Equal(t, schema.ErrCodeEvaluation, schema.CodeOf(err))
	})
}

func TestExpr_ProgramCaching(t *testing.T) {
	e := NewExprEngine()

	_, err := e.Evaluate(context.Background(), "a + 1", map[string]any{"a": 1})
	require.NoError(t, err)
	out, err := e.Evaluate(context.Background(), "a + 1", map[string]any{"a": 5})
	require.NoError(t, err)
	assert.Equal(t, 6, out)

	e.mu.RLock()
	assert.Len(t, e.cache, 1)
	e.mu.RUnlock()
}

func TestExpr_Concurrent(t *testing.T) {
	e := NewExprEngine()

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			out, err := e.Evaluate(context.Background(), "n * 2", map[string]any{"n": n})
			if err != nil {
				errs <- err
				return
			}
			if out != n*2 {
				errs <- assert.AnError
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

// --- CEL ---

func TestNewCELEngine(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	assert.Equal(t, "cel", e.Name())
}

func TestCEL_Evaluate(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	data := map[string]any{
		"count":    5,
		"name":     "ada",
		"tags":     []any{"a", "b"},
		"implicit": map[string]any{"locale": "es"},
	}

	tests := []struct {
		name string
		expr string
		want any
	}{
		{"boolean literal", "true", true},
		{"arithmetic", "1 + 2", int64(3)},
		{"vars access", "vars.count > 3", true},
		{"string function", `vars.name.startsWith("ad")`, true},
		{"list size", "size(vars.tags) == 2", true},
		{"implicit access", `implicit.locale == "es"`, true},
		{"has macro", "has(vars.missing)", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Evaluate(context.Background(), tt.expr, data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCEL_Errors(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"syntax", "1 +"},
		{"undeclared variable", "steps.x"},
		{"missing key", "vars.nope == 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Evaluate(context.Background(), tt.expr, map[string]any{})
			require.Error(t, err)
			assert.Equal(t, schema.ErrCodeEvaluation, schema.CodeOf(err))
		})
	}
}

func TestCEL_NilData(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	out, err := e.Evaluate(context.Background(), "size(vars) == 0", nil)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

// --- GoJQ ---

func TestNewGoJQEngine(t *testing.T) {
	e := NewGoJQEngine()
	assert.Equal(t, "jq", e.Name())
}

func TestGoJQ_Evaluate(t *testing.T) {
	e := NewGoJQEngine()
	data := map[string]any{
		"user":  map[string]any{"name": "ada"},
		"n":     int64(2),
		"items": []any{map[string]any{"v": 1}, map[string]any{"v": 2}},
	}

	tests := []struct {
		name string
		expr string
		want any
	}{
		{"path", ".user.name", "ada"},
		{"normalized int64", ".n * 2", float64(4)},
		{"map", "[.items[].v]", []any{1, 2}},
		{"multiple outputs", ".items[].v", []any{1, 2}},
		{"no output", "empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Evaluate(context.Background(), tt.expr, data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestGoJQ_EvaluateAll(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.EvaluateAll(context.Background(), ".a", map[string]any{"a": "x"})
	require.NoError(t, err)
	assert.Equal(t, []any{"x"}, out)
}

func TestGoJQ_Errors(t *testing.T) {
	e := NewGoJQEngine()

	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"parse", ".a |"},
		{"runtime", `error("boom")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Evaluate(context.Background(), tt.expr, map[string]any{})
			require.Error(t, err)
			assert.Equal(t, schema.ErrCodeEvaluation, schema.CodeOf(err))
		})
	}
}
