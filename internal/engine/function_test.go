package engine

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rendis/stencil/internal/library"
	"github.com/rendis/stencil/internal/scope"
	"github.com/rendis/stencil/internal/telemetry"
	"github.com/rendis/stencil/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall(t *testing.T) {
	d, _ := newTestDriver(t, Options{})
	ctx := context.Background()

	fn, err := d.Registry().ResolveFunction("emit")
	require.NoError(t, err)
	assert.Equal(t, "t", fn.Library)

	t.Run("single value", func(t *testing.T) {
		got, err := d.Call(ctx, fn, []any{"x"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "x", got)
	})

	t.Run("typed value is preserved", func(t *testing.T) {
		got, err := d.Call(ctx, fn, []any{map[string]any{"a": 1}}, nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": 1}, got)
	})

	t.Run("too many arguments", func(t *testing.T) {
		_, err := d.Call(ctx, fn, []any{"x", "y"}, nil)
		assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
	})

	t.Run("nothing written", func(t *testing.T) {
		silent, err := d.Registry().ResolveFunction("silent")
		require.NoError(t, err)
		_, err = d.Call(ctx, silent, []any{1}, nil)
		require.Error(t, err)
		assert.Equal(t, schema.ErrCodeContract, schema.CodeOf(err))
		assert.Contains(t, err.Error(), "nothing was written by action t:repeat")
	})
}

func TestCallNamed(t *testing.T) {
	d, _ := newTestDriver(t, Options{})
	ctx := context.Background()

	got, err := d.CallNamed(ctx, "upcase", map[string]any{"value": "abc"}, scope.New(nil))
	require.NoError(t, err)
	assert.Equal(t, "ABC", got)

	_, err = d.CallNamed(ctx, "nope", nil, nil)
	assert.Equal(t, schema.ErrCodeLookup, schema.CodeOf(err))
}

func TestCall_MultipleValues(t *testing.T) {
	d, _ := newTestDriver(t, Options{})

	got, err := d.CallNamed(context.Background(), "next_run", map[string]any{
		"spec":   "@daily",
		"from":   "2026-01-01T12:00:00Z",
		"count":  2,
		"format": "date",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"2026-01-02", "2026-01-03"}, got)
}

func TestBindFunctions(t *testing.T) {
	d, _ := newTestDriver(t, Options{})

	env := map[string]any{"emit": "taken"}
	d.BindFunctions(context.Background(), scope.New(nil), env)

	assert.Equal(t, "taken", env["emit"])
	require.Contains(t, env, "upcase")

	call, ok := env["upcase"].(func(args ...any) (any, error))
	require.True(t, ok)
	got, err := call("hi")
	require.NoError(t, err)
	assert.Equal(t, "HI", got)
}

func TestFunctionFromExpression(t *testing.T) {
	d, _ := newTestDriver(t, Options{})

	got, err := renderNodes(t, d, map[string]any{"who": "ada"}, exprNode(`emit("hello " + who)`))
	require.NoError(t, err)
	assert.Equal(t, "hello ada", got)

	_, err = renderNodes(t, d, nil, exprNode(`silent(0)`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing was written")
}

func TestFunctionMetrics(t *testing.T) {
	m := telemetry.New(telemetry.Config{Enabled: true})
	d, _ := newTestDriver(t, Options{Metrics: m})
	fn := library.Function{Library: "t", FunctionDecl: library.FunctionDecl{Name: "emit", Action: "emit", Args: []string{"value"}}}

	_, err := d.Call(context.Background(), fn, []any{"x"}, nil)
	require.NoError(t, err)
	_, err = d.Call(context.Background(), fn, []any{"x", "y"}, nil)
	require.Error(t, err)

	n, err := testutil.GatherAndCount(m.Registry(), "stencil_function_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "ok and error series")
}
