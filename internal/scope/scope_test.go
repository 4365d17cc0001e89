package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CopiesInput(t *testing.T) {
	data := map[string]any{"user": map[string]any{"name": "ana"}}
	s := New(data)

	data["user"].(map[string]any)["name"] = "bob"

	v, ok := s.FindVariable("user.name")
	require.True(t, ok)
	assert.Equal(t, "ana", v)
	assert.Equal(t, GlobalName, s.Name())
}

func TestFindVariable_WalksParents(t *testing.T) {
	root := New(map[string]any{"a": 1, "b": 2})
	child := root.Child("loop")
	child.Set("b", 20)

	v, ok := child.FindVariable("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = child.FindVariable("b")
	require.True(t, ok)
	assert.Equal(t, 20, v)

	v, _ = root.FindVariable("b")
	assert.Equal(t, 2, v, "child writes must not leak to the parent")

	_, ok = child.FindVariable("missing")
	assert.False(t, ok)
}

func TestFindVariable_DottedPaths(t *testing.T) {
	s := New(map[string]any{
		"order": map[string]any{
			"items": []any{
				map[string]any{"sku": "A-1"},
				map[string]any{"sku": "B-2"},
			},
		},
		"plain.key": "literal",
	})

	tests := []struct {
		path string
		want any
		ok   bool
	}{
		{"order.items.1.sku", "B-2", true},
		{"order.items.0.sku", "A-1", true},
		{"order.items.7.sku", nil, false},
		{"order.items.x", nil, false},
		{"order.total", nil, false},
		{"plain.key", "literal", true},
		{"", nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			got, ok := s.FindVariable(tc.path)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNamed(t *testing.T) {
	root := New(nil)
	block := root.Child("block")
	inner := block.Child("")

	f, ok := inner.Named("block")
	require.True(t, ok)
	assert.Same(t, block, f)
	assert.Equal(t, LocalName, inner.Name())
	assert.Same(t, root, inner.Root())

	_, ok = inner.Named("nope")
	assert.False(t, ok)
}

func TestSwap_RestoresPreviousState(t *testing.T) {
	s := New(map[string]any{"x": "before"})

	restore := s.Swap("x", "during")
	v, _ := s.FindVariable("x")
	assert.Equal(t, "during", v)
	restore()
	v, _ = s.FindVariable("x")
	assert.Equal(t, "before", v)

	restore = s.Swap("y", 1)
	restore()
	_, ok := s.FindVariable("y")
	assert.False(t, ok, "swap of an absent variable must delete it on restore")
}

func TestImplicitObjects(t *testing.T) {
	root := New(nil)
	root.SetImplicitObject("locale", "en")
	child := root.Child("")

	v, ok := child.ImplicitObject("locale")
	require.True(t, ok)
	assert.Equal(t, "en", v)

	restore := child.SwapImplicitObject("locale", "pt-BR")
	v, _ = child.ImplicitObject("locale")
	assert.Equal(t, "pt-BR", v)
	v, _ = root.ImplicitObject("locale")
	assert.Equal(t, "en", v)

	restore()
	v, _ = child.ImplicitObject("locale")
	assert.Equal(t, "en", v)
}

func TestEnv_InnerShadowsOuter(t *testing.T) {
	root := New(map[string]any{"a": 1, "b": 2})
	root.SetImplicitObject("locale", "en")
	child := root.Child("")
	child.Set("b", 3)
	child.SetImplicitObject("now", "t0")

	env := child.Env()
	assert.Equal(t, 1, env["a"])
	assert.Equal(t, 3, env["b"])
	assert.Equal(t, map[string]any{"locale": "en", "now": "t0"}, env[ImplicitKey])
}

func TestEnv_VariableShadowsImplicitKey(t *testing.T) {
	s := New(map[string]any{ImplicitKey: "mine"})
	s.SetImplicitObject("locale", "en")
	assert.Equal(t, "mine", s.Env()[ImplicitKey])
}
