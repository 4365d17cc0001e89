package validation

import (
	"testing"

	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLookup struct {
	actions       map[string]bool
	contributions map[string]bool
}

func (l stubLookup) HasAction(desc action.Descriptor) bool {
	return l.actions[desc.String()]
}

func (l stubLookup) HasContribution(desc action.ContributionDescriptor) bool {
	return l.contributions[desc.String()]
}

func newTemplateValidator(t *testing.T) *TemplateValidator {
	t.Helper()
	lookup := stubLookup{
		actions:       map[string]bool{"out": true, "each": true, "if": true},
		contributions: map[string]bool{"when": true, "format": true},
	}
	tv, err := NewTemplateValidator(lookup, []string{"cel", "expr", "jq"})
	require.NoError(t, err)
	return tv
}

const greetingYAML = `name: greeting
nodes:
  - kind: text
    text: "Hello "
  - kind: action
    action: each
    params:
      items: [a, b]
      var: name
    contributions:
      - name: when
        param:
          expr: "size(vars.names) > 0"
          lang: cel
    children:
      - kind: expr
        expr: name
`

func TestLoad(t *testing.T) {
	tv := newTemplateValidator(t)

	tpl, result, err := tv.Load("fallback", []byte(greetingYAML))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Valid())

	assert.Equal(t, "greeting", tpl.Name)
	require.Len(t, tpl.Nodes, 2)

	text := tpl.Nodes[0]
	assert.Equal(t, schema.NodeText, text.Kind)
	assert.Equal(t, "Hello ", text.Text)
	assert.Equal(t, 3, text.Line)

	each := tpl.Nodes[1]
	assert.Equal(t, "each", each.Action)
	assert.Equal(t, 5, each.Line)
	assert.Equal(t, []any{"a", "b"}, each.Params["items"].Value)
	assert.Equal(t, "name", each.Params["var"].Value)
	assert.False(t, each.Params["items"].IsExpr())

	require.Len(t, each.Contributions, 1)
	when := each.Contributions[0]
	assert.Equal(t, "when", when.Name)
	assert.Equal(t, "size(vars.names) > 0", when.Param.Expr)
	assert.Equal(t, "cel", when.Param.Lang)

	require.Len(t, each.Children, 1)
	assert.Equal(t, "name", each.Children[0].Expr)
	assert.Equal(t, 16, each.Children[0].Line)
}

func TestLoadJSON(t *testing.T) {
	tv := newTemplateValidator(t)
	src := `{"nodes": [{"kind": "action", "action": "out", "line": 7, "params": {"value": {"expr": "1 + 2"}}}]}`

	tpl, _, err := tv.Load("inline", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, "inline", tpl.Name)
	require.Len(t, tpl.Nodes, 1)
	assert.Equal(t, 7, tpl.Nodes[0].Line)
	assert.Equal(t, "1 + 2", tpl.Nodes[0].Params["value"].Expr)
}

func TestLoadLiteralMapParam(t *testing.T) {
	tv := newTemplateValidator(t)
	src := `nodes:
  - kind: action
    action: out
    params:
      value: {a: 1, b: 2}
`
	tpl, _, err := tv.Load("t", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, tpl.Nodes[0].Params["value"].Value)
}

func TestLoadErrors(t *testing.T) {
	tv := newTemplateValidator(t)

	tests := []struct {
		name     string
		src      string
		wantCode string
		wantMsg  string
	}{
		{
			name:     "malformed yaml",
			src:      "nodes: [",
			wantCode: schema.ErrCodeValidation,
		},
		{
			name:     "structural",
			src:      "nodes:\n  - kind: nope\n",
			wantCode: schema.ErrCodeValidation,
		},
		{
			name:     "unknown action",
			src:      "nodes:\n  - kind: action\n    action: missing\n",
			wantCode: schema.ErrCodeValidation,
			wantMsg:  `action "missing" not registered`,
		},
		{
			name:     "unknown contribution",
			src:      "nodes:\n  - kind: action\n    action: out\n    contributions:\n      - name: bogus\n",
			wantCode: schema.ErrCodeValidation,
			wantMsg:  `contribution "bogus" not registered`,
		},
		{
			name:     "unknown language",
			src:      "nodes:\n  - kind: expr\n    expr: x\n    lang: lua\n",
			wantCode: schema.ErrCodeValidation,
			wantMsg:  `unknown expression language "lua"`,
		},
		{
			name:     "children on text",
			src:      "nodes:\n  - kind: text\n    text: x\n    children:\n      - kind: text\n        text: y\n",
			wantCode: schema.ErrCodeValidation,
			wantMsg:  "text nodes cannot have children",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl, result, err := tv.Load("t", []byte(tt.src))
			require.Error(t, err)
			assert.Nil(t, tpl)
			require.NotNil(t, result)
			assert.False(t, result.Valid())
			assert.Equal(t, tt.wantCode, schema.CodeOf(err))
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	tv := newTemplateValidator(t)
	tpl := &schema.Template{
		Name: "w",
		Nodes: []schema.Node{
			{Kind: schema.NodeText, Text: "hi ${{ name }}"},
			{
				Kind:   schema.NodeAction,
				Action: "out",
				Params: map[string]schema.Param{
					"value": {Expr: "name", Value: "ignored"},
				},
			},
		},
	}

	result := tv.Validate(tpl)
	assert.True(t, result.Valid())
	assert.Len(t, result.Warnings, 2)
}

func TestValidateWithoutLookup(t *testing.T) {
	tv, err := NewTemplateValidator(nil, nil)
	require.NoError(t, err)

	result := tv.Validate(&schema.Template{Nodes: []schema.Node{
		{Kind: schema.NodeAction, Action: "anything", Library: "x"},
		{Kind: schema.NodeExpr, Expr: "1", Lang: "lua"},
	}})
	assert.True(t, result.Valid())

	result = tv.Validate(&schema.Template{Name: "empty"})
	assert.True(t, result.Valid())

	result = tv.Validate(nil)
	assert.False(t, result.Valid())
}
