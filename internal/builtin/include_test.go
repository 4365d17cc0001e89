package builtin

import (
	"testing"
	"testing/fstest"

	"github.com/rendis/stencil/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInclude(t *testing.T) {
	files := fstest.MapFS{
		"partials/header.txt": {Data: []byte("== Report ==\n")},
		"logo.bin":            {Data: []byte{0x89, 0x00, 0x01}},
		"big.txt":             {Data: []byte("0123456789")},
	}
	d := newDriver(t, Options{Files: files, MaxIncludeSize: 64})

	tests := []struct {
		name string
		node schema.Node
		want string
	}{
		{"text", act("include", map[string]schema.Param{"path": lit("partials/header.txt")}), "== Report ==\n"},
		{"dot slash", act("include", map[string]schema.Param{"path": lit("./partials/header.txt")}), "== Report ==\n"},
		{"auto binary", act("include", map[string]schema.Param{"path": lit("logo.bin")}), "iQAB"},
		{"forced base64", act("include", map[string]schema.Param{
			"path": lit("partials/header.txt"), "encoding": lit("base64"),
		}), "PT0gUmVwb3J0ID09Cg=="},
		{"function", exprNode(`read_file("partials/" + name)`), "== Report ==\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := render(t, d, map[string]any{"name": "header.txt"}, tt.node)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIncludeErrors(t *testing.T) {
	files := fstest.MapFS{"big.txt": {Data: []byte("0123456789")}}

	tests := []struct {
		name  string
		opts  Options
		param map[string]schema.Param
		code  string
	}{
		{"missing path", Options{Files: files}, nil, schema.ErrCodeValidation},
		{"escapes tree", Options{Files: files}, map[string]schema.Param{"path": lit("../etc/passwd")}, schema.ErrCodeValidation},
		{"bad encoding", Options{Files: files}, map[string]schema.Param{"path": lit("big.txt"), "encoding": lit("hex")}, schema.ErrCodeValidation},
		{"not found", Options{Files: files}, map[string]schema.Param{"path": lit("nope.txt")}, schema.ErrCodeLookup},
		{"too large", Options{Files: files, MaxIncludeSize: 4}, map[string]schema.Param{"path": lit("big.txt")}, schema.ErrCodeValidation},
		{"no tree", Options{}, map[string]schema.Param{"path": lit("big.txt")}, schema.ErrCodeExecution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDriver(t, tt.opts)
			_, err := render(t, d, nil, act("include", tt.param))
			require.Error(t, err)
			assert.Equal(t, tt.code, schema.CodeOf(err))
		})
	}
}
