package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greetingTemplate = `
name: greeting
nodes:
  - kind: text
    text: "Hello, "
  - kind: action
    action: upper
    params:
      value:
        expr: user
  - kind: text
    text: "!\n"
`

const countTemplate = `
nodes:
  - kind: action
    action: out
    params:
      value:
        expr: count * 2
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	cfg := defaultConfig()
	cfg.LogLevel = "error"
	a, err := buildApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.close)
	return a
}

func TestRenderFiles(t *testing.T) {
	dir := t.TempDir()
	greeting := writeFile(t, dir, "greeting.yaml", greetingTemplate)
	count := writeFile(t, dir, "count.yaml", countTemplate)
	data := writeFile(t, dir, "data.json", `{"user": "ada", "count": 1}`)

	a := newTestApp(t)

	t.Run("single", func(t *testing.T) {
		var buf bytes.Buffer
		err := a.renderFiles(context.Background(), []string{greeting}, renderOptions{dataPath: data}, &buf)
		require.NoError(t, err)
		assert.Equal(t, "Hello, ADA!\n", buf.String())
	})

	t.Run("set overrides data", func(t *testing.T) {
		var buf bytes.Buffer
		opts := renderOptions{dataPath: data, sets: map[string]any{"count": 21}}
		err := a.renderFiles(context.Background(), []string{count}, opts, &buf)
		require.NoError(t, err)
		assert.Equal(t, "42", buf.String())
	})

	t.Run("several in order", func(t *testing.T) {
		var buf bytes.Buffer
		err := a.renderFiles(context.Background(), []string{greeting, count, greeting}, renderOptions{dataPath: data}, &buf)
		require.NoError(t, err)
		assert.Equal(t, "Hello, ADA!\n2Hello, ADA!\n", buf.String())
	})
}

func TestRenderFilesErrors(t *testing.T) {
	dir := t.TempDir()
	invalid := writeFile(t, dir, "invalid.yaml", "nodes:\n  - kind: action\n    action: nope\n")
	failing := writeFile(t, dir, "failing.yaml", "nodes:\n  - kind: action\n    action: if\n")
	ok := writeFile(t, dir, "ok.yaml", "nodes:\n  - kind: text\n    text: ok\n")

	a := newTestApp(t)

	tests := []struct {
		name     string
		paths    []string
		contains string
	}{
		{"missing file", []string{filepath.Join(dir, "missing.yaml")}, "read template"},
		{"invalid template", []string{invalid}, "invalid.yaml"},
		{"render failure", []string{failing}, `missing required parameter "test"`},
		{"batch failure", []string{ok, failing}, "1 of 2 templates failed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := a.renderFiles(context.Background(), tc.paths, renderOptions{}, &buf)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}

func TestRenderCommand(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	greeting := writeFile(t, dir, "greeting.yaml", greetingTemplate)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"render", greeting, "--set", "user=grace", "--log-level", "error"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Equal(t, "Hello, GRACE!\n", out.String())
}

func TestRenderInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "footer.txt", "-- footer --")
	tpl := writeFile(t, dir, "page.yaml", "nodes:\n  - kind: text\n    text: \"body\\n\"\n  - kind: action\n    action: include\n    params:\n      path: footer.txt\n")

	cfg := defaultConfig()
	cfg.LogLevel = "error"
	cfg.IncludeDir = dir
	a, err := buildApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.close)

	var buf bytes.Buffer
	require.NoError(t, a.renderFiles(context.Background(), []string{tpl}, renderOptions{}, &buf))
	assert.Equal(t, "body\n-- footer --", buf.String())
}
