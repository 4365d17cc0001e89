package action

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewTextWriter(&buf)

	require.NoError(t, w.Write("a"))
	require.NoError(t, w.Write(nil))
	require.NoError(t, w.Write(12))
	require.NoError(t, w.Write([]byte("b")))
	require.NoError(t, w.Write([]any{"c", 3}))

	assert.Equal(t, "a12bc3", buf.String())
}

func TestCaptureWriter_Result(t *testing.T) {
	c := NewCaptureWriter()
	_, ok := c.Result()
	assert.False(t, ok)

	require.NoError(t, c.Write(1))
	v, ok := c.Result()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	require.NoError(t, c.Write("two"))
	v, ok = c.Result()
	require.True(t, ok)
	assert.Equal(t, []any{1, "two"}, v)
	assert.Equal(t, "1two", c.String())
	assert.Equal(t, 2, c.Len())
}
