package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/rendis/stencil/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func greetingTemplate(name string) *schema.Template {
	return &schema.Template{
		Name: name,
		Nodes: []schema.Node{
			textNode("hello "),
			exprNode("who"),
		},
	}
}

func TestRenderAll(t *testing.T) {
	d, _ := newTestDriver(t, Options{})

	jobs := make([]Job, 20)
	for i := range jobs {
		jobs[i] = Job{
			Template: greetingTemplate(fmt.Sprintf("t%d", i)),
			Vars:     map[string]any{"who": fmt.Sprintf("user-%d", i)},
		}
	}

	results, err := d.RenderAll(context.Background(), jobs, 4)
	require.NoError(t, err)
	require.Len(t, results, len(jobs))
	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, fmt.Sprintf("t%d", i), r.Template)
		assert.Equal(t, fmt.Sprintf("hello user-%d", i), string(r.Output))
	}
}

func TestBatch_FailuresAndPanics(t *testing.T) {
	d, _ := newTestDriver(t, Options{})
	b := d.NewBatch(2)

	ok := Job{Template: greetingTemplate("ok"), Vars: map[string]any{"who": "x"}}
	failing := Job{Template: &schema.Template{Name: "fail", Nodes: []schema.Node{
		textNode("partial"),
		testNode("fail", 1, nil, nil),
	}}}
	panicking := Job{Template: &schema.Template{Name: "panic", Nodes: []schema.Node{
		testNode("explode", 1, nil, nil),
	}}}

	var rOK, rFail, rPanic Result
	ctx := context.Background()
	require.NoError(t, b.Submit(ctx, ok, &rOK))
	require.NoError(t, b.Submit(ctx, failing, &rFail))
	require.NoError(t, b.Submit(ctx, panicking, &rPanic))
	b.Wait()

	assert.NoError(t, rOK.Err)

	require.Error(t, rFail.Err)
	assert.Equal(t, "partial", string(rFail.Output))

	require.Error(t, rPanic.Err)
	assert.Equal(t, schema.ErrCodeExecution, schema.CodeOf(rPanic.Err))
	assert.Contains(t, rPanic.Err.Error(), "kaboom")

	m := b.Metrics()
	assert.Equal(t, int64(0), m.Active)
	assert.Equal(t, int64(1), m.Completed)
	assert.Equal(t, int64(2), m.Failed)
	assert.Equal(t, int64(1), m.Panics)

	b.Close()
	assert.ErrorIs(t, b.Submit(ctx, ok, &Result{}), ErrBatchClosed)
}

func TestBatch_CanceledContext(t *testing.T) {
	d, _ := newTestDriver(t, Options{})
	b := d.NewBatch(1)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Fill the single slot first so Submit has to wait.
	b.sem <- struct{}{}
	defer func() { <-b.sem }()

	err := b.Submit(ctx, Job{Template: greetingTemplate("x")}, &Result{})
	assert.ErrorIs(t, err, context.Canceled)
}
