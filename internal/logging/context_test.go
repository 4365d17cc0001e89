package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	// Initially empty.
	assert.Equal(t, "", RenderID(ctx))
	assert.Equal(t, "", Template(ctx))
	assert.Equal(t, "", Action(ctx))

	ctx = WithRenderID(ctx, "r-123")
	ctx = WithTemplate(ctx, "invoice")
	ctx = WithAction(ctx, "c:each")

	assert.Equal(t, "r-123", RenderID(ctx))
	assert.Equal(t, "invoice", Template(ctx))
	assert.Equal(t, "c:each", Action(ctx))
}

func TestLogWith(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := WithRenderID(context.Background(), "r-abc")
	ctx = WithTemplate(ctx, "greeting")

	LogWith(ctx, logger).Info("test message")

	output := buf.String()
	assert.Contains(t, output, "render_id=r-abc")
	assert.Contains(t, output, "template=greeting")
	assert.NotContains(t, output, "node_action=")
	assert.Contains(t, output, "test message")
}

func TestCorrelationHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewTextHandler(&buf, nil)))

	ctx := WithAction(WithRenderID(context.Background(), "r-1"), "c:out")
	logger.With("k", "v").InfoContext(ctx, "hello")

	output := buf.String()
	assert.Contains(t, output, "render_id=r-1")
	assert.Contains(t, output, "node_action=c:out")
	assert.Contains(t, output, "k=v")
}

func TestCorrelationHandler_NoValues(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewTextHandler(&buf, nil)))

	logger.InfoContext(context.Background(), "plain")
	assert.NotContains(t, buf.String(), "render_id")
}
