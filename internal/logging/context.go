package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	renderIDKey ctxKey = iota
	templateKey
	actionKey
)

// WithRenderID returns a context with the render ID set.
func WithRenderID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, renderIDKey, id)
}

// WithTemplate returns a context with the template name set.
func WithTemplate(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, templateKey, name)
}

// WithAction returns a context with the action being processed set.
func WithAction(ctx context.Context, action string) context.Context {
	return context.WithValue(ctx, actionKey, action)
}

// RenderID extracts the render ID from the context, or "" if absent.
func RenderID(ctx context.Context) string {
	v, _ := ctx.Value(renderIDKey).(string)
	return v
}

// Template extracts the template name from the context, or "" if absent.
func Template(ctx context.Context) string {
	v, _ := ctx.Value(templateKey).(string)
	return v
}

// Action extracts the action from the context, or "" if absent.
func Action(ctx context.Context) string {
	v, _ := ctx.Value(actionKey).(string)
	return v
}

// LogWith returns a logger enriched with correlation values from the context.
// Only non-empty values are added as attributes.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	for _, a := range attrs(ctx) {
		logger = logger.With(a)
	}
	return logger
}

func attrs(ctx context.Context) []slog.Attr {
	var out []slog.Attr
	if v := RenderID(ctx); v != "" {
		out = append(out, slog.String("render_id", v))
	}
	if v := Template(ctx); v != "" {
		out = append(out, slog.String("template", v))
	}
	if v := Action(ctx); v != "" {
		out = append(out, slog.String("node_action", v))
	}
	return out
}

// CorrelationHandler wraps an slog.Handler, automatically injecting
// correlation values from the context into every log record.
// Use with slog.New(NewCorrelationHandler(inner)) so callers can use
// logger.InfoContext(ctx, ...) and IDs appear automatically.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with automatic correlation injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(attrs(ctx)...)
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
