package action

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cast"
)

// Writer is an append-only sink of rendered values. The pipeline never
// inspects what was written; it only swaps the sink reference.
type Writer interface {
	Write(v any) error
}

// WriterFunc adapts a function to the Writer interface.
type WriterFunc func(v any) error

func (f WriterFunc) Write(v any) error { return f(v) }

// TextWriter renders every value as text onto an io.Writer.
type TextWriter struct {
	out io.Writer
}

// NewTextWriter wraps out.
func NewTextWriter(out io.Writer) *TextWriter {
	return &TextWriter{out: out}
}

// Write renders v. Nil values render as nothing.
func (w *TextWriter) Write(v any) error {
	if v == nil {
		return nil
	}
	_, err := io.WriteString(w.out, Text(v))
	return err
}

// Text renders a value the way TextWriter does.
func Text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = Text(item)
		}
		return strings.Join(parts, "")
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}

// CaptureWriter records every value written to it, in order.
type CaptureWriter struct {
	values []any
}

// NewCaptureWriter returns an empty CaptureWriter.
func NewCaptureWriter() *CaptureWriter {
	return &CaptureWriter{}
}

func (c *CaptureWriter) Write(v any) error {
	c.values = append(c.values, v)
	return nil
}

// Values returns the recorded values.
func (c *CaptureWriter) Values() []any { return c.values }

// Len returns the number of recorded values.
func (c *CaptureWriter) Len() int { return len(c.values) }

// String concatenates the text rendering of every recorded value.
func (c *CaptureWriter) String() string {
	var b strings.Builder
	for _, v := range c.values {
		b.WriteString(Text(v))
	}
	return b.String()
}

// Result returns the single recorded value, or all of them as a []any when
// more than one was written. ok is false when nothing was written.
func (c *CaptureWriter) Result() (v any, ok bool) {
	switch len(c.values) {
	case 0:
		return nil, false
	case 1:
		return c.values[0], true
	default:
		out := make([]any, len(c.values))
		copy(out, c.values)
		return out, true
	}
}
