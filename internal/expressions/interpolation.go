package expressions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/internal/scope"
	"github.com/rendis/stencil/pkg/schema"
)

const (
	openMarker  = "${{"
	closeMarker = "}}"
)

// segment is either literal text or an expression in the default language.
type segment struct {
	text string
	expr string
}

// HasInterpolation reports whether s contains any ${{...}} reference.
func HasInterpolation(s string) bool {
	return strings.Contains(s, openMarker)
}

// Interpolation returns a parameter that resolves every ${{ expr }} token of
// src. A src that is exactly one token keeps the type of the evaluated value;
// otherwise values are rendered inline and the result is a string.
func (ev *Evaluator) Interpolation(src string) action.Parameter {
	return &interpolation{ev: ev, src: src}
}

// Interpolate resolves src against sc. See Interpolation.
func (ev *Evaluator) Interpolate(ctx context.Context, src string, sc *scope.Scope) (any, error) {
	segs, err := split(src)
	if err != nil {
		return nil, err
	}

	if len(segs) == 1 && segs[0].expr != "" {
		return ev.Evaluate(ctx, "", segs[0].expr, sc)
	}

	var b strings.Builder
	b.Grow(len(src))
	for _, seg := range segs {
		if seg.expr == "" {
			b.WriteString(seg.text)
			continue
		}
		val, err := ev.Evaluate(ctx, "", seg.expr, sc)
		if err != nil {
			return nil, err
		}
		b.WriteString(inline(val))
	}
	return b.String(), nil
}

type interpolation struct {
	ev  *Evaluator
	src string
}

func (p *interpolation) Text() (string, bool) { return p.src, !HasInterpolation(p.src) }

func (p *interpolation) Value(ctx context.Context, sc *scope.Scope) (any, error) {
	return p.ev.Interpolate(ctx, p.src, sc)
}

// split scans src for ${{...}} tokens.
func split(src string) ([]segment, error) {
	var segs []segment
	i := 0
	for i < len(src) {
		idx := strings.Index(src[i:], openMarker)
		if idx == -1 {
			segs = append(segs, segment{text: src[i:]})
			break
		}
		if idx > 0 {
			segs = append(segs, segment{text: src[i : i+idx]})
		}
		start := i + idx + len(openMarker)

		end := strings.Index(src[start:], closeMarker)
		if end == -1 {
			return nil, schema.NewError(schema.ErrCodeEvaluation, "unclosed ${{ expression").
				WithDetails(map[string]any{"source": src})
		}
		end += start

		expr := strings.TrimSpace(src[start:end])
		if strings.Contains(expr, openMarker) {
			return nil, schema.NewError(schema.ErrCodeEvaluation,
				"nested interpolation not allowed: ${{...}} cannot contain ${{")
		}
		if expr == "" {
			return nil, schema.NewError(schema.ErrCodeEvaluation, "empty expression: ${{  }}")
		}
		segs = append(segs, segment{expr: expr})

		i = end + len(closeMarker)
	}
	return segs, nil
}

// inline converts a resolved value into its inline text representation.
// Strings are embedded as-is; maps and slices are JSON-encoded.
func inline(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return fmt.Sprintf("%v", v)
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case fmt.Stringer:
		return v.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
