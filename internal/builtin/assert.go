package builtin

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/internal/validation"
	"github.com/rendis/stencil/pkg/schema"
)

// assert fails the render unless value satisfies its check. With schema the
// value is validated as JSON; with equals it must deep-equal that value;
// otherwise it must be truthy. It writes nothing.
func assertFactory(opts Options) action.Factory {
	return &factory{name: "assert", create: func(ctx context.Context, params action.Params) (action.Action, error) {
		value, err := params.Value(ctx, "value")
		if err != nil {
			return nil, err
		}
		message, err := params.String(ctx, "message", "")
		if err != nil {
			return nil, err
		}

		switch {
		case params.Has("schema"):
			doc, err := params.Value(ctx, "schema")
			if err != nil {
				return nil, err
			}
			v := opts.Validator
			if v == nil {
				if v, err = validation.NewSchemaValidator(); err != nil {
					return nil, err
				}
			}
			if err := v.ValidateValue(value, doc); err != nil {
				if message == "" {
					return nil, err
				}
				return nil, schema.NewError(schema.ErrCodeValidation, message).WithCause(err)
			}
		case params.Has("equals"):
			expected, err := params.Value(ctx, "equals")
			if err != nil {
				return nil, err
			}
			if !reflect.DeepEqual(normalizeJSON(expected), normalizeJSON(value)) {
				if message == "" {
					message = "assertion failed: values are not equal"
				}
				return nil, schema.NewError(schema.ErrCodeValidation, message).
					WithDetails(map[string]any{"expected": expected, "actual": value})
			}
		default:
			if !Truthy(value) {
				if message == "" {
					message = "assertion failed"
				}
				return nil, schema.NewError(schema.ErrCodeValidation, message).
					WithDetails(map[string]any{"actual": value})
			}
		}
		return noop(), nil
	}}
}

// normalizeJSON converts Go numeric types to float64 for consistent deep-equal comparison.
func normalizeJSON(v any) any {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case int32:
		return float64(val)
	case float32:
		return float64(val)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return v
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeJSON(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeJSON(item)
		}
		return out
	default:
		return v
	}
}
