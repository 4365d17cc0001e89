package builtin

import (
	"context"
	"sort"

	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/internal/scope"
	"github.com/rendis/stencil/pkg/schema"
	"github.com/spf13/cast"
)

// out writes value, or default when value is nil.
func outFactory() action.Factory {
	return &factory{name: "out", create: func(ctx context.Context, params action.Params) (action.Action, error) {
		v, err := params.Value(ctx, "value")
		if err != nil {
			return nil, err
		}
		if v == nil {
			if v, err = params.Value(ctx, "default"); err != nil {
				return nil, err
			}
		}
		return emit(v), nil
	}}
}

// if renders its body when test is truthy.
func ifFactory() action.Factory {
	return &factory{name: "if", create: func(ctx context.Context, params action.Params) (action.Action, error) {
		test, err := params.Required(ctx, "test")
		if err != nil {
			return nil, err
		}
		ok := Truthy(test)
		return run(func(ctx context.Context, body action.Body, sc *scope.Scope, w action.Writer) error {
			if !ok {
				return nil
			}
			return body.Invoke(ctx, sc, w)
		}), nil
	}}
}

// each renders its body once per item in a child scope holding the item and
// its index. Maps iterate in key order with {key, value} items.
func eachFactory() action.Factory {
	return &factory{name: "each", create: func(ctx context.Context, params action.Params) (action.Action, error) {
		raw, err := params.Value(ctx, "items")
		if err != nil {
			return nil, err
		}
		items, err := iterable(raw)
		if err != nil {
			return nil, err
		}
		varName, err := params.String(ctx, "var", "item")
		if err != nil {
			return nil, err
		}
		indexName, err := params.String(ctx, "index", "index")
		if err != nil {
			return nil, err
		}

		return run(func(ctx context.Context, body action.Body, sc *scope.Scope, w action.Writer) error {
			b := body.Copy()
			for i, item := range items {
				frame := sc.Child("each")
				frame.Set(varName, item)
				frame.Set(indexName, i)
				if err := b.Invoke(ctx, frame, w); err != nil {
					return err
				}
			}
			return nil
		}), nil
	}}
}

func iterable(v any) ([]any, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = map[string]any{"key": k, "value": m[k]}
		}
		return out, nil
	}
	items, err := cast.ToSliceE(v)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeEvaluation, "each: cannot iterate over %T", v).WithCause(err)
	}
	return items, nil
}

// set assigns a variable on the current frame, or on the root frame when
// global is true.
func setFactory() action.Factory {
	return &factory{name: "set", create: func(ctx context.Context, params action.Params) (action.Action, error) {
		name, err := params.String(ctx, "name", "")
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, schema.NewError(schema.ErrCodeValidation, "set: missing required parameter \"name\"")
		}
		value, err := params.Value(ctx, "value")
		if err != nil {
			return nil, err
		}
		global, err := params.Bool(ctx, "global", false)
		if err != nil {
			return nil, err
		}

		return run(func(_ context.Context, _ action.Body, sc *scope.Scope, _ action.Writer) error {
			if global {
				sc = sc.Root()
			}
			sc.Set(name, value)
			return nil
		}), nil
	}}
}

// with renders its body in a child scope where every parameter is a variable.
func withFactory() action.Factory {
	return &factory{name: "with", create: func(ctx context.Context, params action.Params) (action.Action, error) {
		values, err := params.Values(ctx)
		if err != nil {
			return nil, err
		}
		return run(func(ctx context.Context, body action.Body, sc *scope.Scope, w action.Writer) error {
			frame := sc.Child("with")
			for k, v := range values {
				frame.Set(k, v)
			}
			return body.Invoke(ctx, frame, w)
		}), nil
	}}
}

// capture renders its body into a string variable instead of the output.
func captureFactory() action.Factory {
	return &factory{name: "capture", create: func(ctx context.Context, params action.Params) (action.Action, error) {
		name, err := params.String(ctx, "var", "")
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, schema.NewError(schema.ErrCodeValidation, "capture: missing required parameter \"var\"")
		}
		return run(func(ctx context.Context, body action.Body, sc *scope.Scope, _ action.Writer) error {
			cw := action.NewCaptureWriter()
			if err := body.Invoke(ctx, sc, cw); err != nil {
				return err
			}
			sc.Set(name, cw.String())
			return nil
		}), nil
	}}
}
