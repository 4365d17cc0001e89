package action

import (
	"context"
	"sort"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/rendis/stencil/internal/scope"
	"github.com/rendis/stencil/pkg/schema"
	"github.com/spf13/cast"
)

// Params is the parameter set handed to a Factory. Values are evaluated on
// demand against the scope the Params were taken from.
type Params struct {
	values map[string]Parameter
	scope  *scope.Scope
}

// NewParams copies values and binds them to sc.
func NewParams(values map[string]Parameter, sc *scope.Scope) Params {
	cp := make(map[string]Parameter, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Params{values: cp, scope: sc}
}

// Names returns the parameter names, sorted.
func (p Params) Names() []string {
	names := make([]string, 0, len(p.values))
	for k := range p.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of parameters.
func (p Params) Len() int { return len(p.values) }

// Has reports whether name was declared.
func (p Params) Has(name string) bool {
	_, ok := p.values[name]
	return ok
}

// Parameter returns the raw, unevaluated parameter.
func (p Params) Parameter(name string) (Parameter, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Scope returns the scope the parameters evaluate against.
func (p Params) Scope() *scope.Scope { return p.scope }

// Value evaluates name. A parameter that was not declared yields nil.
func (p Params) Value(ctx context.Context, name string) (any, error) {
	param, ok := p.values[name]
	if !ok {
		return nil, nil
	}
	v, err := param.Value(ctx, p.scope)
	if err != nil {
		return nil, wrap(err, schema.ErrCodeEvaluation, "parameter %q", name)
	}
	return v, nil
}

// Required evaluates name and fails if it was not declared.
func (p Params) Required(ctx context.Context, name string) (any, error) {
	if !p.Has(name) {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "missing required parameter %q", name)
	}
	return p.Value(ctx, name)
}

// String evaluates name as a string, returning def when it is absent or nil.
func (p Params) String(ctx context.Context, name, def string) (string, error) {
	v, err := p.Value(ctx, name)
	if err != nil || v == nil {
		return def, err
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", convErr(name, "string", v, err)
	}
	return s, nil
}

// Int evaluates name as an int, returning def when it is absent or nil.
func (p Params) Int(ctx context.Context, name string, def int) (int, error) {
	v, err := p.Value(ctx, name)
	if err != nil || v == nil {
		return def, err
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, convErr(name, "int", v, err)
	}
	return n, nil
}

// Float evaluates name as a float64, returning def when it is absent or nil.
func (p Params) Float(ctx context.Context, name string, def float64) (float64, error) {
	v, err := p.Value(ctx, name)
	if err != nil || v == nil {
		return def, err
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, convErr(name, "float", v, err)
	}
	return f, nil
}

// Bool evaluates name as a bool, returning def when it is absent or nil.
func (p Params) Bool(ctx context.Context, name string, def bool) (bool, error) {
	v, err := p.Value(ctx, name)
	if err != nil || v == nil {
		return def, err
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, convErr(name, "bool", v, err)
	}
	return b, nil
}

// Time evaluates name as a time.Time, returning def when it is absent or nil.
func (p Params) Time(ctx context.Context, name string, def time.Time) (time.Time, error) {
	v, err := p.Value(ctx, name)
	if err != nil || v == nil {
		return def, err
	}
	t, err := cast.ToTimeE(v)
	if err != nil {
		return time.Time{}, convErr(name, "time", v, err)
	}
	return t, nil
}

// Slice evaluates name as a []any. Absent or nil parameters yield nil.
func (p Params) Slice(ctx context.Context, name string) ([]any, error) {
	v, err := p.Value(ctx, name)
	if err != nil || v == nil {
		return nil, err
	}
	s, err := cast.ToSliceE(v)
	if err != nil {
		return nil, convErr(name, "list", v, err)
	}
	return s, nil
}

// Map evaluates name as a map[string]any. Absent or nil parameters yield nil.
func (p Params) Map(ctx context.Context, name string) (map[string]any, error) {
	v, err := p.Value(ctx, name)
	if err != nil || v == nil {
		return nil, err
	}
	m, err := cast.ToStringMapE(v)
	if err != nil {
		return nil, convErr(name, "map", v, err)
	}
	return m, nil
}

// Values evaluates every parameter.
func (p Params) Values(ctx context.Context) (map[string]any, error) {
	out := make(map[string]any, len(p.values))
	for _, name := range p.Names() {
		v, err := p.Value(ctx, name)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// Decode evaluates every parameter and decodes the result into target,
// which must be a pointer to a struct or map. Field names are matched by
// their `param` tag, with weak typing enabled.
func (p Params) Decode(ctx context.Context, target any) error {
	values, err := p.Values(ctx)
	if err != nil {
		return err
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "param",
		WeaklyTypedInput: true,
		Result:           target,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "invalid decode target").WithCause(err)
	}
	if err := dec.Decode(values); err != nil {
		return schema.NewErrorf(schema.ErrCodeEvaluation, "decode parameters: %s", err.Error()).WithCause(err)
	}
	return nil
}

func convErr(name, kind string, v any, err error) error {
	return schema.NewErrorf(schema.ErrCodeEvaluation,
		"parameter %q: cannot convert %T to %s", name, v, kind).WithCause(err)
}
