package validation

import (
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/rendis/stencil/pkg/schema"
)

var paramType = reflect.TypeOf(schema.Param{})

// decodeTemplate converts a structurally valid document into a Template.
// Parameters may be written as bare values; those become literal Params.
func decodeTemplate(doc any) (*schema.Template, error) {
	var tpl schema.Template
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       paramHook,
		Result:           &tpl,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(doc); err != nil {
		return nil, err
	}
	return &tpl, nil
}

func paramHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != paramType {
		return data, nil
	}
	if m, ok := data.(map[string]any); ok && isParamShape(m) {
		return m, nil
	}
	return map[string]any{"value": data}, nil
}

// isParamShape reports whether m is an explicit {expr, lang} or {value}
// parameter rather than a literal map.
func isParamShape(m map[string]any) bool {
	_, hasExpr := m["expr"]
	_, hasValue := m["value"]
	if !hasExpr && !hasValue {
		return false
	}
	for k := range m {
		switch k {
		case "expr", "lang", "value":
		default:
			return false
		}
	}
	return true
}
