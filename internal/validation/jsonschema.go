package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rendis/stencil/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const templateSchemaURL = "https://stencil.dev/schemas/template.json"

// templateSchemaJSON is the JSON Schema of a template document.
const templateSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://stencil.dev/schemas/template.json",
  "type": "object",
  "required": ["nodes"],
  "properties": {
    "name":  { "type": "string" },
    "nodes": { "type": "array", "items": { "$ref": "#/$defs/node" } }
  },
  "additionalProperties": false,
  "$defs": {
    "node": {
      "type": "object",
      "required": ["kind"],
      "properties": {
        "kind":    { "type": "string", "enum": ["text", "expr", "action"] },
        "line":    { "type": "integer", "minimum": 0 },
        "text":    { "type": "string" },
        "expr":    { "type": "string", "minLength": 1 },
        "lang":    { "type": "string" },
        "action":  { "type": "string", "minLength": 1 },
        "library": { "type": "string" },
        "params":  { "type": "object" },
        "contributions": {
          "type": "array",
          "items": { "$ref": "#/$defs/contribution" }
        },
        "children": { "type": "array", "items": { "$ref": "#/$defs/node" } }
      },
      "additionalProperties": false,
      "allOf": [
        { "if": { "properties": { "kind": { "const": "expr" } } },   "then": { "required": ["expr"] } },
        { "if": { "properties": { "kind": { "const": "action" } } }, "then": { "required": ["action"] } }
      ]
    },
    "contribution": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name":    { "type": "string", "minLength": 1 },
        "library": { "type": "string" },
        "param":   {}
      },
      "additionalProperties": false
    }
  }
}`

// SchemaValidator validates template documents and arbitrary values with
// JSON Schema Draft 2020-12. It is safe for concurrent use.
type SchemaValidator struct {
	templateSchema *jsonschema.Schema

	// mu guards the cache for dynamic schema compilation.
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewSchemaValidator creates a SchemaValidator with the template schema pre-compiled.
func NewSchemaValidator() (*SchemaValidator, error) {
	c := newCompiler()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(templateSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal template schema: %w", err)
	}
	if err := c.AddResource(templateSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add template schema resource: %w", err)
	}
	compiled, err := c.Compile(templateSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile template schema: %w", err)
	}

	return &SchemaValidator{
		templateSchema: compiled,
		cache:          make(map[string]*jsonschema.Schema),
	}, nil
}

// ValidateDocument checks a decoded (YAML or JSON) template document.
func (v *SchemaValidator) ValidateDocument(doc any) error {
	if doc == nil {
		return schema.NewError(schema.ErrCodeValidation, "template document is nil")
	}
	val, err := toJSONValue(doc)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize template document").WithCause(err)
	}
	if err := v.templateSchema.Validate(val); err != nil {
		return toStencilError(err)
	}
	return nil
}

// ValidateValue validates value against a JSON Schema given either as raw
// bytes, a string, or a decoded document. Compiled schemas are cached.
func (v *SchemaValidator) ValidateValue(value any, schemaDoc any) error {
	raw, err := schemaBytes(schemaDoc)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize schema").WithCause(err)
	}
	if len(raw) == 0 {
		return nil
	}

	compiled, err := v.getOrCompile(raw)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "invalid schema").WithCause(err)
	}

	doc, err := toJSONValue(value)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize value").WithCause(err)
	}
	if err := compiled.Validate(doc); err != nil {
		return toStencilError(err)
	}
	return nil
}

func schemaBytes(doc any) ([]byte, error) {
	switch s := doc.(type) {
	case nil:
		return nil, nil
	case []byte:
		return s, nil
	case string:
		return []byte(s), nil
	default:
		return json.Marshal(s)
	}
}

func (v *SchemaValidator) getOrCompile(raw []byte) (*jsonschema.Schema, error) {
	key := string(raw)

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	if cached, ok := v.cache[key]; ok {
		return cached, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(key))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	// Fresh compiler and unique URL per schema to avoid resource collisions.
	url := fmt.Sprintf("stencil://value-schema/%d", len(v.cache))
	c := newCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.cache[key] = compiled
	return compiled, nil
}

func newCompiler() *jsonschema.Compiler {
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	return c
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toStencilError converts a jsonschema.ValidationError into a StencilError
// listing every leaf violation.
func toStencilError(err error) *schema.StencilError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	switch len(violations) {
	case 0:
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	case 1:
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	default:
		return schema.NewErrorf(schema.ErrCodeValidation, "validation failed with %d errors", len(violations)).
			WithDetails(map[string]any{"violations": violations})
	}
}

// collectViolations walks a ValidationError tree and collects leaf messages
// prefixed with their instance location.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
