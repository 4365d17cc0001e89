package validation

import (
	"encoding/json"

	"github.com/rendis/stencil/pkg/schema"
)

// TemplateValidator runs the template checks in order:
//  1. Structural (JSON Schema)
//  2. Decoding into schema.Template
//  3. Semantic (resolvable actions and contributions, known languages)
type TemplateValidator struct {
	schemas   *SchemaValidator
	lookup    Lookup
	languages []string
}

// NewTemplateValidator creates a TemplateValidator. lookup may be nil to
// skip resolution checks; an empty languages list accepts any language.
func NewTemplateValidator(lookup Lookup, languages []string) (*TemplateValidator, error) {
	sv, err := NewSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &TemplateValidator{schemas: sv, lookup: lookup, languages: languages}, nil
}

// Schemas returns the underlying JSON Schema validator.
func (tv *TemplateValidator) Schemas() *SchemaValidator { return tv.schemas }

// Load parses, validates and decodes a template document. name is used when
// the document does not name itself. The result is always non-nil; the error
// is non-nil when the result holds errors.
func (tv *TemplateValidator) Load(name string, data []byte) (*schema.Template, *schema.ValidationResult, error) {
	result := &schema.ValidationResult{}

	doc, err := parseDocument(data)
	if err != nil {
		result.AddError("", schema.ErrCodeValidation, err.Error())
		return nil, result, err
	}
	return tv.load(name, doc, result)
}

// LoadDocument is Load for an already decoded document.
func (tv *TemplateValidator) LoadDocument(name string, doc any) (*schema.Template, *schema.ValidationResult, error) {
	return tv.load(name, doc, &schema.ValidationResult{})
}

func (tv *TemplateValidator) load(name string, doc any, result *schema.ValidationResult) (*schema.Template, *schema.ValidationResult, error) {
	if err := tv.schemas.ValidateDocument(doc); err != nil {
		addStructural(result, err)
		return nil, result, result.ToError()
	}

	tpl, err := decodeTemplate(doc)
	if err != nil {
		result.AddError("", schema.ErrCodeValidation, "decode template: "+err.Error())
		return nil, result, result.ToError()
	}
	if tpl.Name == "" {
		tpl.Name = name
	}

	result.Merge(validateSemantic(tpl, tv.lookup, tv.languages))
	if !result.Valid() {
		return nil, result, result.ToError()
	}
	return tpl, result, nil
}

// Validate checks an in-memory template. Structural errors short-circuit
// the semantic stage.
func (tv *TemplateValidator) Validate(tpl *schema.Template) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if tpl == nil {
		result.AddError("", schema.ErrCodeValidation, "template is nil")
		return result
	}

	doc := *tpl
	if doc.Nodes == nil {
		doc.Nodes = []schema.Node{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		result.AddError("", schema.ErrCodeValidation, "serialize template: "+err.Error())
		return result
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		result.AddError("", schema.ErrCodeValidation, "serialize template: "+err.Error())
		return result
	}
	if err := tv.schemas.ValidateDocument(generic); err != nil {
		addStructural(result, err)
		return result
	}

	result.Merge(validateSemantic(tpl, tv.lookup, tv.languages))
	return result
}

func addStructural(result *schema.ValidationResult, err error) {
	se, ok := err.(*schema.StencilError)
	if !ok {
		result.AddError("", schema.ErrCodeValidation, err.Error())
		return
	}
	if vs, ok := se.Details["violations"].([]string); ok && len(vs) > 0 {
		for _, v := range vs {
			result.AddError("", schema.ErrCodeValidation, v)
		}
		return
	}
	result.AddError("", schema.ErrCodeValidation, se.Message)
}
