package validation

import (
	"bytes"
	"strconv"

	"github.com/rendis/stencil/pkg/schema"
	"gopkg.in/yaml.v3"
)

// parseDocument reads a YAML (or JSON) template document. Nodes that do not
// declare a line get the source line they start on.
func parseDocument(data []byte) (any, error) {
	var root yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&root); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "invalid template document: "+err.Error()).WithCause(err)
	}
	if root.Kind == yaml.DocumentNode && len(root.Content) == 1 {
		if top := root.Content[0]; top.Kind == yaml.MappingNode {
			annotateLines(mappingValue(top, "nodes"))
		}
	}

	var doc any
	if err := root.Decode(&doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "invalid template document: "+err.Error()).WithCause(err)
	}
	return doc, nil
}

func annotateLines(seq *yaml.Node) {
	if seq == nil || seq.Kind != yaml.SequenceNode {
		return
	}
	for _, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			continue
		}
		if mappingValue(item, "line") == nil {
			item.Content = append(item.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "line"},
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(item.Line)},
			)
		}
		annotateLines(mappingValue(item, "children"))
	}
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}
