package validation

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/internal/library"
	"github.com/rendis/stencil/pkg/schema"
)

// Lookup answers whether the actions and contributions a template names can
// be resolved.
type Lookup interface {
	HasAction(desc action.Descriptor) bool
	HasContribution(desc action.ContributionDescriptor) bool
}

type registryLookup struct {
	reg *library.Registry
}

// RegistryLookup adapts a library registry to Lookup.
func RegistryLookup(reg *library.Registry) Lookup {
	return registryLookup{reg: reg}
}

func (l registryLookup) HasAction(desc action.Descriptor) bool {
	_, err := l.reg.ResolveAction(desc)
	return err == nil
}

func (l registryLookup) HasContribution(desc action.ContributionDescriptor) bool {
	_, err := l.reg.ResolveContribution(desc)
	return err == nil
}

// validateSemantic checks a decoded template: action and contribution names
// resolve, expression languages are known and children only hang off
// action nodes.
func validateSemantic(tpl *schema.Template, lookup Lookup, languages []string) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	for i := range tpl.Nodes {
		validateNode(&tpl.Nodes[i], fmt.Sprintf("nodes[%d]", i), lookup, languages, result)
	}
	return result
}

func validateNode(n *schema.Node, path string, lookup Lookup, languages []string, result *schema.ValidationResult) {
	switch n.Kind {
	case schema.NodeText:
		if strings.Contains(n.Text, "${{") {
			result.AddWarning(path+".text", schema.ErrCodeValidation,
				"text nodes are written verbatim; ${{ }} is only interpolated in parameters")
		}
	case schema.NodeExpr:
		checkLanguage(n.Lang, path+".lang", languages, result)
	case schema.NodeAction:
		validateActionNode(n, path, lookup, languages, result)
	default:
		result.AddError(path+".kind", schema.ErrCodeValidation,
			fmt.Sprintf("unknown node kind %q", n.Kind))
	}

	if n.Kind != schema.NodeAction && len(n.Children) > 0 {
		result.AddError(path+".children", schema.ErrCodeValidation,
			fmt.Sprintf("%s nodes cannot have children", n.Kind))
	}
}

func validateActionNode(n *schema.Node, path string, lookup Lookup, languages []string, result *schema.ValidationResult) {
	if lookup != nil {
		desc := action.Descriptor{Name: n.Action, Library: n.Library}
		if !lookup.HasAction(desc) {
			result.AddError(path+".action", schema.ErrCodeLookup,
				fmt.Sprintf("action %q not registered", desc))
		}
	}

	names := make([]string, 0, len(n.Params))
	for name := range n.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := n.Params[name]
		ppath := fmt.Sprintf("%s.params.%s", path, name)
		if p.IsExpr() {
			checkLanguage(p.Lang, ppath+".lang", languages, result)
			if p.Value != nil {
				result.AddWarning(ppath, schema.ErrCodeValidation,
					"parameter has both expr and value; value is ignored")
			}
		}
	}

	for j, ref := range n.Contributions {
		cpath := fmt.Sprintf("%s.contributions[%d]", path, j)
		if lookup != nil {
			desc := action.ContributionDescriptor{Name: ref.Name, Library: ref.Library}
			if !lookup.HasContribution(desc) {
				result.AddError(cpath+".name", schema.ErrCodeLookup,
					fmt.Sprintf("contribution %q not registered", desc))
			}
		}
		if ref.Param.IsExpr() {
			checkLanguage(ref.Param.Lang, cpath+".param.lang", languages, result)
		}
	}

	for i := range n.Children {
		validateNode(&n.Children[i], fmt.Sprintf("%s.children[%d]", path, i), lookup, languages, result)
	}
}

func checkLanguage(lang, path string, languages []string, result *schema.ValidationResult) {
	if lang == "" || len(languages) == 0 {
		return
	}
	if !slices.Contains(languages, lang) {
		result.AddError(path, schema.ErrCodeLookup,
			fmt.Sprintf("unknown expression language %q (available: %s)", lang, strings.Join(languages, ", ")))
	}
}
