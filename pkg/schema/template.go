package schema

// Node kinds produced by a template parser.
const (
	NodeText   = "text"
	NodeExpr   = "expr"
	NodeAction = "action"
)

// Template is a parsed template: a named tree of nodes.
type Template struct {
	Name  string `json:"name" mapstructure:"name"`
	Nodes []Node `json:"nodes" mapstructure:"nodes"`
}

// Node is one element of a parsed template. Which fields are meaningful
// depends on Kind.
type Node struct {
	Kind string `json:"kind" mapstructure:"kind"`
	Line int    `json:"line,omitempty" mapstructure:"line"`

	// text
	Text string `json:"text,omitempty" mapstructure:"text"`

	// expr
	Expr string `json:"expr,omitempty" mapstructure:"expr"`
	Lang string `json:"lang,omitempty" mapstructure:"lang"`

	// action
	Action        string            `json:"action,omitempty" mapstructure:"action"`
	Library       string            `json:"library,omitempty" mapstructure:"library"`
	Params        map[string]Param  `json:"params,omitempty" mapstructure:"params"`
	Contributions []ContributionRef `json:"contributions,omitempty" mapstructure:"contributions"`
	Children      []Node            `json:"children,omitempty" mapstructure:"children"`
}

// Param is a not-yet-evaluated parameter: either a literal value or an
// expression in one of the supported languages.
type Param struct {
	Value any    `json:"value,omitempty" mapstructure:"value"`
	Expr  string `json:"expr,omitempty" mapstructure:"expr"`
	Lang  string `json:"lang,omitempty" mapstructure:"lang"`
}

// IsExpr reports whether the parameter must be evaluated.
func (p Param) IsExpr() bool {
	return p.Expr != ""
}

// ContributionRef attaches a contribution to an action node.
type ContributionRef struct {
	Name    string `json:"name" mapstructure:"name"`
	Library string `json:"library,omitempty" mapstructure:"library"`
	Param   Param  `json:"param" mapstructure:"param"`
}

// Location returns the source location of n within tpl.
func (t *Template) Location(n *Node) Location {
	return Location{Template: t.Name, Line: n.Line}
}
