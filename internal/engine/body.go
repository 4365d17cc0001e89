package engine

import (
	"context"

	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/internal/scope"
	"github.com/rendis/stencil/pkg/schema"
)

// nodeBody is the child node list of an action node. The nodes are never
// mutated, so copies share them.
type nodeBody struct {
	driver *Driver
	tpl    *schema.Template
	nodes  []schema.Node
}

func (b *nodeBody) Copy() action.Body {
	cp := *b
	return &cp
}

func (b *nodeBody) Invoke(ctx context.Context, sc *scope.Scope, w action.Writer) error {
	if len(b.nodes) == 0 {
		return nil
	}
	return b.driver.processNodes(ctx, b.tpl, b.nodes, sc, w)
}
