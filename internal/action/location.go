package action

import (
	"context"

	"github.com/rendis/stencil/pkg/schema"
)

type locationKey struct{}

// WithLocation returns a context carrying the source location of the node
// being processed.
func WithLocation(ctx context.Context, loc schema.Location) context.Context {
	return context.WithValue(ctx, locationKey{}, loc)
}

// LocationFrom returns the innermost node location stored in ctx.
func LocationFrom(ctx context.Context) (schema.Location, bool) {
	loc, ok := ctx.Value(locationKey{}).(schema.Location)
	return loc, ok
}
