package action

import "context"

// Interceptor takes part in one or more chained phases of a single
// invocation. It must call Context.Proceed to continue its chain.
//
// A Context calls an interceptor at most once per phase it was registered
// for, so an instance may keep private state between its CREATION call and
// its EXECUTION call without synchronization. Instances must never be shared
// between invocations.
type Interceptor interface {
	Phases() []Phase
	Intercept(ctx context.Context, ac *Context) error
}

type interceptorFunc struct {
	phases []Phase
	fn     func(ctx context.Context, ac *Context) error
}

// NewInterceptor returns a stateless Interceptor registered for phases.
func NewInterceptor(fn func(ctx context.Context, ac *Context) error, phases ...Phase) Interceptor {
	return &interceptorFunc{phases: phases, fn: fn}
}

func (i *interceptorFunc) Phases() []Phase { return i.phases }

func (i *interceptorFunc) Intercept(ctx context.Context, ac *Context) error {
	return i.fn(ctx, ac)
}
