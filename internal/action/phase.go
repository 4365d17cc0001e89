package action

// Phase is one stage of an action invocation. Phases are visited at most
// once each, strictly in increasing order.
type Phase int

const (
	// PhaseNone is the phase of a context whose pipeline has not started.
	PhaseNone Phase = iota
	PhaseContribution
	PhaseCreation
	PhaseExecution
)

const phaseCount = int(PhaseExecution) + 1

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseContribution:
		return "contribution"
	case PhaseCreation:
		return "creation"
	case PhaseExecution:
		return "execution"
	default:
		return "unknown"
	}
}

// chained reports whether the phase owns an interceptor chain.
func (p Phase) chained() bool {
	return p == PhaseCreation || p == PhaseExecution
}
