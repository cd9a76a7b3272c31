package agent

// State is a position in the node lifecycle.
type State uint8

const (
	StateStart State = iota
	StateNodeBuilt
	StateRegistered
	StateAuthenticated
	StateAttributesApplied
	StateConverging
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "Start"
	case StateNodeBuilt:
		return "NodeBuilt"
	case StateRegistered:
		return "Registered"
	case StateAuthenticated:
		return "Authenticated"
	case StateAttributesApplied:
		return "AttributesApplied"
	case StateConverging:
		return "Converging"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// next is the only state reachable from s on success.
func (s State) next() State {
	if s.Terminal() {
		return s
	}
	return s + 1
}
