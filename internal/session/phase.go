package session

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseViewing
	PhasePaused
	PhaseExpired
	PhaseClosed
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseViewing:
		return "viewing"
	case PhasePaused:
		return "paused"
	case PhaseExpired:
		return "expired"
	case PhaseClosed:
		return "closed"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Active reports whether the countdown scope is alive in this phase.
func (p Phase) Active() bool {
	return p == PhaseViewing || p == PhasePaused
}

func (p Phase) Terminal() bool {
	return p == PhaseClosed
}
