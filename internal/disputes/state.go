package disputes

import "fmt"

// State tracks where a retained deposit sits in its dispute lifecycle.
type State string

const (
	StateNormal      State = "NORMAL"
	StateDisputed    State = "DISPUTED"
	StateResolved    State = "RESOLVED"
	StateChargedBack State = "CHARGED_BACK"
)

// InvalidTransitionError represents an invalid lifecycle transition.
type InvalidTransitionError struct {
	From State
	To   State
	TxID uint32
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s for transaction %d", e.From, e.To, e.TxID)
}

// AllowedTransitions defines valid lifecycle transitions. A deposit is
// disputed at most once; settling a dispute either way is final.
func AllowedTransitions() map[State][]State {
	return map[State][]State{
		StateNormal:      {StateDisputed},
		StateDisputed:    {StateResolved, StateChargedBack},
		StateResolved:    {}, // Terminal state
		StateChargedBack: {}, // Terminal state
	}
}

// CanTransition reports whether moving from one state to another is
// allowed.
func CanTransition(from, to State) bool {
	for _, allowed := range AllowedTransitions()[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a state admits no further transitions.
func Terminal(s State) bool {
	return len(AllowedTransitions()[s]) == 0
}

// Valid reports whether s is a known lifecycle state. Stores use it to
// reject corrupted state columns.
func Valid(s State) bool {
	switch s {
	case StateNormal, StateDisputed, StateResolved, StateChargedBack:
		return true
	default:
		return false
	}
}
