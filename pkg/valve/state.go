package valve

import (
	"fmt"
)

// State is the position of a valve.
type State int

const (
	// StateClosed means the valve blocks flow.
	StateClosed State = -1
	// StateUnknown means the position cannot be told.
	StateUnknown State = 0
	// StateOpen means the valve lets flow through.
	StateOpen State = 1
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateUnknown:
		return "UNKNOWN"
	case StateOpen:
		return "OPEN"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ParseState converts the integer wire representation to a State.
func ParseState(v int) (State, error) {
	switch s := State(v); s {
	case StateClosed, StateUnknown, StateOpen:
		return s, nil
	default:
		return StateUnknown, fmt.Errorf("invalid valve state %d", v)
	}
}
