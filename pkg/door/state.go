package door

import "fmt"

// State is the position of the door.
type State int

const (
	// StateInitialized is reported before the first evaluation.
	StateInitialized State = -2
	// StateClosed means the closed switch is engaged.
	StateClosed State = -1
	// StateUnknown means neither (or both) switches are engaged.
	StateUnknown State = 0
	// StateOpen means the open switch is engaged.
	StateOpen State = 1
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInitialized:
		return "INITIALIZED"
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

// ParseState converts a requested state from its integer form. Only open,
// closed and unknown (clear) can be requested.
func ParseState(v int) (State, error) {
	switch s := State(v); s {
	case StateClosed, StateUnknown, StateOpen:
		return s, nil
	default:
		return StateUnknown, fmt.Errorf("invalid door state %d", v)
	}
}

// OperationState tells whether the automation is still running.
type OperationState int

const (
	// OperationRunning is the normal state.
	OperationRunning OperationState = 0
	// OperationWatchdogTimeout is terminal: the door did not reach its
	// target in time and will not be moved again until restart.
	OperationWatchdogTimeout OperationState = 1
)

// String returns the operation state name.
func (s OperationState) String() string {
	switch s {
	case OperationRunning:
		return "RUNNING"
	case OperationWatchdogTimeout:
		return "WATCHDOG_TIMEOUT"
	default:
		return fmt.Sprintf("OperationState(%d)", int(s))
	}
}
