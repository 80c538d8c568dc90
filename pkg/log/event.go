package log

import "time"

// Event represents a journal entry.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// Component is the name of the peripheral or service that emitted the event.
	Component string `cbor:"2,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"3,keyasint"`

	// InstanceID identifies the device installation.
	InstanceID string `cbor:"4,keyasint,omitempty"`

	// Boot is the boot counter value when the event was recorded.
	Boot uint32 `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	StateChange *StateChangeEvent `cbor:"10,keyasint,omitempty"`
	Command     *CommandEvent     `cbor:"11,keyasint,omitempty"`
	Watchdog    *WatchdogEvent    `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryState indicates a state change.
	CategoryState Category = 0
	// CategoryCommand indicates a command invocation.
	CategoryCommand Category = 1
	// CategoryWatchdog indicates watchdog activity.
	CategoryWatchdog Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategoryCommand:
		return "COMMAND"
	case CategoryWatchdog:
		return "WATCHDOG"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory parses a category name as printed by String.
func ParseCategory(s string) (Category, bool) {
	for c := CategoryState; c <= CategoryError; c++ {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// StateChangeEvent captures a transition of a door, valve or device.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityDoor indicates a chicken door position or operation change.
	StateEntityDoor StateEntity = 0
	// StateEntityValve indicates a valve position change.
	StateEntityValve StateEntity = 1
	// StateEntityDevice indicates a device status change.
	StateEntityDevice StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityDoor:
		return "DOOR"
	case StateEntityValve:
		return "VALVE"
	case StateEntityDevice:
		return "DEVICE"
	default:
		return "UNKNOWN"
	}
}

// CommandEvent captures a command request and its outcome.
type CommandEvent struct {
	// Name is the command name.
	Name string `cbor:"1,keyasint"`

	// Request holds the decoded request parameters.
	Request map[string]any `cbor:"2,keyasint,omitempty"`

	// Response holds the command response.
	Response map[string]any `cbor:"3,keyasint,omitempty"`

	// Error is the failure message, empty on success.
	Error string `cbor:"4,keyasint,omitempty"`
}

// WatchdogEvent captures a watchdog lifecycle event.
type WatchdogEvent struct {
	// Name is the watchdog name.
	Name string `cbor:"1,keyasint"`

	// Event is STARTED, CANCELLED or TIMED_OUT.
	Event string `cbor:"2,keyasint"`

	// Timeout is the configured deadline.
	Timeout time.Duration `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors in any component.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty"`
}
