// Package motor defines the PWM motor driver contract used by actuators,
// plus an H-bridge implementation on top of PWM-capable pins.
package motor

import (
	"errors"
	"fmt"
)

// Phase is the direction a motor is driven in.
type Phase int8

const (
	// Forward drives the motor forward (opens doors and valves).
	Forward Phase = 1

	// Reverse drives the motor in reverse (closes doors and valves).
	Reverse Phase = -1
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	default:
		return "invalid"
	}
}

// Opposite returns the other phase.
func (p Phase) Opposite() Phase {
	if p == Forward {
		return Reverse
	}
	return Forward
}

// Driver drives a single DC motor.
//
// Drive with a duty outside [0, 1] must not damage the hardware;
// implementations stop the motor instead.
type Driver interface {
	Drive(phase Phase, duty float64)
	Stop()
}

// Named couples a driver with the name it is configured under.
type Named struct {
	Name   string
	Driver Driver
}

// Motor lookup errors.
var (
	ErrMotorNotFound  = errors.New("failed to find motor")
	ErrAmbiguousMotor = errors.New("motor name required")
)

// Find returns the motor configured under name. An empty name selects the
// only motor when exactly one is configured.
func Find(motors []Named, name string) (Driver, error) {
	if name == "" {
		switch len(motors) {
		case 1:
			return motors[0].Driver, nil
		case 0:
			return nil, ErrMotorNotFound
		default:
			return nil, fmt.Errorf("%w: %d motors configured", ErrAmbiguousMotor, len(motors))
		}
	}
	for _, m := range motors {
		if m.Name == name {
			return m.Driver, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrMotorNotFound, name)
}
