package valve

import (
	"errors"
	"fmt"
	"time"

	"github.com/farmhub/farmhub-go/pkg/motor"
)

// Defaults for strategy parameters.
const (
	DefaultSwitchDuration = 500 * time.Millisecond
	DefaultDuty           = 1.0
)

// ErrUnknownStrategy is returned for unsupported strategy types.
var ErrUnknownStrategy = errors.New("unknown valve control strategy")

// StrategyType selects the Strategy implementation for a valve.
type StrategyType uint8

const (
	NormallyClosed StrategyType = iota
	NormallyOpen
	Latching
)

// String returns the configuration name of the strategy type.
func (t StrategyType) String() string {
	switch t {
	case NormallyClosed:
		return "NC"
	case NormallyOpen:
		return "NO"
	case Latching:
		return "latching"
	default:
		return "unknown"
	}
}

// ParseStrategyType parses "NO", "NC" or "latching".
func ParseStrategyType(s string) (StrategyType, error) {
	switch s {
	case "NC":
		return NormallyClosed, nil
	case "NO":
		return NormallyOpen, nil
	case "latching":
		return Latching, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Strategy moves a valve using a motor driver.
type Strategy interface {
	// Open moves the valve to the open position.
	Open(m motor.Driver)

	// Close moves the valve to the closed position.
	Close(m motor.Driver)

	// DefaultState is the state the valve rests in without power,
	// or StateUnknown if that cannot be told.
	DefaultState() State

	// Describe returns a human-readable description for logging.
	Describe() string
}

// NewStrategy creates the strategy for t. duty is the hold duty of holding
// valves and the switch duty of latching valves, in the range (0, 1].
func NewStrategy(t StrategyType, switchDuration time.Duration, duty float64) (Strategy, error) {
	if switchDuration <= 0 {
		return nil, fmt.Errorf("switch duration must be positive, got %s", switchDuration)
	}
	if duty <= 0 || duty > 1 {
		return nil, fmt.Errorf("duty must be in (0, 1], got %g", duty)
	}
	switch t {
	case NormallyClosed:
		return &NormallyClosedStrategy{holding{switchDuration: switchDuration, holdDuty: duty}}, nil
	case NormallyOpen:
		return &NormallyOpenStrategy{holding{switchDuration: switchDuration, holdDuty: duty}}, nil
	case Latching:
		return &LatchingStrategy{switchDuration: switchDuration, switchDuty: duty}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, t)
	}
}

// holding drives at full power to switch the valve, then drops to the hold
// duty and keeps driving.
type holding struct {
	switchDuration time.Duration
	holdDuty       float64
}

func (h holding) driveAndHold(m motor.Driver, phase motor.Phase) {
	m.Drive(phase, 1.0)
	time.Sleep(h.switchDuration)
	m.Drive(phase, h.holdDuty)
}

func (h holding) describe(kind string) string {
	return fmt.Sprintf("%s with switch duration %s and hold duty %.0f%%",
		kind, h.switchDuration, h.holdDuty*100)
}

// NormallyClosedStrategy holds the valve open against its spring.
type NormallyClosedStrategy struct {
	holding
}

// Open drives forward and keeps holding.
func (s *NormallyClosedStrategy) Open(m motor.Driver) {
	s.driveAndHold(m, motor.Forward)
}

// Close releases the valve.
func (s *NormallyClosedStrategy) Close(m motor.Driver) {
	m.Stop()
}

// DefaultState returns StateClosed.
func (s *NormallyClosedStrategy) DefaultState() State {
	return StateClosed
}

// Describe implements Strategy.
func (s *NormallyClosedStrategy) Describe() string {
	return s.describe("normally closed")
}

// NormallyOpenStrategy holds the valve closed against its spring.
type NormallyOpenStrategy struct {
	holding
}

// Open releases the valve.
func (s *NormallyOpenStrategy) Open(m motor.Driver) {
	m.Stop()
}

// Close drives in reverse and keeps holding.
func (s *NormallyOpenStrategy) Close(m motor.Driver) {
	s.driveAndHold(m, motor.Reverse)
}

// DefaultState returns StateOpen.
func (s *NormallyOpenStrategy) DefaultState() State {
	return StateOpen
}

// Describe implements Strategy.
func (s *NormallyOpenStrategy) Describe() string {
	return s.describe("normally open")
}

// LatchingStrategy pulses the valve into position and leaves it unpowered.
type LatchingStrategy struct {
	switchDuration time.Duration
	switchDuty     float64
}

// Open pulses forward.
func (s *LatchingStrategy) Open(m motor.Driver) {
	s.pulse(m, motor.Forward)
}

// Close pulses in reverse.
func (s *LatchingStrategy) Close(m motor.Driver) {
	s.pulse(m, motor.Reverse)
}

func (s *LatchingStrategy) pulse(m motor.Driver, phase motor.Phase) {
	m.Drive(phase, s.switchDuty)
	time.Sleep(s.switchDuration)
	m.Stop()
}

// DefaultState returns StateUnknown: a latching valve stays wherever it was.
func (s *LatchingStrategy) DefaultState() State {
	return StateUnknown
}

// Describe implements Strategy.
func (s *LatchingStrategy) Describe() string {
	return fmt.Sprintf("latching with switch duration %s and switch duty %.0f%%",
		s.switchDuration, s.switchDuty*100)
}
